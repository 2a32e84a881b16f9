package favorite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"anoa.com/unimarket/internal/entity"
	"anoa.com/unimarket/internal/modules/favorite/dto"
	"anoa.com/unimarket/internal/modules/favorite/repository"
	productDto "anoa.com/unimarket/internal/modules/product/dto"
	student "anoa.com/unimarket/internal/modules/student/service"
	"anoa.com/unimarket/pkg/apperror"
	commonDto "anoa.com/unimarket/pkg/dto"
	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	countsKey   = "counts:favorites"
	versionsKey = "counts:favorites:version"
	countsTTL   = 7 * 24 * time.Hour
)

// cacheCount stores a count read from the database unless a toggle bumped the
// product's version since the read started.
var cacheCount = redis.NewScript(`
local current = redis.call('HGET', KEYS[2], ARGV[1]) or '0'
if current ~= ARGV[2] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('EXPIRE', KEYS[1], ARGV[4])
return 1
`)

type ProductFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Product, error)
}

type Notifier interface {
	Create(ctx context.Context, notification *entity.Notification) error
}

type Service interface {
	ToggleFavorite(ctx context.Context, identity string, productID uuid.UUID) (*dto.ToggleFavoriteResponse, error)
	ListFavorites(ctx context.Context, identity string) ([]commonDto.ProductResponse, error)
	Summary(ctx context.Context, identity string) (*dto.FavoriteSummary, error)
	IsFavorite(ctx context.Context, studentID, productID uuid.UUID) (bool, error)
	CountForProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

type service struct {
	repo        repository.FavoriteRepository
	students    student.Directory
	products    ProductFinder
	redisClient *redis.Client
	notifier    Notifier
}

func NewService(
	repo repository.FavoriteRepository,
	students student.Directory,
	products ProductFinder,
	redisClient *redis.Client,
	notifier Notifier,
) Service {
	return &service{
		repo:        repo,
		students:    students,
		products:    products,
		redisClient: redisClient,
		notifier:    notifier,
	}
}

func (s *service) ToggleFavorite(ctx context.Context, identity string, productID uuid.UUID) (*dto.ToggleFavoriteResponse, error) {
	actor, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	added, err := s.repo.Toggle(ctx, actor.ID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("favorite changed concurrently: %w", apperror.ErrConflict)
		}
		return nil, err
	}

	status := dto.StatusRemoved
	if added {
		status = dto.StatusAdded
	}
	metrics.FavoriteToggles.WithLabelValues(status).Inc()
	s.invalidateCount(ctx, productID)

	if added && product.SellerID != actor.ID {
		s.notifySeller(ctx, actor, product)
	}

	count, err := s.CountForProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return &dto.ToggleFavoriteResponse{Status: status, FavoriteCount: count}, nil
}

func (s *service) notifySeller(ctx context.Context, actor *entity.Student, product *entity.Product) {
	notification := &entity.Notification{
		StudentID:  product.SellerID,
		ActorID:    actor.ID,
		EntityID:   product.ID,
		EntityType: "product",
		Type:       entity.NotificationProductFavorited,
		Message:    fmt.Sprintf("@%s saved %s to their favorites", actor.Handle, product.Name),
	}
	if err := s.notifier.Create(ctx, notification); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("failed to create favorite notification")
	}
}

// invalidateCount runs after the toggle is committed. Bumping the version makes
// any read that started before the commit skip its cache write.
func (s *service) invalidateCount(ctx context.Context, productID uuid.UUID) {
	if s.redisClient == nil {
		return
	}

	field := productID.String()
	pipe := s.redisClient.TxPipeline()
	pipe.HIncrBy(ctx, versionsKey, field, 1)
	pipe.Expire(ctx, versionsKey, countsTTL)
	pipe.HDel(ctx, countsKey, field)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("product_id", productID).Warn("failed to invalidate cached favorite count")
	}
}

func (s *service) CountForProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	if s.redisClient == nil {
		return s.repo.CountForProduct(ctx, productID)
	}

	log := logger.FromContext(ctx).WithField("product_id", productID)
	field := productID.String()

	count, err := s.redisClient.HGet(ctx, countsKey, field).Int64()
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, redis.Nil) {
		log.WithError(err).Warn("failed to read cached favorite count")
	}

	version, err := s.redisClient.HGet(ctx, versionsKey, field).Result()
	if errors.Is(err, redis.Nil) {
		version = "0"
	} else if err != nil {
		log.WithError(err).Warn("failed to read favorite count version")
		return s.repo.CountForProduct(ctx, productID)
	}

	count, err = s.repo.CountForProduct(ctx, productID)
	if err != nil {
		return 0, err
	}

	keys := []string{countsKey, versionsKey}
	if err := cacheCount.Run(ctx, s.redisClient, keys, field, version, count, int(countsTTL.Seconds())).Err(); err != nil {
		log.WithError(err).Warn("failed to cache favorite count")
	}

	return count, nil
}

func (s *service) IsFavorite(ctx context.Context, studentID, productID uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, studentID, productID)
}

func (s *service) ListFavorites(ctx context.Context, identity string) ([]commonDto.ProductResponse, error) {
	actor, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return nil, err
	}

	products, err := s.repo.ListProducts(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	return productDto.NewProductResponses(products, time.Now()), nil
}

func (s *service) Summary(ctx context.Context, identity string) (*dto.FavoriteSummary, error) {
	actor, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return nil, err
	}

	products, err := s.repo.ListProducts(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	summary := Summarize(products)
	return &summary, nil
}

// Summarize aggregates a favorites list. Count and price cover available products;
// institutions are counted across every favorited seller.
func Summarize(products []entity.Product) dto.FavoriteSummary {
	summary := dto.FavoriteSummary{Total: len(products)}
	institutions := make(map[string]struct{})

	var total float64
	for i := range products {
		p := &products[i]
		if p.Seller != nil && p.Seller.Institution != "" {
			institutions[p.Seller.Institution] = struct{}{}
		}
		if !p.IsAvailable() {
			continue
		}
		summary.AvailableCount++
		total += p.Price
	}

	summary.AvailableTotalPrice = math.Round(total*100) / 100
	summary.DistinctInstitutions = len(institutions)
	return summary
}
