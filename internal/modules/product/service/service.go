package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/unimarket/internal/entity"
	"anoa.com/unimarket/internal/modules/product/dto"
	"anoa.com/unimarket/internal/modules/product/repository"
	search "anoa.com/unimarket/internal/modules/search/service"
	student "anoa.com/unimarket/internal/modules/student/service"
	view "anoa.com/unimarket/internal/modules/view/service"
	"anoa.com/unimarket/pkg/apperror"
	commonDto "anoa.com/unimarket/pkg/dto"
	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/metrics"
	"anoa.com/unimarket/pkg/sanitizer"
	"anoa.com/unimarket/pkg/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const reindexBatchSize = 200

type CategoryResolver interface {
	GetCategoryBySlug(ctx context.Context, slug string) (*entity.Category, error)
}

// FavoriteReader supplies the favorite figures shown on product detail.
type FavoriteReader interface {
	IsFavorite(ctx context.Context, studentID, productID uuid.UUID) (bool, error)
	CountForProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

// Limits are the per-student cooldowns applied to product creation.
type Limits struct {
	Global  time.Duration
	Product time.Duration
}

type Service interface {
	Search(ctx context.Context, filter commonDto.ProductFilter) (*commonDto.PaginatedProductResponse, error)
	GetProduct(ctx context.Context, id uuid.UUID, viewerIdentity, clientIP string) (*dto.ProductDetailResponse, error)
	CreateProduct(ctx context.Context, identity string, req dto.CreateProductRequest) (*commonDto.ProductResponse, error)
	UpdateProduct(ctx context.Context, identity string, id uuid.UUID, req dto.UpdateProductRequest) (*commonDto.ProductResponse, error)
	UpdateStatus(ctx context.Context, identity string, id uuid.UUID, status string) (*commonDto.ProductResponse, error)
	DeleteProduct(ctx context.Context, identity string, id uuid.UUID) error
	ListBySeller(ctx context.Context, handle, viewerIdentity string, page commonDto.PageQuery) (*commonDto.PaginatedProductResponse, error)
	UploadImages(ctx context.Context, identity string, productID uuid.UUID, files []commonDto.ImageFile) ([]commonDto.ImageResponse, error)
	DeleteImage(ctx context.Context, identity string, productID, imageID uuid.UUID) error
	ReindexAll(ctx context.Context) (int, error)
}

type service struct {
	repo         repository.ProductRepository
	students     student.Directory
	categories   CategoryResolver
	favorites    FavoriteReader
	imageStorage storage.ImageStorage
	redisClient  *redis.Client
	search       search.Service
	views        view.ViewService
	limits       Limits
}

// NewService wires the catalog. searchService may be nil when no index is configured.
func NewService(
	repo repository.ProductRepository,
	students student.Directory,
	categories CategoryResolver,
	favorites FavoriteReader,
	imageStorage storage.ImageStorage,
	redisClient *redis.Client,
	searchService search.Service,
	views view.ViewService,
	limits Limits,
) Service {
	return &service{
		repo:         repo,
		students:     students,
		categories:   categories,
		favorites:    favorites,
		imageStorage: imageStorage,
		redisClient:  redisClient,
		search:       searchService,
		views:        views,
		limits:       limits,
	}
}

func (s *service) Search(ctx context.Context, filter commonDto.ProductFilter) (*commonDto.PaginatedProductResponse, error) {
	page := commonDto.PageQuery{Page: filter.Page, Limit: filter.Limit}
	page.Normalize()
	offset := (page.Page - 1) * page.Limit

	var products []entity.Product
	var total int64
	var err error

	if s.search != nil && filter.Search != "" {
		products, total, err = s.searchIndex(ctx, filter, offset, page.Limit)
	} else {
		products, total, err = s.searchDB(ctx, filter, offset, page.Limit)
	}
	if err != nil {
		return nil, err
	}

	return &commonDto.PaginatedProductResponse{
		Data: dto.NewProductResponses(products, time.Now()),
		Meta: commonDto.NewPaginationMeta(page.Page, page.Limit, total),
	}, nil
}

func (s *service) searchIndex(ctx context.Context, filter commonDto.ProductFilter, offset, limit int) ([]entity.Product, int64, error) {
	ids, total, err := s.search.SearchProductIDs(ctx, search.ProductQuery{
		Text:      filter.Search,
		Category:  filter.Category,
		Condition: filter.Condition,
		MinPrice:  filter.MinPrice,
		MaxPrice:  filter.MaxPrice,
		SortBy:    filter.SortBy,
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("search index unavailable, falling back to database")
		return s.searchDB(ctx, filter, offset, limit)
	}

	products, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	// The index can lag behind status changes. Rows dropped from this page are taken off
	// the total too; stale rows on other pages still count until the next reindex.
	ordered := dto.OrderByIDs(products, ids)
	available := ordered[:0]
	for _, p := range ordered {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	total -= int64(len(ids) - len(available))
	if total < int64(offset+len(available)) {
		total = int64(offset + len(available))
	}
	return available, total, nil
}

func (s *service) searchDB(ctx context.Context, filter commonDto.ProductFilter, offset, limit int) ([]entity.Product, int64, error) {
	params := repository.SearchParams{
		Text:      filter.Search,
		Condition: filter.Condition,
		MinPrice:  filter.MinPrice,
		MaxPrice:  filter.MaxPrice,
		SortBy:    filter.SortBy,
		Offset:    offset,
		Limit:     limit,
	}

	if filter.Category != "" {
		category, err := s.categories.GetCategoryBySlug(ctx, filter.Category)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return []entity.Product{}, 0, nil
			}
			return nil, 0, err
		}
		params.CategoryID = &category.ID
	}

	return s.repo.Search(ctx, params)
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID, viewerIdentity, clientIP string) (*dto.ProductDetailResponse, error) {
	product, err := s.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	var viewer *entity.Student
	if viewerIdentity != "" {
		// An authenticated caller without a profile is treated as anonymous.
		viewer, _ = s.students.ResolveActor(ctx, viewerIdentity)
	}

	viewerKey := "ip:" + clientIP
	if viewer != nil {
		viewerKey = "student:" + viewer.ID.String()
	}
	if err := s.views.IncrementView(ctx, product.ID, viewerKey); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("failed to count product view")
	}

	res := &dto.ProductDetailResponse{ProductResponse: dto.NewProductResponse(product, time.Now())}

	res.FavoriteCount, err = s.favorites.CountForProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	if viewer != nil {
		res.IsFavorite, err = s.favorites.IsFavorite(ctx, viewer.ID, product.ID)
		if err != nil {
			return nil, err
		}
		res.CanEdit = product.CanEdit(viewer.ID)
		res.CanDelete = product.CanDelete(viewer.ID)
	}

	return res, nil
}

func (s *service) CreateProduct(ctx context.Context, identity string, req dto.CreateProductRequest) (*commonDto.ProductResponse, error) {
	seller, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return nil, err
	}

	product := &entity.Product{
		Name:         sanitizer.PlainText(req.Name),
		Description:  sanitizer.MultilineText(req.Description),
		Price:        req.Price,
		Condition:    orDefault(req.Condition, entity.ConditionGood),
		Status:       entity.ProductStatusAvailable,
		Stock:        req.Stock,
		IsMultiple:   req.IsMultiple,
		DeliveryType: orDefault(req.DeliveryType, entity.DeliveryPickup),
		SellerID:     seller.ID,
		Tags:         entity.ParseTags(req.Tags),
	}
	if product.Stock == 0 {
		product.Stock = 1
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if req.Category != "" {
		category, err := s.resolveCategory(ctx, req.Category)
		if err != nil {
			return nil, err
		}
		product.CategoryID = &category.ID
	}

	rollback, err := s.checkCreateRateLimit(ctx, seller.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		rollback()
		return nil, err
	}
	metrics.ProductsCreated.Inc()

	created, err := s.repo.FindByID(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	s.index(ctx, created)

	logger.FromContext(ctx).WithField("product_id", created.ID).Info("product published")

	res := dto.NewProductResponse(created, time.Now())
	return &res, nil
}

func (s *service) UpdateProduct(ctx context.Context, identity string, id uuid.UUID, req dto.UpdateProductRequest) (*commonDto.ProductResponse, error) {
	product, err := s.ownedProduct(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = sanitizer.PlainText(*req.Name)
	}
	if req.Description != nil {
		product.Description = sanitizer.MultilineText(*req.Description)
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Condition != nil {
		product.Condition = *req.Condition
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.IsMultiple != nil {
		product.IsMultiple = *req.IsMultiple
	}
	if req.DeliveryType != nil {
		product.DeliveryType = *req.DeliveryType
	}
	if req.Tags != nil {
		product.Tags = entity.ParseTags(*req.Tags)
	}
	if req.Category != nil {
		if *req.Category == "" {
			product.CategoryID = nil
		} else {
			category, err := s.resolveCategory(ctx, *req.Category)
			if err != nil {
				return nil, err
			}
			product.CategoryID = &category.ID
		}
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}

	return s.reloadAndIndex(ctx, product.ID)
}

func (s *service) UpdateStatus(ctx context.Context, identity string, id uuid.UUID, status string) (*commonDto.ProductResponse, error) {
	product, err := s.ownedProduct(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	if !entity.CanTransition(product.Status, status) {
		return nil, fmt.Errorf("status %q: %w", status, apperror.ErrInvalidInput)
	}

	if err := s.repo.UpdateStatus(ctx, product.ID, status); err != nil {
		return nil, err
	}

	return s.reloadAndIndex(ctx, product.ID)
}

func (s *service) DeleteProduct(ctx context.Context, identity string, id uuid.UUID) error {
	product, err := s.ownedProduct(ctx, identity, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, product.ID); err != nil {
		return err
	}

	log := logger.FromContext(ctx).WithField("product_id", product.ID)
	if s.imageStorage != nil {
		for _, img := range product.Images {
			if err := s.imageStorage.DeleteImage(ctx, img.URL); err != nil {
				log.WithError(err).Warn("failed to delete product image from storage")
			}
		}
	}
	if s.search != nil {
		if err := s.search.DeleteProduct(ctx, product.ID); err != nil {
			log.WithError(err).Warn("failed to remove product from search index")
		}
	}

	log.Info("product deleted")
	return nil
}

func (s *service) ListBySeller(ctx context.Context, handle, viewerIdentity string, page commonDto.PageQuery) (*commonDto.PaginatedProductResponse, error) {
	seller, err := s.students.GetByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}

	onlyAvailable := true
	if viewerIdentity != "" && viewerIdentity == seller.IdentityRef {
		onlyAvailable = false
	}

	page.Normalize()
	products, total, err := s.repo.FindBySeller(ctx, seller.ID, onlyAvailable, (page.Page-1)*page.Limit, page.Limit)
	if err != nil {
		return nil, err
	}

	return &commonDto.PaginatedProductResponse{
		Data: dto.NewProductResponses(products, time.Now()),
		Meta: commonDto.NewPaginationMeta(page.Page, page.Limit, total),
	}, nil
}

func (s *service) ReindexAll(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, fmt.Errorf("search index is not configured")
	}

	indexed := 0
	err := s.repo.FindInBatches(ctx, reindexBatchSize, func(products []entity.Product) error {
		if err := s.search.IndexProducts(ctx, products); err != nil {
			return err
		}
		indexed += len(products)
		return nil
	})
	return indexed, err
}

func (s *service) findProduct(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return product, nil
}
