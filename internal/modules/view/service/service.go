package view

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"anoa.com/unimarket/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	pendingKey     = "pending:product_views"
	viewerDedupTTL = time.Hour
)

// ViewStore is the persistent side of the view counter.
type ViewStore interface {
	IncrementViews(ctx context.Context, productID uuid.UUID) error
	AddViews(ctx context.Context, productID uuid.UUID, n int) error
}

type ViewService interface {
	// IncrementView counts a product view. viewer is the student id or, for anonymous
	// visitors, the client address; repeat views by the same viewer within an hour are ignored.
	IncrementView(ctx context.Context, productID uuid.UUID, viewer string) error
	// SyncViews flushes buffered counters to the database and returns how many products were updated.
	SyncViews(ctx context.Context) (int, error)
}

type viewService struct {
	redisClient *redis.Client
	store       ViewStore
}

func NewViewService(redisClient *redis.Client, store ViewStore) ViewService {
	return &viewService{
		redisClient: redisClient,
		store:       store,
	}
}

func viewsKey(productID string) string {
	return fmt.Sprintf("product:views:%s", productID)
}

func (s *viewService) IncrementView(ctx context.Context, productID uuid.UUID, viewer string) error {
	if s.redisClient == nil {
		return s.store.IncrementViews(ctx, productID)
	}

	viewerKey := fmt.Sprintf("product:viewer:%s:%s", productID, viewer)
	first, err := s.redisClient.SetNX(ctx, viewerKey, "viewed", viewerDedupTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to check viewer: %w", err)
	}
	if !first {
		return nil
	}

	pipe := s.redisClient.TxPipeline()
	pipe.Incr(ctx, viewsKey(productID.String()))
	pipe.SAdd(ctx, pendingKey, productID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to buffer view: %w", err)
	}
	return nil
}

func (s *viewService) SyncViews(ctx context.Context) (int, error) {
	if s.redisClient == nil {
		return 0, nil
	}

	log := logger.FromContext(ctx)

	productIDs, err := s.redisClient.SMembers(ctx, pendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read pending views: %w", err)
	}

	synced := 0
	for _, idStr := range productIDs {
		productID, err := uuid.Parse(idStr)
		if err != nil {
			log.WithField("product_id", idStr).Warn("dropping invalid pending view entry")
			s.redisClient.SRem(ctx, pendingKey, idStr)
			continue
		}

		// SREM before GETDEL: a view landing in between re-adds the id for the next run
		s.redisClient.SRem(ctx, pendingKey, idStr)
		countStr, err := s.redisClient.GetDel(ctx, viewsKey(idStr)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("product_id", idStr).Warn("failed to read view counter")
			s.redisClient.SAdd(ctx, pendingKey, idStr)
			continue
		}

		count, _ := strconv.Atoi(countStr)
		if count <= 0 {
			continue
		}

		if err := s.store.AddViews(ctx, productID, count); err != nil {
			log.WithError(err).WithField("product_id", idStr).Warn("failed to persist views, re-buffering")
			s.redisClient.IncrBy(ctx, viewsKey(idStr), int64(count))
			s.redisClient.SAdd(ctx, pendingKey, idStr)
			continue
		}
		synced++
	}

	if synced > 0 {
		log.Infof("synced views for %d products", synced)
	}
	return synced, nil
}
