package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/unimarket/internal/entity"
	"anoa.com/unimarket/internal/modules/product/dto"
	"anoa.com/unimarket/pkg/apperror"
	commonDto "anoa.com/unimarket/pkg/dto"
	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/ratelimiter"
	"github.com/google/uuid"
)

// ownedProduct loads the product, failing with ErrForbidden unless the caller is the seller.
func (s *service) ownedProduct(ctx context.Context, identity string, id uuid.UUID) (*entity.Product, error) {
	actor, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return nil, err
	}

	product, err := s.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if !product.CanEdit(actor.ID) {
		return nil, fmt.Errorf("only the seller can modify this product: %w", apperror.ErrForbidden)
	}
	return product, nil
}

func (s *service) resolveCategory(ctx context.Context, slug string) (*entity.Category, error) {
	category, err := s.categories.GetCategoryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("unknown category %q: %w", slug, apperror.ErrInvalidInput)
		}
		return nil, err
	}
	return category, nil
}

func (s *service) reloadAndIndex(ctx context.Context, id uuid.UUID) (*commonDto.ProductResponse, error) {
	product, err := s.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.index(ctx, product)

	res := dto.NewProductResponse(product, time.Now())
	return &res, nil
}

func (s *service) index(ctx context.Context, product *entity.Product) {
	if s.search == nil {
		return
	}
	if err := s.search.IndexProduct(ctx, product); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("product_id", product.ID).Warn("failed to index product")
	}
}

func (s *service) checkCreateRateLimit(ctx context.Context, studentID uuid.UUID) (func(), error) {
	// 1. Global cooldown
	allowed, err := ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, studentID, ratelimiter.ScopeGlobal, s.limits.Global)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, studentID, ratelimiter.ScopeGlobal)
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you are doing that too fast. Please wait %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	// 2. Product cooldown
	allowed, err = ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, studentID, ratelimiter.ScopeProduct, s.limits.Product)
	if err != nil {
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, studentID, ratelimiter.ScopeGlobal)
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, studentID, ratelimiter.ScopeGlobal)
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, studentID, ratelimiter.ScopeProduct)
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you can only publish one product every %.0f seconds. Please wait %.0f seconds", s.limits.Product.Seconds(), ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	rollback := func() {
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, studentID, ratelimiter.ScopeGlobal)
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, studentID, ratelimiter.ScopeProduct)
	}
	return rollback, nil
}

func validateProduct(p *entity.Product) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("name is required: %w", apperror.ErrInvalidInput)
	case p.Description == "":
		return fmt.Errorf("description is required: %w", apperror.ErrInvalidInput)
	case p.Price < entity.MinProductPrice:
		return fmt.Errorf("price must be at least %.2f: %w", entity.MinProductPrice, apperror.ErrInvalidInput)
	case p.Stock < 1:
		return fmt.Errorf("stock must be at least 1: %w", apperror.ErrInvalidInput)
	case !entity.IsValidCondition(p.Condition):
		return fmt.Errorf("condition %q: %w", p.Condition, apperror.ErrInvalidInput)
	case !entity.IsValidDeliveryType(p.DeliveryType):
		return fmt.Errorf("delivery type %q: %w", p.DeliveryType, apperror.ErrInvalidInput)
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
