package category

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/unimarket/internal/entity"
	"anoa.com/unimarket/internal/modules/category/repository"
	"anoa.com/unimarket/pkg/apperror"
	commonDto "anoa.com/unimarket/pkg/dto"
	"gorm.io/gorm"
)

type CategoryService interface {
	GetAllCategories(ctx context.Context, filter commonDto.CategoryFilter) ([]commonDto.CategoryResponse, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*entity.Category, error)
}

type categoryService struct {
	repo repository.CategoryRepository
}

func NewCategoryService(repo repository.CategoryRepository) CategoryService {
	return &categoryService{repo: repo}
}

func (s *categoryService) GetAllCategories(ctx context.Context, filter commonDto.CategoryFilter) ([]commonDto.CategoryResponse, error) {
	categories, err := s.repo.FindAllWithCounts(ctx, filter.Search)
	if err != nil {
		return nil, err
	}

	res := make([]commonDto.CategoryResponse, 0, len(categories))
	for _, cat := range categories {
		res = append(res, commonDto.CategoryResponse{
			ID:                cat.ID,
			Name:              cat.Name,
			Slug:              cat.Slug,
			Description:       cat.Description,
			Icon:              cat.Icon,
			AvailableProducts: cat.AvailableProducts,
		})
	}
	return res, nil
}

func (s *categoryService) GetCategoryBySlug(ctx context.Context, slug string) (*entity.Category, error) {
	category, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("category %q: %w", slug, apperror.ErrNotFound)
		}
		return nil, err
	}
	return category, nil
}
