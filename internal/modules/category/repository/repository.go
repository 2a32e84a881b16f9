package repository

import (
	"context"

	"anoa.com/unimarket/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CategoryRepository interface {
	// EnsureExists inserts the category unless one with the same slug is already stored.
	EnsureExists(ctx context.Context, category *entity.Category) error
	FindBySlug(ctx context.Context, slug string) (*entity.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Category, error)
	FindAllWithCounts(ctx context.Context, search string) ([]entity.CategoryWithCount, error)
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) EnsureExists(ctx context.Context, category *entity.Category) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(category).Error
}

func (r *categoryRepository) FindBySlug(ctx context.Context, slug string) (*entity.Category, error) {
	var category entity.Category
	if err := r.db.WithContext(ctx).Where("slug = ? AND active = ?", slug, true).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Category, error) {
	var category entity.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) FindAllWithCounts(ctx context.Context, search string) ([]entity.CategoryWithCount, error) {
	var categories []entity.CategoryWithCount

	query := r.db.WithContext(ctx).
		Model(&entity.Category{}).
		Select("categories.*, COUNT(products.id) AS available_products").
		Joins("LEFT JOIN products ON products.category_id = categories.id AND products.status = ?", entity.ProductStatusAvailable).
		Where("categories.active = ?", true)

	if search != "" {
		query = query.Where("categories.name ILIKE ?", "%"+search+"%")
	}

	err := query.
		Group("categories.id").
		Order("categories.name ASC").
		Scan(&categories).Error
	return categories, err
}
