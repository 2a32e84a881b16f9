package repository

import (
	"context"

	"anoa.com/unimarket/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FavoriteRepository interface {
	// Toggle deletes the (student, product) favorite when it exists and creates it otherwise.
	// It reports true when the favorite was added.
	Toggle(ctx context.Context, studentID, productID uuid.UUID) (bool, error)
	ListProducts(ctx context.Context, studentID uuid.UUID) ([]entity.Product, error)
	CountForProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	Exists(ctx context.Context, studentID, productID uuid.UUID) (bool, error)
}

type favoriteRepository struct {
	db *gorm.DB
}

func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) Toggle(ctx context.Context, studentID, productID uuid.UUID) (bool, error) {
	// Find with a slice avoids gorm's "record not found" log noise from First()
	var existing []entity.Favorite
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND product_id = ?", studentID, productID).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return false, err
	}

	if len(existing) > 0 {
		if err := r.db.WithContext(ctx).Delete(&existing[0]).Error; err != nil {
			return false, err
		}
		return false, nil
	}

	favorite := &entity.Favorite{StudentID: studentID, ProductID: productID}
	if err := r.db.WithContext(ctx).Omit("Student", "Product").Create(favorite).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *favoriteRepository) ListProducts(ctx context.Context, studentID uuid.UUID) ([]entity.Product, error) {
	var products []entity.Product
	err := r.db.WithContext(ctx).
		Joins("JOIN favorites ON favorites.product_id = products.id").
		Where("favorites.student_id = ?", studentID).
		Order("favorites.created_at DESC").
		Preload("Category").
		Preload("Seller").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Find(&products).Error
	return products, err
}

func (r *favoriteRepository) CountForProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Favorite{}).Where("product_id = ?", productID).Count(&count).Error
	return count, err
}

func (r *favoriteRepository) Exists(ctx context.Context, studentID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Favorite{}).
		Where("student_id = ? AND product_id = ?", studentID, productID).
		Count(&count).Error
	return count > 0, err
}
