package repository

import (
	"context"

	"anoa.com/unimarket/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SearchParams filters the public catalog. Results are always restricted to available products.
type SearchParams struct {
	Text       string
	CategoryID *uuid.UUID
	Condition  string
	MinPrice   *float64
	MaxPrice   *float64
	SortBy     string
	Offset     int
	Limit      int
}

// editableColumns are written by Update. Status, views and seller have their own paths.
var editableColumns = []string{"name", "description", "category_id", "price", "condition", "stock", "is_multiple", "delivery_type", "tags"}

type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Product, error)
	Search(ctx context.Context, params SearchParams) ([]entity.Product, int64, error)
	FindBySeller(ctx context.Context, sellerID uuid.UUID, onlyAvailable bool, offset, limit int) ([]entity.Product, int64, error)
	FindInBatches(ctx context.Context, batchSize int, fn func(products []entity.Product) error) error
	Update(ctx context.Context, product *entity.Product) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error

	AddImages(ctx context.Context, images []entity.ProductImage) error
	CountImages(ctx context.Context, productID uuid.UUID) (int64, error)
	FindImage(ctx context.Context, productID, imageID uuid.UUID) (*entity.ProductImage, error)
	DeleteImage(ctx context.Context, imageID uuid.UUID) error

	IncrementViews(ctx context.Context, id uuid.UUID) error
	AddViews(ctx context.Context, id uuid.UUID, n int) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Category").
		Preload("Seller").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		})
}

func (r *productRepository) Create(ctx context.Context, product *entity.Product) error {
	return r.db.WithContext(ctx).Omit("Category", "Seller", "Images").Create(product).Error
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	var product entity.Product
	if err := r.withRelations(r.db.WithContext(ctx)).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the given products in no particular order.
func (r *productRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Product, error) {
	var products []entity.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := r.withRelations(r.db.WithContext(ctx)).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

func (r *productRepository) Search(ctx context.Context, params SearchParams) ([]entity.Product, int64, error) {
	var products []entity.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Product{}).Where("status = ?", entity.ProductStatusAvailable)

	if params.Text != "" {
		like := "%" + params.Text + "%"
		query = query.Where("(name ILIKE ? OR description ILIKE ? OR ? = ANY(tags))", like, like, params.Text)
	}
	if params.CategoryID != nil {
		query = query.Where("category_id = ?", *params.CategoryID)
	}
	if params.Condition != "" {
		query = query.Where("condition = ?", params.Condition)
	}
	if params.MinPrice != nil {
		query = query.Where("price >= ?", *params.MinPrice)
	}
	if params.MaxPrice != nil {
		query = query.Where("price <= ?", *params.MaxPrice)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.withRelations(query).
		Order(orderFor(params.SortBy)).
		Offset(params.Offset).
		Limit(params.Limit).
		Find(&products).Error
	return products, total, err
}

func orderFor(sortBy string) string {
	switch sortBy {
	case "price_asc":
		return "price ASC, created_at DESC"
	case "price_desc":
		return "price DESC, created_at DESC"
	case "popular":
		return "views DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

func (r *productRepository) FindBySeller(ctx context.Context, sellerID uuid.UUID, onlyAvailable bool, offset, limit int) ([]entity.Product, int64, error) {
	var products []entity.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Product{}).Where("seller_id = ?", sellerID)
	if onlyAvailable {
		query = query.Where("status = ?", entity.ProductStatusAvailable)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.withRelations(query).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&products).Error
	return products, total, err
}

func (r *productRepository) FindInBatches(ctx context.Context, batchSize int, fn func(products []entity.Product) error) error {
	var batch []entity.Product
	return r.withRelations(r.db.WithContext(ctx)).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}

func (r *productRepository) Update(ctx context.Context, product *entity.Product) error {
	return r.db.WithContext(ctx).Model(product).Select(editableColumns).Updates(product).Error
}

func (r *productRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&entity.Product{}).Where("id = ?", id).Update("status", status).Error
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.Product{}, "id = ?", id).Error
}

func (r *productRepository) AddImages(ctx context.Context, images []entity.ProductImage) error {
	if len(images) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&images).Error
}

func (r *productRepository) CountImages(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ProductImage{}).Where("product_id = ?", productID).Count(&count).Error
	return count, err
}

func (r *productRepository) FindImage(ctx context.Context, productID, imageID uuid.UUID) (*entity.ProductImage, error) {
	var image entity.ProductImage
	if err := r.db.WithContext(ctx).Where("id = ? AND product_id = ?", imageID, productID).First(&image).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *productRepository) DeleteImage(ctx context.Context, imageID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.ProductImage{}, "id = ?", imageID).Error
}

func (r *productRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return r.AddViews(ctx, id, 1)
}

func (r *productRepository) AddViews(ctx context.Context, id uuid.UUID, n int) error {
	return r.db.WithContext(ctx).Model(&entity.Product{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", n)).Error
}
