package bootstrap

import (
	"anoa.com/unimarket/internal/entity"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Student{},
		&entity.Category{},
		&entity.Product{},
		&entity.ProductImage{},
		&entity.Favorite{},
		&entity.Rating{},
		&entity.Notification{},
	)
}
