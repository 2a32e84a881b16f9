package server

import (
	"fmt"

	"anoa.com/unimarket/internal/config"
	categoryRepo "anoa.com/unimarket/internal/modules/category/repository"
	categoryService "anoa.com/unimarket/internal/modules/category/service"
	favoriteRepo "anoa.com/unimarket/internal/modules/favorite/repository"
	favoriteService "anoa.com/unimarket/internal/modules/favorite/service"
	notifRepo "anoa.com/unimarket/internal/modules/notification/repository"
	notifService "anoa.com/unimarket/internal/modules/notification/service"
	productRepo "anoa.com/unimarket/internal/modules/product/repository"
	productService "anoa.com/unimarket/internal/modules/product/service"
	reputationRepo "anoa.com/unimarket/internal/modules/reputation/repository"
	reputationService "anoa.com/unimarket/internal/modules/reputation/service"
	searchService "anoa.com/unimarket/internal/modules/search/service"
	studentRepo "anoa.com/unimarket/internal/modules/student/repository"
	studentService "anoa.com/unimarket/internal/modules/student/service"
	viewService "anoa.com/unimarket/internal/modules/view/service"
	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/storage"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds the wired repositories and services. The HTTP server and the
// CLI maintenance commands share it.
type Container struct {
	DB          *gorm.DB
	RedisClient *redis.Client

	StudentRepo  studentRepo.StudentRepository
	CategoryRepo categoryRepo.CategoryRepository

	Students      studentService.Service
	Categories    categoryService.CategoryService
	Notifications notifService.Service
	Reputation    reputationService.Service
	Favorites     favoriteService.Service
	Products      productService.Service
	Views         viewService.ViewService
	Search        searchService.Service
}

func NewContainer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Container, error) {
	var imageStorage storage.ImageStorage
	if cfg.CloudinaryURL != "" {
		cld, err := storage.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.CloudinaryCloudName, cfg.CloudinaryUploadFolder)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cloudinary storage: %w", err)
		}
		imageStorage = cld
	} else {
		logger.L().Info("CLOUDINARY_URL not set, image uploads are disabled")
	}

	var search searchService.Service
	if cfg.SearchEnabled() {
		meiliClient := meilisearch.New(cfg.MeiliSearchHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
		search = searchService.NewMeiliSearchService(meiliClient)
	} else {
		logger.L().Info("MEILISEARCH_HOST not set, catalog search uses the database")
	}

	c := &Container{
		DB:           db,
		RedisClient:  redisClient,
		StudentRepo:  studentRepo.NewStudentRepository(db),
		CategoryRepo: categoryRepo.NewCategoryRepository(db),
		Search:       search,
	}

	products := productRepo.NewProductRepository(db)

	c.Students = studentService.NewService(c.StudentRepo, imageStorage)
	c.Categories = categoryService.NewCategoryService(c.CategoryRepo)
	c.Notifications = notifService.NewService(notifRepo.NewNotificationRepository(db), c.Students, redisClient)
	c.Reputation = reputationService.NewService(
		reputationRepo.NewRatingRepository(db),
		c.Students,
		c.StudentRepo,
		products,
		c.Notifications,
	)
	c.Favorites = favoriteService.NewService(
		favoriteRepo.NewFavoriteRepository(db),
		c.Students,
		products,
		redisClient,
		c.Notifications,
	)
	c.Views = viewService.NewViewService(redisClient, products)
	c.Products = productService.NewService(
		products,
		c.Students,
		c.Categories,
		c.Favorites,
		imageStorage,
		redisClient,
		search,
		c.Views,
		productService.Limits{Global: cfg.RateLimitGlobal, Product: cfg.RateLimitProduct},
	)

	return c, nil
}
