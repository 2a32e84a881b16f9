package product

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/unimarket/internal/entity"
	"anoa.com/unimarket/pkg/apperror"
	commonDto "anoa.com/unimarket/pkg/dto"
	"anoa.com/unimarket/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const imageFolder = "products"

func (s *service) UploadImages(ctx context.Context, identity string, productID uuid.UUID, files []commonDto.ImageFile) ([]commonDto.ImageResponse, error) {
	product, err := s.ownedProduct(ctx, identity, productID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images provided: %w", apperror.ErrInvalidInput)
	}
	if s.imageStorage == nil {
		return nil, fmt.Errorf("image uploads are not configured: %w", apperror.ErrBadRequest)
	}

	existing, err := s.repo.CountImages(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	if int(existing)+len(files) > entity.MaxImagesPerProduct {
		return nil, fmt.Errorf("a product can have at most %d images: %w", entity.MaxImagesPerProduct, apperror.ErrInvalidInput)
	}

	log := logger.FromContext(ctx).WithField("product_id", product.ID)
	images := make([]entity.ProductImage, 0, len(files))
	cleanup := func() {
		for _, img := range images {
			if err := s.imageStorage.DeleteImage(ctx, img.URL); err != nil {
				log.WithError(err).Warn("failed to delete orphaned product image")
			}
		}
	}

	for i, file := range files {
		url, err := s.imageStorage.UploadImage(ctx, file.Reader, imageFolder, file.FileName)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to upload image: %w", err)
		}
		images = append(images, entity.ProductImage{
			ProductID: product.ID,
			URL:       url,
			Position:  int(existing) + i,
		})
	}

	if err := s.repo.AddImages(ctx, images); err != nil {
		cleanup()
		return nil, err
	}

	res := make([]commonDto.ImageResponse, 0, len(images))
	for _, img := range images {
		res = append(res, commonDto.ImageResponse{ID: img.ID, URL: img.URL, Position: img.Position})
	}
	return res, nil
}

func (s *service) DeleteImage(ctx context.Context, identity string, productID, imageID uuid.UUID) error {
	product, err := s.ownedProduct(ctx, identity, productID)
	if err != nil {
		return err
	}

	image, err := s.repo.FindImage(ctx, product.ID, imageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("image: %w", apperror.ErrNotFound)
		}
		return err
	}

	if err := s.repo.DeleteImage(ctx, image.ID); err != nil {
		return err
	}

	if s.imageStorage == nil {
		return nil
	}
	if err := s.imageStorage.DeleteImage(ctx, image.URL); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("image_id", image.ID).Warn("failed to delete product image from storage")
	}
	return nil
}
