package dto

import (
	"time"

	"anoa.com/unimarket/internal/entity"
	commonDto "anoa.com/unimarket/pkg/dto"
	"github.com/google/uuid"
)

type CreateProductRequest struct {
	Name         string  `json:"name" binding:"required,max=100"`
	Description  string  `json:"description" binding:"required,max=5000"`
	Category     string  `json:"category" binding:"omitempty,max=100"`
	Price        float64 `json:"price" binding:"required,gte=0.01"`
	Condition    string  `json:"condition" binding:"omitempty,oneof=nuevo como_nuevo bueno regular necesita_reparacion"`
	Stock        int     `json:"stock" binding:"omitempty,min=1"`
	IsMultiple   bool    `json:"is_multiple"`
	DeliveryType string  `json:"delivery_type" binding:"omitempty,oneof=pickup shipping both"`
	Tags         string  `json:"tags" binding:"max=200"`
}

type UpdateProductRequest struct {
	Name         *string  `json:"name" binding:"omitempty,min=1,max=100"`
	Description  *string  `json:"description" binding:"omitempty,min=1,max=5000"`
	Category     *string  `json:"category" binding:"omitempty,max=100"`
	Price        *float64 `json:"price" binding:"omitempty,gte=0.01"`
	Condition    *string  `json:"condition" binding:"omitempty,oneof=nuevo como_nuevo bueno regular necesita_reparacion"`
	Stock        *int     `json:"stock" binding:"omitempty,min=1"`
	IsMultiple   *bool    `json:"is_multiple"`
	DeliveryType *string  `json:"delivery_type" binding:"omitempty,oneof=pickup shipping both"`
	Tags         *string  `json:"tags" binding:"omitempty,max=200"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=available sold reserved inactive"`
}

// ProductDetailResponse adds viewer-specific flags to a product.
type ProductDetailResponse struct {
	commonDto.ProductResponse
	FavoriteCount int64 `json:"favorite_count"`
	IsFavorite    bool  `json:"is_favorite"`
	CanEdit       bool  `json:"can_edit"`
	CanDelete     bool  `json:"can_delete"`
}

func NewSellerResponse(s *entity.Student) commonDto.SellerResponse {
	if s == nil {
		return commonDto.SellerResponse{}
	}
	return commonDto.SellerResponse{
		ID:              s.ID,
		Handle:          s.Handle,
		FullName:        s.FullName(),
		Institution:     s.Institution,
		AvatarURL:       s.AvatarURL,
		ReputationScore: s.ReputationScore,
	}
}

func NewProductResponse(p *entity.Product, now time.Time) commonDto.ProductResponse {
	res := commonDto.ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		Condition:    p.Condition,
		Status:       p.Status,
		Stock:        p.Stock,
		IsMultiple:   p.IsMultiple,
		DeliveryType: p.DeliveryType,
		Views:        p.Views,
		Tags:         []string(p.Tags),
		Seller:       NewSellerResponse(p.Seller),
		Images:       make([]commonDto.ImageResponse, 0, len(p.Images)),
		IsNew:        p.IsNew(now),
		HasStock:     p.HasStock(),
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.Format(time.RFC3339),
	}
	if res.Tags == nil {
		res.Tags = []string{}
	}
	if p.Seller == nil {
		res.Seller.ID = p.SellerID
	}
	if p.Category != nil {
		res.Category = &commonDto.CategoryResponse{
			ID:          p.Category.ID,
			Name:        p.Category.Name,
			Slug:        p.Category.Slug,
			Description: p.Category.Description,
			Icon:        p.Category.Icon,
		}
	}
	for _, img := range p.Images {
		res.Images = append(res.Images, commonDto.ImageResponse{
			ID:       img.ID,
			URL:      img.URL,
			Position: img.Position,
		})
	}
	return res
}

func NewProductResponses(products []entity.Product, now time.Time) []commonDto.ProductResponse {
	res := make([]commonDto.ProductResponse, 0, len(products))
	for i := range products {
		res = append(res, NewProductResponse(&products[i], now))
	}
	return res
}

// OrderByIDs returns products arranged in the order of ids, dropping ids with no product.
func OrderByIDs(products []entity.Product, ids []uuid.UUID) []entity.Product {
	byID := make(map[uuid.UUID]entity.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	ordered := make([]entity.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
