package dto

import (
	"io"

	"github.com/google/uuid"
)

type CategoryFilter struct {
	Search string `form:"search"`
}

type ProductFilter struct {
	Search    string   `form:"search"`
	Category  string   `form:"category"` // category slug
	Condition string   `form:"condition" binding:"omitempty,oneof=nuevo como_nuevo bueno regular necesita_reparacion"`
	MinPrice  *float64 `form:"min_price" binding:"omitempty,gte=0"`
	MaxPrice  *float64 `form:"max_price" binding:"omitempty,gte=0"`
	SortBy    string   `form:"sort_by" binding:"omitempty,oneof=newest price_asc price_desc popular"`
	Page      int      `form:"page" binding:"omitempty,min=1"`
	Limit     int      `form:"limit" binding:"omitempty,min=1,max=50"`
}

type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

// Normalize fills in default paging values.
func (q *PageQuery) Normalize() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 12
	}
}

type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
}

func NewPaginationMeta(page, limit int, total int64) PaginationMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PaginationMeta{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		Limit:       limit,
	}
}

type CategoryResponse struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Slug              string    `json:"slug"`
	Description       string    `json:"description"`
	Icon              string    `json:"icon"`
	AvailableProducts int64     `json:"available_products"`
}

type SellerResponse struct {
	ID              uuid.UUID `json:"id"`
	Handle          string    `json:"handle"`
	FullName        string    `json:"full_name"`
	Institution     string    `json:"institution"`
	AvatarURL       *string   `json:"avatar_url"`
	ReputationScore int       `json:"reputation_score"`
}

type ImageResponse struct {
	ID       uuid.UUID `json:"id"`
	URL      string    `json:"url"`
	Position int       `json:"position"`
}

type ProductResponse struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Price        float64           `json:"price"`
	Condition    string            `json:"condition"`
	Status       string            `json:"status"`
	Stock        int               `json:"stock"`
	IsMultiple   bool              `json:"is_multiple"`
	DeliveryType string            `json:"delivery_type"`
	Views        int               `json:"views"`
	Tags         []string          `json:"tags"`
	Category     *CategoryResponse `json:"category"`
	Seller       SellerResponse    `json:"seller"`
	Images       []ImageResponse   `json:"images"`
	IsNew        bool              `json:"is_new"`
	HasStock     bool              `json:"has_stock"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

type PaginatedProductResponse struct {
	Data []ProductResponse `json:"data"`
	Meta PaginationMeta    `json:"meta"`
}

// ReputationSummary is the read-side view of a student's received ratings.
type ReputationSummary struct {
	Score          int           `json:"score"`
	Average        float64       `json:"average"`
	AverageDisplay float64       `json:"average_display"`
	TotalRatings   int64         `json:"total_ratings"`
	Distribution   map[int]int64 `json:"distribution"`
}

// ImageFile is an uploaded file handed from a handler to a service.
type ImageFile struct {
	Reader   io.Reader
	FileName string
	Size     int64
}
