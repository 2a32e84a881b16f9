package dto

import (
	commonDto "anoa.com/unimarket/pkg/dto"
)

const (
	StatusAdded   = "added"
	StatusRemoved = "removed"
)

type ToggleFavoriteResponse struct {
	Status        string `json:"status"`
	FavoriteCount int64  `json:"favorite_count"`
}

type FavoriteListResponse struct {
	Data []commonDto.ProductResponse `json:"data"`
}

// FavoriteSummary is derived entirely from the favorites list.
type FavoriteSummary struct {
	Total                int     `json:"total"`
	AvailableCount       int     `json:"available_count"`
	AvailableTotalPrice  float64 `json:"available_total_price"`
	DistinctInstitutions int     `json:"distinct_institutions"`
}
