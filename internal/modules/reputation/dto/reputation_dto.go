package dto

import (
	"time"

	"anoa.com/unimarket/internal/entity"
	commonDto "anoa.com/unimarket/pkg/dto"
	"github.com/google/uuid"
)

type SubmitRatingRequest struct {
	Stars     int        `json:"stars" binding:"required,min=1,max=5"`
	Comment   string     `json:"comment" binding:"max=1000"`
	ProductID *uuid.UUID `json:"product_id"`
}

type CanRateQuery struct {
	ProductID string `form:"product_id" binding:"omitempty,uuid"`
}

type RaterResponse struct {
	ID          uuid.UUID `json:"id"`
	Handle      string    `json:"handle"`
	FullName    string    `json:"full_name"`
	Institution string    `json:"institution"`
	AvatarURL   *string   `json:"avatar_url"`
}

type RatingResponse struct {
	ID        uuid.UUID      `json:"id"`
	RatedID   uuid.UUID      `json:"rated_id"`
	ProductID *uuid.UUID     `json:"product_id"`
	Stars     int            `json:"stars"`
	Comment   string         `json:"comment"`
	Rater     *RaterResponse `json:"rater,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SubmitRatingResponse carries the stored rating and the rated student's refreshed score.
type SubmitRatingResponse struct {
	Rating          RatingResponse `json:"rating"`
	ReputationScore int            `json:"reputation_score"`
}

type CanRateResponse struct {
	CanRate            bool `json:"can_rate"`
	HasRatedForProduct bool `json:"has_rated_for_product"`
	HasEverRated       bool `json:"has_ever_rated"`
}

type PaginatedRatingResponse struct {
	Data []RatingResponse         `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}

func NewRatingResponse(r *entity.Rating) RatingResponse {
	res := RatingResponse{
		ID:        r.ID,
		RatedID:   r.RatedID,
		ProductID: r.ProductID,
		Stars:     r.Stars,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Rater != nil {
		res.Rater = &RaterResponse{
			ID:          r.Rater.ID,
			Handle:      r.Rater.Handle,
			FullName:    r.Rater.FullName(),
			Institution: r.Rater.Institution,
			AvatarURL:   r.Rater.AvatarURL,
		}
	}
	return res
}
