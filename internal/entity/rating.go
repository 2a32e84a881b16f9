package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MinStars         = 1
	MaxStars         = 5
	MaxCommentLength = 1000
)

// Rating is one student's opinion of another, optionally about a specific product.
// The key (rater, rated, product scope) is unique; resubmitting replaces the row.
type Rating struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RaterID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_ratings_key,priority:1;check:chk_ratings_not_self,rater_id <> rated_id" json:"rater_id"`
	Rater        *Student   `gorm:"foreignKey:RaterID;constraint:OnDelete:CASCADE" json:"rater,omitempty"`
	RatedID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_ratings_key,priority:2;index" json:"rated_id"`
	Rated        *Student   `gorm:"foreignKey:RatedID;constraint:OnDelete:CASCADE" json:"-"`
	ProductScope string     `gorm:"size:36;not null;default:'';uniqueIndex:idx_ratings_key,priority:3" json:"-"`
	ProductID    *uuid.UUID `gorm:"type:uuid" json:"product_id"`
	Product      *Product   `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	Stars        int        `gorm:"type:smallint;not null;check:chk_ratings_stars_range,stars BETWEEN 1 AND 5" json:"stars"`
	Comment      string     `gorm:"type:text" json:"comment"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Rating) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID, err = uuid.NewV7()
	}
	return
}

// RatingScope is the value stored in ProductScope. Postgres treats NULLs as distinct in a
// unique index, so the "no product" case is stored as an empty string instead.
func RatingScope(productID *uuid.UUID) string {
	if productID == nil {
		return ""
	}
	return productID.String()
}

func IsValidStars(stars int) bool {
	return stars >= MinStars && stars <= MaxStars
}
