package repository

import (
	"context"

	"anoa.com/unimarket/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Aggregate is the running total of stars a student has received.
type Aggregate struct {
	Sum   int64
	Count int64
}

type RatingRepository interface {
	// Transaction runs fn against a repository bound to a single database transaction.
	Transaction(ctx context.Context, fn func(repo RatingRepository) error) error
	Upsert(ctx context.Context, rating *entity.Rating) error
	FindByKey(ctx context.Context, raterID, ratedID uuid.UUID, productScope string) (*entity.Rating, error)
	ExistsForKey(ctx context.Context, raterID, ratedID uuid.UUID, productScope string) (bool, error)
	ExistsAny(ctx context.Context, raterID, ratedID uuid.UUID) (bool, error)
	Aggregate(ctx context.Context, ratedID uuid.UUID) (Aggregate, error)
	Distribution(ctx context.Context, ratedID uuid.UUID) (map[int]int64, error)
	ListReceived(ctx context.Context, ratedID uuid.UUID, limit, offset int) ([]entity.Rating, int64, error)
	UpdateReputationScore(ctx context.Context, studentID uuid.UUID, score int) error
	// HealReputationScore writes score only while the stored value still equals expected.
	// It reports whether a row was updated.
	HealReputationScore(ctx context.Context, studentID uuid.UUID, expected, score int) (bool, error)
}

type ratingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Transaction(ctx context.Context, fn func(repo RatingRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ratingRepository{db: tx})
	})
}

// Upsert inserts the rating or, when the (rater, rated, product scope) key already exists,
// overwrites stars, comment, product and updated_at in place. The row id is only
// reliable after a reload through FindByKey.
func (r *ratingRepository) Upsert(ctx context.Context, rating *entity.Rating) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "rater_id"}, {Name: "rated_id"}, {Name: "product_scope"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"stars":      rating.Stars,
			"comment":    rating.Comment,
			"product_id": rating.ProductID,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(rating).Error
}

func (r *ratingRepository) FindByKey(ctx context.Context, raterID, ratedID uuid.UUID, productScope string) (*entity.Rating, error) {
	var rating entity.Rating
	err := r.db.WithContext(ctx).
		Where("rater_id = ? AND rated_id = ? AND product_scope = ?", raterID, ratedID, productScope).
		First(&rating).Error
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *ratingRepository) ExistsForKey(ctx context.Context, raterID, ratedID uuid.UUID, productScope string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Rating{}).
		Where("rater_id = ? AND rated_id = ? AND product_scope = ?", raterID, ratedID, productScope).
		Count(&count).Error
	return count > 0, err
}

func (r *ratingRepository) ExistsAny(ctx context.Context, raterID, ratedID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Rating{}).
		Where("rater_id = ? AND rated_id = ?", raterID, ratedID).
		Count(&count).Error
	return count > 0, err
}

func (r *ratingRepository) Aggregate(ctx context.Context, ratedID uuid.UUID) (Aggregate, error) {
	var agg Aggregate
	err := r.db.WithContext(ctx).Model(&entity.Rating{}).
		Select("COALESCE(SUM(stars), 0) AS sum, COUNT(*) AS count").
		Where("rated_id = ?", ratedID).
		Scan(&agg).Error
	return agg, err
}

func (r *ratingRepository) Distribution(ctx context.Context, ratedID uuid.UUID) (map[int]int64, error) {
	type bucket struct {
		Stars int
		Count int64
	}
	var buckets []bucket

	err := r.db.WithContext(ctx).Model(&entity.Rating{}).
		Select("stars, COUNT(*) AS count").
		Where("rated_id = ?", ratedID).
		Group("stars").
		Scan(&buckets).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[int]int64, len(buckets))
	for _, b := range buckets {
		counts[b.Stars] = b.Count
	}
	return counts, nil
}

func (r *ratingRepository) ListReceived(ctx context.Context, ratedID uuid.UUID, limit, offset int) ([]entity.Rating, int64, error) {
	var ratings []entity.Rating
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Rating{}).Where("rated_id = ?", ratedID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Rater", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "handle", "first_name", "last_name", "avatar_url", "institution")
		}).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&ratings).Error
	return ratings, total, err
}

func (r *ratingRepository) UpdateReputationScore(ctx context.Context, studentID uuid.UUID, score int) error {
	return r.db.WithContext(ctx).Model(&entity.Student{}).
		Where("id = ?", studentID).
		UpdateColumn("reputation_score", score).Error
}

func (r *ratingRepository) HealReputationScore(ctx context.Context, studentID uuid.UUID, expected, score int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Student{}).
		Where("id = ? AND reputation_score = ?", studentID, expected).
		UpdateColumn("reputation_score", score)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
