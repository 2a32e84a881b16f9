package reputation

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"anoa.com/unimarket/internal/entity"
	repDto "anoa.com/unimarket/internal/modules/reputation/dto"
	"anoa.com/unimarket/internal/modules/reputation/repository"
	student "anoa.com/unimarket/internal/modules/student/service"
	"anoa.com/unimarket/pkg/apperror"
	commonDto "anoa.com/unimarket/pkg/dto"
	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/metrics"
	"anoa.com/unimarket/pkg/sanitizer"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProductFinder is the slice of the catalog the engine needs to validate a product context.
type ProductFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Product, error)
}

// StudentIDSource lists every student for bulk reconciliation.
type StudentIDSource interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

type Notifier interface {
	Create(ctx context.Context, notification *entity.Notification) error
}

type Service interface {
	SubmitRating(ctx context.Context, identity, ratedHandle string, req repDto.SubmitRatingRequest) (*repDto.SubmitRatingResponse, error)
	RecomputeReputation(ctx context.Context, studentID uuid.UUID) (int, error)
	RecomputeAll(ctx context.Context) (int, error)
	CanRateStudent(ctx context.Context, identity, candidateHandle string) (bool, error)
	HasRatedForProduct(ctx context.Context, identity, candidateHandle string, productID *uuid.UUID) (bool, error)
	HasEverRated(ctx context.Context, identity, candidateHandle string) (bool, error)
	Eligibility(ctx context.Context, identity, candidateHandle string, productID *uuid.UUID) (*repDto.CanRateResponse, error)
	RatingDistribution(ctx context.Context, studentID uuid.UUID) (map[int]int64, error)
	AverageRating(ctx context.Context, studentID uuid.UUID) (float64, error)
	GetSummary(ctx context.Context, handle string) (*commonDto.ReputationSummary, error)
	SummaryFor(ctx context.Context, st *entity.Student) (*commonDto.ReputationSummary, error)
	ListReceivedRatings(ctx context.Context, handle string, page commonDto.PageQuery) (*repDto.PaginatedRatingResponse, error)
}

type service struct {
	repo       repository.RatingRepository
	students   student.Directory
	studentIDs StudentIDSource
	products   ProductFinder
	notifier   Notifier
}

func NewService(
	repo repository.RatingRepository,
	students student.Directory,
	studentIDs StudentIDSource,
	products ProductFinder,
	notifier Notifier,
) Service {
	return &service{
		repo:       repo,
		students:   students,
		studentIDs: studentIDs,
		products:   products,
		notifier:   notifier,
	}
}

func (s *service) SubmitRating(ctx context.Context, identity, ratedHandle string, req repDto.SubmitRatingRequest) (*repDto.SubmitRatingResponse, error) {
	res, err := s.submitRating(ctx, identity, ratedHandle, req)
	if err != nil {
		metrics.RatingsSubmitted.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	metrics.RatingsSubmitted.WithLabelValues("ok").Inc()
	return res, nil
}

func (s *service) submitRating(ctx context.Context, identity, ratedHandle string, req repDto.SubmitRatingRequest) (*repDto.SubmitRatingResponse, error) {
	rater, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return nil, err
	}

	rated, err := s.students.GetByHandle(ctx, ratedHandle)
	if err != nil {
		return nil, err
	}

	if !CanRate(rater.ID, rated.ID) {
		return nil, fmt.Errorf("students cannot rate themselves: %w", apperror.ErrSelfAction)
	}

	if !entity.IsValidStars(req.Stars) {
		return nil, fmt.Errorf("stars must be between %d and %d: %w", entity.MinStars, entity.MaxStars, apperror.ErrInvalidInput)
	}

	if req.ProductID != nil {
		if _, err := s.products.FindByID(ctx, *req.ProductID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("product: %w", apperror.ErrNotFound)
			}
			return nil, err
		}
	}

	comment := sanitizer.MultilineText(req.Comment)
	if utf8.RuneCountInString(comment) > entity.MaxCommentLength {
		return nil, fmt.Errorf("comment must be at most %d characters: %w", entity.MaxCommentLength, apperror.ErrInvalidInput)
	}

	rating := &entity.Rating{
		RaterID:      rater.ID,
		RatedID:      rated.ID,
		ProductID:    req.ProductID,
		ProductScope: entity.RatingScope(req.ProductID),
		Stars:        req.Stars,
		Comment:      comment,
	}

	var saved *entity.Rating
	var score int
	err = s.repo.Transaction(ctx, func(tx repository.RatingRepository) error {
		if err := tx.Upsert(ctx, rating); err != nil {
			return err
		}

		var err error
		saved, err = tx.FindByKey(ctx, rater.ID, rated.ID, rating.ProductScope)
		if err != nil {
			return err
		}

		score, err = s.recompute(ctx, tx, rated.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("rating already exists, reload and resubmit: %w", apperror.ErrConflict)
		}
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"rater_id": rater.ID,
		"rated_id": rated.ID,
		"stars":    saved.Stars,
		"score":    score,
	}).Info("rating submitted")

	s.notifyRated(ctx, rater, rated, saved)

	saved.Rater = rater
	return &repDto.SubmitRatingResponse{
		Rating:          repDto.NewRatingResponse(saved),
		ReputationScore: score,
	}, nil
}

func (s *service) notifyRated(ctx context.Context, rater, rated *entity.Student, rating *entity.Rating) {
	if s.notifier == nil {
		return
	}

	notification := &entity.Notification{
		StudentID:  rated.ID,
		ActorID:    rater.ID,
		EntityID:   rated.ID,
		EntityType: "student",
		Type:       entity.NotificationRatingReceived,
		Message:    fmt.Sprintf("@%s rated you %d stars", rater.Handle, rating.Stars),
	}
	if err := s.notifier.Create(ctx, notification); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("student_id", rated.ID).Warn("failed to create rating notification")
	}
}

func (s *service) RecomputeReputation(ctx context.Context, studentID uuid.UUID) (int, error) {
	return s.recompute(ctx, s.repo, studentID)
}

// recompute derives the score from the stored ratings and persists it through repo,
// which may be bound to an open transaction.
func (s *service) recompute(ctx context.Context, repo repository.RatingRepository, studentID uuid.UUID) (int, error) {
	agg, err := repo.Aggregate(ctx, studentID)
	if err != nil {
		metrics.ReputationRecomputations.WithLabelValues("error").Inc()
		return 0, err
	}

	score := ComputeScore(agg.Sum, agg.Count)
	if err := repo.UpdateReputationScore(ctx, studentID, score); err != nil {
		metrics.ReputationRecomputations.WithLabelValues("error").Inc()
		return 0, err
	}

	metrics.ReputationRecomputations.WithLabelValues("ok").Inc()
	return score, nil
}

func (s *service) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := s.studentIDs.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if _, err := s.RecomputeReputation(ctx, id); err != nil {
			return updated, fmt.Errorf("recompute %s: %w", id, err)
		}
		updated++
	}
	return updated, nil
}

func (s *service) resolvePair(ctx context.Context, identity, candidateHandle string) (*entity.Student, *entity.Student, error) {
	rater, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	candidate, err := s.students.GetByHandle(ctx, candidateHandle)
	if err != nil {
		return nil, nil, err
	}
	return rater, candidate, nil
}

func (s *service) CanRateStudent(ctx context.Context, identity, candidateHandle string) (bool, error) {
	rater, candidate, err := s.resolvePair(ctx, identity, candidateHandle)
	if err != nil {
		return false, err
	}
	return CanRate(rater.ID, candidate.ID), nil
}

func (s *service) HasRatedForProduct(ctx context.Context, identity, candidateHandle string, productID *uuid.UUID) (bool, error) {
	rater, candidate, err := s.resolvePair(ctx, identity, candidateHandle)
	if err != nil {
		return false, err
	}
	return s.repo.ExistsForKey(ctx, rater.ID, candidate.ID, entity.RatingScope(productID))
}

func (s *service) HasEverRated(ctx context.Context, identity, candidateHandle string) (bool, error) {
	rater, candidate, err := s.resolvePair(ctx, identity, candidateHandle)
	if err != nil {
		return false, err
	}
	return s.repo.ExistsAny(ctx, rater.ID, candidate.ID)
}

// Eligibility answers all three rating questions in one call for the profile page.
func (s *service) Eligibility(ctx context.Context, identity, candidateHandle string, productID *uuid.UUID) (*repDto.CanRateResponse, error) {
	rater, candidate, err := s.resolvePair(ctx, identity, candidateHandle)
	if err != nil {
		return nil, err
	}

	forProduct, err := s.repo.ExistsForKey(ctx, rater.ID, candidate.ID, entity.RatingScope(productID))
	if err != nil {
		return nil, err
	}
	ever, err := s.repo.ExistsAny(ctx, rater.ID, candidate.ID)
	if err != nil {
		return nil, err
	}

	return &repDto.CanRateResponse{
		CanRate:            CanRate(rater.ID, candidate.ID),
		HasRatedForProduct: forProduct,
		HasEverRated:       ever,
	}, nil
}

func (s *service) RatingDistribution(ctx context.Context, studentID uuid.UUID) (map[int]int64, error) {
	counts, err := s.repo.Distribution(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return FillDistribution(counts), nil
}

func (s *service) AverageRating(ctx context.Context, studentID uuid.UUID) (float64, error) {
	agg, err := s.repo.Aggregate(ctx, studentID)
	if err != nil {
		return 0, err
	}
	return Average(agg.Sum, agg.Count), nil
}

func (s *service) GetSummary(ctx context.Context, handle string) (*commonDto.ReputationSummary, error) {
	st, err := s.students.GetByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return s.SummaryFor(ctx, st)
}

// SummaryFor builds the read-side reputation view. When the stored score disagrees
// with the ratings (a recompute was lost), the derived score is written back.
func (s *service) SummaryFor(ctx context.Context, st *entity.Student) (*commonDto.ReputationSummary, error) {
	agg, err := s.repo.Aggregate(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	dist, err := s.RatingDistribution(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	score := ComputeScore(agg.Sum, agg.Count)
	if score != st.ReputationScore {
		// conditional on the observed score so a concurrent recompute is never overwritten
		healed, err := s.repo.HealReputationScore(ctx, st.ID, st.ReputationScore, score)
		switch {
		case err != nil:
			logger.FromContext(ctx).WithError(err).WithField("student_id", st.ID).Warn("failed to heal reputation score")
		case healed:
			metrics.ReputationRecomputations.WithLabelValues("healed").Inc()
			st.ReputationScore = score
		}
	}

	avg := Average(agg.Sum, agg.Count)
	return &commonDto.ReputationSummary{
		Score:          score,
		Average:        avg,
		AverageDisplay: DisplayAverage(avg),
		TotalRatings:   agg.Count,
		Distribution:   dist,
	}, nil
}

func (s *service) ListReceivedRatings(ctx context.Context, handle string, page commonDto.PageQuery) (*repDto.PaginatedRatingResponse, error) {
	st, err := s.students.GetByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}

	page.Normalize()
	ratings, total, err := s.repo.ListReceived(ctx, st.ID, page.Limit, (page.Page-1)*page.Limit)
	if err != nil {
		return nil, err
	}

	data := make([]repDto.RatingResponse, 0, len(ratings))
	for i := range ratings {
		data = append(data, repDto.NewRatingResponse(&ratings[i]))
	}

	return &repDto.PaginatedRatingResponse{
		Data: data,
		Meta: commonDto.NewPaginationMeta(page.Page, page.Limit, total),
	}, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, apperror.ErrSelfAction):
		return "self"
	case errors.Is(err, apperror.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, apperror.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
