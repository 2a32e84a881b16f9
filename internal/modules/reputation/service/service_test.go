package reputation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"anoa.com/unimarket/internal/entity"
	repDto "anoa.com/unimarket/internal/modules/reputation/dto"
	"anoa.com/unimarket/internal/modules/reputation/repository"
	"anoa.com/unimarket/pkg/apperror"
	commonDto "anoa.com/unimarket/pkg/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type ratingKey struct {
	rater, rated uuid.UUID
	scope        string
}

// fakeRatingRepo keeps ratings and scores in memory. Transaction snapshots the state and
// restores it when fn fails.
type fakeRatingRepo struct {
	ratings   map[ratingKey]*entity.Rating
	scores    map[uuid.UUID]int
	failScore bool
	aggCalls  int
}

func newFakeRatingRepo() *fakeRatingRepo {
	return &fakeRatingRepo{
		ratings: map[ratingKey]*entity.Rating{},
		scores:  map[uuid.UUID]int{},
	}
}

func (r *fakeRatingRepo) Transaction(_ context.Context, fn func(repo repository.RatingRepository) error) error {
	ratings := make(map[ratingKey]*entity.Rating, len(r.ratings))
	for k, v := range r.ratings {
		cp := *v
		ratings[k] = &cp
	}
	scores := make(map[uuid.UUID]int, len(r.scores))
	for k, v := range r.scores {
		scores[k] = v
	}

	if err := fn(r); err != nil {
		r.ratings = ratings
		r.scores = scores
		return err
	}
	return nil
}

func (r *fakeRatingRepo) Upsert(_ context.Context, rating *entity.Rating) error {
	key := ratingKey{rating.RaterID, rating.RatedID, rating.ProductScope}
	now := time.Now()
	if existing, ok := r.ratings[key]; ok {
		existing.Stars = rating.Stars
		existing.Comment = rating.Comment
		existing.ProductID = rating.ProductID
		existing.UpdatedAt = now
		return nil
	}
	cp := *rating
	cp.ID = uuid.New()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.ratings[key] = &cp
	return nil
}

func (r *fakeRatingRepo) FindByKey(_ context.Context, raterID, ratedID uuid.UUID, scope string) (*entity.Rating, error) {
	rating, ok := r.ratings[ratingKey{raterID, ratedID, scope}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rating
	return &cp, nil
}

func (r *fakeRatingRepo) ExistsForKey(_ context.Context, raterID, ratedID uuid.UUID, scope string) (bool, error) {
	_, ok := r.ratings[ratingKey{raterID, ratedID, scope}]
	return ok, nil
}

func (r *fakeRatingRepo) ExistsAny(_ context.Context, raterID, ratedID uuid.UUID) (bool, error) {
	for k := range r.ratings {
		if k.rater == raterID && k.rated == ratedID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRatingRepo) Aggregate(_ context.Context, ratedID uuid.UUID) (repository.Aggregate, error) {
	r.aggCalls++
	var agg repository.Aggregate
	for k, v := range r.ratings {
		if k.rated == ratedID {
			agg.Sum += int64(v.Stars)
			agg.Count++
		}
	}
	return agg, nil
}

func (r *fakeRatingRepo) Distribution(_ context.Context, ratedID uuid.UUID) (map[int]int64, error) {
	counts := map[int]int64{}
	for k, v := range r.ratings {
		if k.rated == ratedID {
			counts[v.Stars]++
		}
	}
	return counts, nil
}

func (r *fakeRatingRepo) ListReceived(_ context.Context, ratedID uuid.UUID, limit, offset int) ([]entity.Rating, int64, error) {
	var out []entity.Rating
	for k, v := range r.ratings {
		if k.rated == ratedID {
			out = append(out, *v)
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []entity.Rating{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (r *fakeRatingRepo) UpdateReputationScore(_ context.Context, studentID uuid.UUID, score int) error {
	if r.failScore {
		return errors.New("write failed")
	}
	r.scores[studentID] = score
	return nil
}

func (r *fakeRatingRepo) HealReputationScore(_ context.Context, studentID uuid.UUID, expected, score int) (bool, error) {
	if r.failScore {
		return false, errors.New("write failed")
	}
	if r.scores[studentID] != expected {
		return false, nil
	}
	r.scores[studentID] = score
	return true, nil
}

func (r *fakeRatingRepo) count() int {
	return len(r.ratings)
}

type fakeDirectory struct {
	students []*entity.Student
}

func (d *fakeDirectory) add(handle string) *entity.Student {
	st := &entity.Student{ID: uuid.New(), IdentityRef: "idp|" + handle, Handle: handle, FirstName: strings.ToUpper(handle[:1]), LastName: handle}
	d.students = append(d.students, st)
	return st
}

func (d *fakeDirectory) ResolveActor(_ context.Context, identity string) (*entity.Student, error) {
	for _, st := range d.students {
		if identity != "" && st.IdentityRef == identity {
			return st, nil
		}
	}
	return nil, apperror.ErrUnauthorized
}

func (d *fakeDirectory) GetByHandle(_ context.Context, handle string) (*entity.Student, error) {
	for _, st := range d.students {
		if st.Handle == handle {
			return st, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (d *fakeDirectory) GetByID(_ context.Context, id uuid.UUID) (*entity.Student, error) {
	for _, st := range d.students {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (d *fakeDirectory) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(d.students))
	for _, st := range d.students {
		ids = append(ids, st.ID)
	}
	return ids, nil
}

type fakeProducts struct {
	ids map[uuid.UUID]bool
}

func (p *fakeProducts) FindByID(_ context.Context, id uuid.UUID) (*entity.Product, error) {
	if p.ids[id] {
		return &entity.Product{ID: id}, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeNotifier struct {
	sent []*entity.Notification
	err  error
}

func (n *fakeNotifier) Create(_ context.Context, notification *entity.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}

type fixture struct {
	svc      Service
	repo     *fakeRatingRepo
	dir      *fakeDirectory
	products *fakeProducts
	notifier *fakeNotifier
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newFakeRatingRepo(),
		dir:      &fakeDirectory{},
		products: &fakeProducts{ids: map[uuid.UUID]bool{}},
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(f.repo, f.dir, f.dir, f.products, f.notifier)
	return f
}

func rate(stars int) repDto.SubmitRatingRequest {
	return repDto.SubmitRatingRequest{Stars: stars}
}

func TestSubmitRatingScenario(t *testing.T) {
	f := newFixture()
	a := f.dir.add("seller_a")
	r1, r2, r3 := f.dir.add("rater1"), f.dir.add("rater2"), f.dir.add("rater3")
	ctx := context.Background()

	for i, pair := range []struct {
		rater *entity.Student
		stars int
	}{{r1, 5}, {r2, 5}, {r3, 4}} {
		res, err := f.svc.SubmitRating(ctx, pair.rater.IdentityRef, a.Handle, rate(pair.stars))
		require.NoError(t, err, "rating %d", i)
		assert.Equal(t, pair.stars, res.Rating.Stars)
	}

	avg, err := f.svc.AverageRating(ctx, a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.6667, avg, 0.0001)

	score, err := f.svc.RecomputeReputation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 93, score)
	assert.Equal(t, 93, f.repo.scores[a.ID])

	assert.Len(t, f.notifier.sent, 3)
	assert.Equal(t, entity.NotificationRatingReceived, f.notifier.sent[0].Type)
	assert.Equal(t, a.ID, f.notifier.sent[0].StudentID)
}

func TestSubmitRatingUpsertKeepsLatest(t *testing.T) {
	f := newFixture()
	seller, rater := f.dir.add("seller"), f.dir.add("buyer")
	ctx := context.Background()

	first, err := f.svc.SubmitRating(ctx, rater.IdentityRef, seller.Handle, repDto.SubmitRatingRequest{Stars: 2, Comment: "slow"})
	require.NoError(t, err)
	assert.Equal(t, 40, first.ReputationScore)

	second, err := f.svc.SubmitRating(ctx, rater.IdentityRef, seller.Handle, repDto.SubmitRatingRequest{Stars: 5, Comment: "sorted out"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.repo.count())
	assert.Equal(t, first.Rating.ID, second.Rating.ID)
	assert.Equal(t, 5, second.Rating.Stars)
	assert.Equal(t, "sorted out", second.Rating.Comment)
	assert.Equal(t, 100, second.ReputationScore)
	assert.Equal(t, 100, f.repo.scores[seller.ID])
}

func TestSubmitRatingProductScopeIsPartOfKey(t *testing.T) {
	f := newFixture()
	seller, rater := f.dir.add("seller"), f.dir.add("buyer")
	productID := uuid.New()
	f.products.ids[productID] = true
	ctx := context.Background()

	_, err := f.svc.SubmitRating(ctx, rater.IdentityRef, seller.Handle, rate(3))
	require.NoError(t, err)
	_, err = f.svc.SubmitRating(ctx, rater.IdentityRef, seller.Handle, repDto.SubmitRatingRequest{Stars: 5, ProductID: &productID})
	require.NoError(t, err)

	assert.Equal(t, 2, f.repo.count())

	forProduct, err := f.svc.HasRatedForProduct(ctx, rater.IdentityRef, seller.Handle, &productID)
	require.NoError(t, err)
	assert.True(t, forProduct)

	other := uuid.New()
	forOther, err := f.svc.HasRatedForProduct(ctx, rater.IdentityRef, seller.Handle, &other)
	require.NoError(t, err)
	assert.False(t, forOther)

	ever, err := f.svc.HasEverRated(ctx, rater.IdentityRef, seller.Handle)
	require.NoError(t, err)
	assert.True(t, ever)
}

func TestSubmitRatingPreconditions(t *testing.T) {
	f := newFixture()
	seller, rater := f.dir.add("seller"), f.dir.add("buyer")
	missingProduct := uuid.New()
	ctx := context.Background()

	tests := []struct {
		name     string
		identity string
		handle   string
		req      repDto.SubmitRatingRequest
		want     error
	}{
		{name: "no profile", identity: "idp|ghost", handle: seller.Handle, req: rate(5), want: apperror.ErrUnauthorized},
		{name: "no identity", identity: "", handle: seller.Handle, req: rate(5), want: apperror.ErrUnauthorized},
		{name: "unknown rated", identity: rater.IdentityRef, handle: "nobody", req: rate(5), want: apperror.ErrNotFound},
		{name: "self rating", identity: seller.IdentityRef, handle: seller.Handle, req: rate(5), want: apperror.ErrSelfAction},
		{name: "self rating checked before stars", identity: seller.IdentityRef, handle: seller.Handle, req: rate(9), want: apperror.ErrSelfAction},
		{name: "zero stars", identity: rater.IdentityRef, handle: seller.Handle, req: rate(0), want: apperror.ErrInvalidInput},
		{name: "six stars", identity: rater.IdentityRef, handle: seller.Handle, req: rate(6), want: apperror.ErrInvalidInput},
		{name: "unknown product", identity: rater.IdentityRef, handle: seller.Handle, req: repDto.SubmitRatingRequest{Stars: 4, ProductID: &missingProduct}, want: apperror.ErrNotFound},
		{name: "comment too long", identity: rater.IdentityRef, handle: seller.Handle, req: repDto.SubmitRatingRequest{Stars: 4, Comment: strings.Repeat("a", 1001)}, want: apperror.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitRating(ctx, tt.identity, tt.handle, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Zero(t, f.repo.count(), "failed submissions must not write")
	assert.Empty(t, f.notifier.sent)
}

func TestSubmitRatingRollsBackWhenRecomputeFails(t *testing.T) {
	f := newFixture()
	seller, rater := f.dir.add("seller"), f.dir.add("buyer")
	f.repo.failScore = true

	_, err := f.svc.SubmitRating(context.Background(), rater.IdentityRef, seller.Handle, rate(4))
	require.Error(t, err)

	assert.Zero(t, f.repo.count())
	assert.Empty(t, f.notifier.sent)
}

func TestSubmitRatingNotificationFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	seller, rater := f.dir.add("seller"), f.dir.add("buyer")
	f.notifier.err = errors.New("db down")

	res, err := f.svc.SubmitRating(context.Background(), rater.IdentityRef, seller.Handle, rate(4))
	require.NoError(t, err)
	assert.Equal(t, 80, res.ReputationScore)
}

func TestSubmitRatingSanitizesComment(t *testing.T) {
	f := newFixture()
	seller, rater := f.dir.add("seller"), f.dir.add("buyer")

	res, err := f.svc.SubmitRating(context.Background(), rater.IdentityRef, seller.Handle,
		repDto.SubmitRatingRequest{Stars: 5, Comment: `<script>alert(1)</script>great seller`})
	require.NoError(t, err)
	assert.NotContains(t, res.Rating.Comment, "<script>")
	assert.Contains(t, res.Rating.Comment, "great seller")
}

func TestSummaryHealsStaleScore(t *testing.T) {
	f := newFixture()
	seller, rater := f.dir.add("seller"), f.dir.add("buyer")
	ctx := context.Background()

	_, err := f.svc.SubmitRating(ctx, rater.IdentityRef, seller.Handle, rate(3))
	require.NoError(t, err)

	// the directory copy still holds the pre-rating score
	seller.ReputationScore = 0
	f.repo.scores[seller.ID] = 0

	summary, err := f.svc.GetSummary(ctx, seller.Handle)
	require.NoError(t, err)

	assert.Equal(t, 60, summary.Score)
	assert.Equal(t, 60, f.repo.scores[seller.ID])
	assert.Equal(t, 60, seller.ReputationScore)
	assert.Equal(t, int64(1), summary.TotalRatings)
	assert.Equal(t, 3.0, summary.AverageDisplay)
}

func TestSummaryDoesNotOverwriteConcurrentRecompute(t *testing.T) {
	f := newFixture()
	seller, rater := f.dir.add("seller"), f.dir.add("buyer")
	ctx := context.Background()

	_, err := f.svc.SubmitRating(ctx, rater.IdentityRef, seller.Handle, rate(3))
	require.NoError(t, err)

	// the reader observed 0, but a recompute has since stored a newer score
	stale := &entity.Student{ID: seller.ID, Handle: seller.Handle, ReputationScore: 0}
	f.repo.scores[seller.ID] = 100

	summary, err := f.svc.SummaryFor(ctx, stale)
	require.NoError(t, err)

	assert.Equal(t, 60, summary.Score)
	assert.Equal(t, 100, f.repo.scores[seller.ID])
	assert.Equal(t, 0, stale.ReputationScore)
}

func TestSummaryWithoutRatings(t *testing.T) {
	f := newFixture()
	seller := f.dir.add("seller")

	summary, err := f.svc.SummaryFor(context.Background(), seller)
	require.NoError(t, err)

	assert.Equal(t, &commonDto.ReputationSummary{
		Score:          0,
		Average:        0,
		AverageDisplay: 0,
		TotalRatings:   0,
		Distribution:   map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}, summary)
	_, wrote := f.repo.scores[seller.ID]
	assert.False(t, wrote, "a matching score is not rewritten")
}

func TestRatingDistributionAlwaysHasFiveBuckets(t *testing.T) {
	f := newFixture()
	seller := f.dir.add("seller")
	r1, r2 := f.dir.add("r1_x"), f.dir.add("r2_x")
	ctx := context.Background()

	_, err := f.svc.SubmitRating(ctx, r1.IdentityRef, seller.Handle, rate(5))
	require.NoError(t, err)
	_, err = f.svc.SubmitRating(ctx, r2.IdentityRef, seller.Handle, rate(5))
	require.NoError(t, err)

	dist, err := f.svc.RatingDistribution(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 2}, dist)
}

func TestEligibility(t *testing.T) {
	f := newFixture()
	seller, rater := f.dir.add("seller"), f.dir.add("buyer")
	ctx := context.Background()

	res, err := f.svc.Eligibility(ctx, rater.IdentityRef, seller.Handle, nil)
	require.NoError(t, err)
	assert.Equal(t, &repDto.CanRateResponse{CanRate: true}, res)

	self, err := f.svc.CanRateStudent(ctx, seller.IdentityRef, seller.Handle)
	require.NoError(t, err)
	assert.False(t, self)

	_, err = f.svc.SubmitRating(ctx, rater.IdentityRef, seller.Handle, rate(4))
	require.NoError(t, err)

	res, err = f.svc.Eligibility(ctx, rater.IdentityRef, seller.Handle, nil)
	require.NoError(t, err)
	assert.True(t, res.CanRate)
	assert.True(t, res.HasRatedForProduct)
	assert.True(t, res.HasEverRated)
}

func TestRecomputeAll(t *testing.T) {
	f := newFixture()
	seller, rater := f.dir.add("seller"), f.dir.add("buyer")
	ctx := context.Background()

	_, err := f.svc.SubmitRating(ctx, rater.IdentityRef, seller.Handle, rate(1))
	require.NoError(t, err)
	f.repo.scores = map[uuid.UUID]int{}

	updated, err := f.svc.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, 20, f.repo.scores[seller.ID])
	assert.Equal(t, 0, f.repo.scores[rater.ID])
}

func TestListReceivedRatings(t *testing.T) {
	f := newFixture()
	seller := f.dir.add("seller")
	ctx := context.Background()
	for _, h := range []string{"aaa", "bbb", "ccc"} {
		r := f.dir.add(h)
		_, err := f.svc.SubmitRating(ctx, r.IdentityRef, seller.Handle, rate(4))
		require.NoError(t, err)
	}

	res, err := f.svc.ListReceivedRatings(ctx, seller.Handle, commonDto.PageQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)
	assert.Equal(t, int64(3), res.Meta.TotalItems)
	assert.Equal(t, 2, res.Meta.TotalPages)

	_, err = f.svc.ListReceivedRatings(ctx, "nobody", commonDto.PageQuery{})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
