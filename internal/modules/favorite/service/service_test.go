package favorite

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"anoa.com/unimarket/internal/entity"
	"anoa.com/unimarket/internal/modules/favorite/dto"
	"anoa.com/unimarket/pkg/apperror"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type favKey struct {
	student, product uuid.UUID
}

type fakeFavoriteRepo struct {
	favorites map[favKey]time.Time
	products  *fakeProducts
	toggleErr error
	clock     time.Time
	// afterCount runs once after a count is computed but before it is returned.
	afterCount func()
}

func (r *fakeFavoriteRepo) Toggle(_ context.Context, studentID, productID uuid.UUID) (bool, error) {
	if r.toggleErr != nil {
		return false, r.toggleErr
	}
	key := favKey{studentID, productID}
	if _, ok := r.favorites[key]; ok {
		delete(r.favorites, key)
		return false, nil
	}
	r.clock = r.clock.Add(time.Second)
	r.favorites[key] = r.clock
	return true, nil
}

func (r *fakeFavoriteRepo) ListProducts(_ context.Context, studentID uuid.UUID) ([]entity.Product, error) {
	type entry struct {
		product entity.Product
		at      time.Time
	}
	var entries []entry
	for k, at := range r.favorites {
		if k.student == studentID {
			entries = append(entries, entry{*r.products.items[k.product], at})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.After(entries[j].at) })

	products := make([]entity.Product, 0, len(entries))
	for _, e := range entries {
		products = append(products, e.product)
	}
	return products, nil
}

func (r *fakeFavoriteRepo) CountForProduct(_ context.Context, productID uuid.UUID) (int64, error) {
	var n int64
	for k := range r.favorites {
		if k.product == productID {
			n++
		}
	}
	if fn := r.afterCount; fn != nil {
		r.afterCount = nil
		fn()
	}
	return n, nil
}

func (r *fakeFavoriteRepo) Exists(_ context.Context, studentID, productID uuid.UUID) (bool, error) {
	_, ok := r.favorites[favKey{studentID, productID}]
	return ok, nil
}

type fakeDirectory struct {
	students []*entity.Student
}

func (d *fakeDirectory) add(handle, institution string) *entity.Student {
	st := &entity.Student{ID: uuid.New(), IdentityRef: "idp|" + handle, Handle: handle, Institution: institution}
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

type fakeProducts struct {
	items map[uuid.UUID]*entity.Product
}

func (p *fakeProducts) add(seller *entity.Student, price float64, status string) *entity.Product {
	product := &entity.Product{ID: uuid.New(), Name: "item", Price: price, Status: status, SellerID: seller.ID, Seller: seller, CreatedAt: time.Now()}
	p.items[product.ID] = product
	return product
}

func (p *fakeProducts) FindByID(_ context.Context, id uuid.UUID) (*entity.Product, error) {
	if product, ok := p.items[id]; ok {
		return product, nil
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
	repo     *fakeFavoriteRepo
	dir      *fakeDirectory
	products *fakeProducts
	notifier *fakeNotifier
}

func newFixture() *fixture {
	return newFixtureWithRedis(nil)
}

func newFixtureWithRedis(rdb *redis.Client) *fixture {
	products := &fakeProducts{items: map[uuid.UUID]*entity.Product{}}
	repo := &fakeFavoriteRepo{favorites: map[favKey]time.Time{}, products: products, clock: time.Now()}
	dir := &fakeDirectory{}
	notifier := &fakeNotifier{}
	return &fixture{
		svc:      NewService(repo, dir, products, rdb, notifier),
		repo:     repo,
		dir:      dir,
		products: products,
		notifier: notifier,
	}
}

func TestToggleFavoriteTwice(t *testing.T) {
	f := newFixture()
	seller := f.dir.add("seller", entity.InstitutionEPN)
	buyer := f.dir.add("buyer", entity.InstitutionUSFQ)
	product := f.products.add(seller, 10, entity.ProductStatusAvailable)
	ctx := context.Background()

	res, err := f.svc.ToggleFavorite(ctx, buyer.IdentityRef, product.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusAdded, res.Status)
	assert.Equal(t, int64(1), res.FavoriteCount)

	res, err = f.svc.ToggleFavorite(ctx, buyer.IdentityRef, product.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusRemoved, res.Status)
	assert.Equal(t, int64(0), res.FavoriteCount)

	list, err := f.svc.ListFavorites(ctx, buyer.IdentityRef)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestToggleFavoriteNotifiesSellerOnAddOnly(t *testing.T) {
	f := newFixture()
	seller := f.dir.add("seller", entity.InstitutionEPN)
	buyer := f.dir.add("buyer", entity.InstitutionUSFQ)
	product := f.products.add(seller, 10, entity.ProductStatusAvailable)
	ctx := context.Background()

	_, err := f.svc.ToggleFavorite(ctx, buyer.IdentityRef, product.ID)
	require.NoError(t, err)
	_, err = f.svc.ToggleFavorite(ctx, buyer.IdentityRef, product.ID)
	require.NoError(t, err)

	require.Len(t, f.notifier.sent, 1)
	n := f.notifier.sent[0]
	assert.Equal(t, seller.ID, n.StudentID)
	assert.Equal(t, buyer.ID, n.ActorID)
	assert.Equal(t, product.ID, n.EntityID)
	assert.Equal(t, entity.NotificationProductFavorited, n.Type)
}

func TestToggleFavoriteOwnProductDoesNotNotify(t *testing.T) {
	f := newFixture()
	seller := f.dir.add("seller", entity.InstitutionEPN)
	product := f.products.add(seller, 10, entity.ProductStatusAvailable)

	res, err := f.svc.ToggleFavorite(context.Background(), seller.IdentityRef, product.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusAdded, res.Status)
	assert.Empty(t, f.notifier.sent)
}

func TestToggleFavoriteNotificationFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("db down")
	seller := f.dir.add("seller", entity.InstitutionEPN)
	buyer := f.dir.add("buyer", entity.InstitutionUSFQ)
	product := f.products.add(seller, 10, entity.ProductStatusAvailable)

	res, err := f.svc.ToggleFavorite(context.Background(), buyer.IdentityRef, product.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusAdded, res.Status)
}

func TestToggleFavoriteErrors(t *testing.T) {
	f := newFixture()
	seller := f.dir.add("seller", entity.InstitutionEPN)
	buyer := f.dir.add("buyer", entity.InstitutionUSFQ)
	product := f.products.add(seller, 10, entity.ProductStatusAvailable)
	ctx := context.Background()

	_, err := f.svc.ToggleFavorite(ctx, "", product.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = f.svc.ToggleFavorite(ctx, buyer.IdentityRef, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	f.repo.toggleErr = gorm.ErrDuplicatedKey
	_, err = f.svc.ToggleFavorite(ctx, buyer.IdentityRef, product.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestListFavoritesNewestFirst(t *testing.T) {
	f := newFixture()
	seller := f.dir.add("seller", entity.InstitutionEPN)
	buyer := f.dir.add("buyer", entity.InstitutionUSFQ)
	first := f.products.add(seller, 10, entity.ProductStatusAvailable)
	second := f.products.add(seller, 20, entity.ProductStatusAvailable)
	ctx := context.Background()

	_, err := f.svc.ToggleFavorite(ctx, buyer.IdentityRef, first.ID)
	require.NoError(t, err)
	_, err = f.svc.ToggleFavorite(ctx, buyer.IdentityRef, second.ID)
	require.NoError(t, err)

	list, err := f.svc.ListFavorites(ctx, buyer.IdentityRef)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestSummaryFromFavorites(t *testing.T) {
	f := newFixture()
	epn := f.dir.add("epn", entity.InstitutionEPN)
	usfq := f.dir.add("usfq", entity.InstitutionUSFQ)
	buyer := f.dir.add("buyer", entity.InstitutionPUCE)
	ctx := context.Background()

	for _, p := range []*entity.Product{
		f.products.add(epn, 10.10, entity.ProductStatusAvailable),
		f.products.add(epn, 5.25, entity.ProductStatusAvailable),
		f.products.add(usfq, 99, entity.ProductStatusSold),
	} {
		_, err := f.svc.ToggleFavorite(ctx, buyer.IdentityRef, p.ID)
		require.NoError(t, err)
	}

	summary, err := f.svc.Summary(ctx, buyer.IdentityRef)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.AvailableCount)
	assert.InDelta(t, 15.35, summary.AvailableTotalPrice, 1e-9)
	assert.Equal(t, 2, summary.DistinctInstitutions)
}

func TestSummarize(t *testing.T) {
	epn := &entity.Student{Institution: entity.InstitutionEPN}
	uce := &entity.Student{Institution: entity.InstitutionUCE}

	tests := []struct {
		name     string
		products []entity.Product
		want     dto.FavoriteSummary
	}{
		{name: "empty", products: nil, want: dto.FavoriteSummary{}},
		{
			name: "only unavailable",
			products: []entity.Product{
				{Price: 3, Status: entity.ProductStatusReserved, Seller: epn},
			},
			want: dto.FavoriteSummary{Total: 1, DistinctInstitutions: 1},
		},
		{
			name: "mixed",
			products: []entity.Product{
				{Price: 0.1, Status: entity.ProductStatusAvailable, Seller: epn},
				{Price: 0.2, Status: entity.ProductStatusAvailable, Seller: uce},
				{Price: 7, Status: entity.ProductStatusInactive, Seller: uce},
			},
			want: dto.FavoriteSummary{Total: 3, AvailableCount: 2, AvailableTotalPrice: 0.3, DistinctInstitutions: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.products))
		})
	}
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestCountForProductServesCachedCount(t *testing.T) {
	rdb, mr := newRedis(t)
	f := newFixtureWithRedis(rdb)
	seller := f.dir.add("seller", entity.InstitutionEPN)
	buyer := f.dir.add("buyer", entity.InstitutionUSFQ)
	product := f.products.add(seller, 10, entity.ProductStatusAvailable)
	ctx := context.Background()

	res, err := f.svc.ToggleFavorite(ctx, buyer.IdentityRef, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.FavoriteCount)
	assert.Equal(t, "1", mr.HGet(countsKey, product.ID.String()))
	assert.Greater(t, mr.TTL(countsKey), time.Duration(0))

	// a write that bypasses the service is not seen until the field is invalidated
	delete(f.repo.favorites, favKey{buyer.ID, product.ID})
	count, err := f.svc.CountForProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestToggleFavoriteInvalidatesCachedCount(t *testing.T) {
	rdb, mr := newRedis(t)
	f := newFixtureWithRedis(rdb)
	seller := f.dir.add("seller", entity.InstitutionEPN)
	ana := f.dir.add("ana", entity.InstitutionUSFQ)
	luis := f.dir.add("luis", entity.InstitutionPUCE)
	product := f.products.add(seller, 10, entity.ProductStatusAvailable)
	ctx := context.Background()

	_, err := f.svc.ToggleFavorite(ctx, ana.IdentityRef, product.ID)
	require.NoError(t, err)
	res, err := f.svc.ToggleFavorite(ctx, luis.IdentityRef, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.FavoriteCount)

	res, err = f.svc.ToggleFavorite(ctx, ana.IdentityRef, product.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusRemoved, res.Status)
	assert.Equal(t, int64(1), res.FavoriteCount)

	assert.Equal(t, "1", mr.HGet(countsKey, product.ID.String()))
	assert.Equal(t, "3", mr.HGet(versionsKey, product.ID.String()))
}

func TestCountForProductDoesNotCacheCountReadBeforeToggle(t *testing.T) {
	rdb, mr := newRedis(t)
	f := newFixtureWithRedis(rdb)
	seller := f.dir.add("seller", entity.InstitutionEPN)
	buyer := f.dir.add("buyer", entity.InstitutionUSFQ)
	product := f.products.add(seller, 10, entity.ProductStatusAvailable)
	ctx := context.Background()

	f.repo.afterCount = func() {
		_, err := f.svc.ToggleFavorite(ctx, buyer.IdentityRef, product.ID)
		require.NoError(t, err)
	}

	stale, err := f.svc.CountForProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stale)

	count, err := f.svc.CountForProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "1", mr.HGet(countsKey, product.ID.String()))
}

func TestCountForProductFallsBackWhenRedisFails(t *testing.T) {
	rdb, mr := newRedis(t)
	f := newFixtureWithRedis(rdb)
	seller := f.dir.add("seller", entity.InstitutionEPN)
	buyer := f.dir.add("buyer", entity.InstitutionUSFQ)
	product := f.products.add(seller, 10, entity.ProductStatusAvailable)
	ctx := context.Background()

	require.NoError(t, rdb.Ping(ctx).Err())
	mr.SetError("ERR injected failure")

	res, err := f.svc.ToggleFavorite(ctx, buyer.IdentityRef, product.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusAdded, res.Status)
	assert.Equal(t, int64(1), res.FavoriteCount)
}
