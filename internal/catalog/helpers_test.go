package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/events"
	"storefront-catalog-service/internal/store"
)

// MockClient is a mock implementation of store.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Select(ctx context.Context, table string, q store.Query) (store.Rows, error) {
	args := m.Called(ctx, table, q)
	rows, _ := args.Get(0).(store.Rows)
	return rows, args.Error(1)
}

func (m *MockClient) Insert(ctx context.Context, table string, values store.Values) (store.Rows, error) {
	args := m.Called(ctx, table, values)
	rows, _ := args.Get(0).(store.Rows)
	return rows, args.Error(1)
}

func (m *MockClient) Update(ctx context.Context, table string, values store.Values, filters []store.Filter) (store.Rows, error) {
	args := m.Called(ctx, table, values, filters)
	rows, _ := args.Get(0).(store.Rows)
	return rows, args.Error(1)
}

func (m *MockClient) Delete(ctx context.Context, table string, filters []store.Filter) (store.Rows, error) {
	args := m.Called(ctx, table, filters)
	rows, _ := args.Get(0).(store.Rows)
	return rows, args.Error(1)
}

func (m *MockClient) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// countingClient records the selects passed to the wrapped client.
type countingClient struct {
	store.Client
	mu      sync.Mutex
	selects map[string][]store.Query
}

func newCountingClient(inner store.Client) *countingClient {
	return &countingClient{Client: inner, selects: make(map[string][]store.Query)}
}

func (c *countingClient) Select(ctx context.Context, table string, q store.Query) (store.Rows, error) {
	c.mu.Lock()
	c.selects[table] = append(c.selects[table], q)
	c.mu.Unlock()
	return c.Client.Select(ctx, table, q)
}

// fakeCache is an in-process CategoryCache.
type fakeCache struct {
	cats        []domain.Category
	ok          bool
	invalidated int
}

func (c *fakeCache) Get(context.Context) ([]domain.Category, bool) { return c.cats, c.ok }
func (c *fakeCache) Set(_ context.Context, cats []domain.Category) { c.cats, c.ok = cats, true }
func (c *fakeCache) Invalidate(context.Context) {
	c.cats, c.ok = nil, false
	c.invalidated++
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

var errPublish = errors.New("broker unavailable")

func adminCtx() context.Context {
	return auth.WithClaims(context.Background(), &auth.Claims{Role: auth.RoleAdmin})
}

func ptr[T any](v T) *T { return &v }

// newTestStore seeds three categories and products covering null arrays,
// a dangling category_id and a null category_id.
func newTestStore(t *testing.T) *store.MemoryClient {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) string { return base.Add(time.Duration(h) * time.Hour).Format("2006-01-02T15:04:05.000000Z") }

	m := store.NewMemoryClient()
	m.Seed("categories",
		map[string]any{"id": int64(1), "name": "Irrigation Systems", "slug": "irrigation-systems", "description": nil, "created_at": at(0)},
		map[string]any{"id": int64(2), "name": "Water Distribution", "slug": "water-distribution", "description": "Pipes and fittings", "created_at": at(0)},
		map[string]any{"id": int64(3), "name": "Solar Solutions", "slug": "solar-solutions", "description": nil, "created_at": at(0)},
	)
	m.Seed("products",
		map[string]any{"id": int64(1), "category_id": int64(1), "name": "Drip Irrigation Kit", "slug": "drip-irrigation-kit",
			"featured": true, "images": []string{"a.png"}, "videos": nil, "available_variants": nil, "created_at": at(1)},
		map[string]any{"id": int64(2), "category_id": int64(2), "name": "HDPE Pipes", "slug": "hdpe-pipes",
			"featured": false, "images": nil, "videos": nil, "available_variants": nil, "created_at": at(2)},
		map[string]any{"id": int64(3), "category_id": int64(2), "name": "PVC Fittings", "slug": "pvc-fittings",
			"featured": false, "images": []string{}, "videos": []string{"v.mp4"}, "available_variants": []string{"1in"}, "created_at": at(3)},
		map[string]any{"id": int64(4), "category_id": int64(2), "name": "PVC Pipes", "slug": "pvc-pipes",
			"featured": true, "images": nil, "videos": nil, "available_variants": nil, "created_at": at(4)},
		map[string]any{"id": int64(5), "category_id": int64(99), "name": "Orphan Pump", "slug": "orphan-pump",
			"featured": false, "images": nil, "videos": nil, "available_variants": nil, "created_at": at(5)},
		map[string]any{"id": int64(6), "category_id": nil, "name": "Loose Pipe Clamp", "slug": "loose-pipe-clamp",
			"featured": false, "created_at": at(6)},
	)
	return m
}
