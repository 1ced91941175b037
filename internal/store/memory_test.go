package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testProduct struct {
	ID         int64    `json:"id"`
	CategoryID *int64   `json:"category_id"`
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	Featured   bool     `json:"featured"`
	Videos     []string `json:"videos"`
}

func newDemoClient(t *testing.T) *MemoryClient {
	t.Helper()
	m := NewMemoryClient()
	SeedDemoCatalog(m)
	return m
}

func TestMemoryClient_SelectFiltersAndOrders(t *testing.T) {
	m := newDemoClient(t)

	rows, err := m.Select(context.Background(), "products", Query{
		Filters: []Filter{Eq("category_id", int64(2))},
		Order:   &Order{Field: "created_at", Desc: true},
	})
	require.NoError(t, err)

	products, err := DecodeRows[testProduct](rows)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "pvc-fittings", products[0].Slug, "newest first")
	assert.Equal(t, "hdpe-pipes", products[1].Slug)
}

func TestMemoryClient_EqDoesNotCoerceKinds(t *testing.T) {
	m := newDemoClient(t)

	rows, err := m.Select(context.Background(), "products", Query{Filters: []Filter{Eq("id", "1")}})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = m.Select(context.Background(), "products", Query{Filters: []Filter{Eq("id", int64(1))}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCompareValues_OrdersByKind(t *testing.T) {
	assert.NotEqual(t, 0, compareValues("1", int64(1)))
	assert.NotEqual(t, 0, compareValues("true", true))
	assert.Equal(t, 0, compareValues(int64(3), float64(3)))
	assert.Equal(t, -1, compareValues(nil, int64(0)))
	assert.Equal(t, -1, compareValues(int64(99), false))
	assert.Equal(t, -1, compareValues(true, "a"))
	assert.Equal(t, 1, compareValues("b", "a"))
}

func TestMemoryClient_RangeWindows(t *testing.T) {
	m := newDemoClient(t)
	ctx := context.Background()
	order := &Order{Field: "id"}

	rows, err := m.Select(ctx, "products", Query{Order: order, Range: &Range{Offset: 1, Limit: 2}})
	require.NoError(t, err)
	products, err := DecodeRows[testProduct](rows)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(2), products[0].ID)
	assert.Equal(t, int64(3), products[1].ID)

	rows, err = m.Select(ctx, "products", Query{Order: order, Range: &Range{Offset: 50, Limit: 10}})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = m.Select(ctx, "products", Query{Range: &Range{Offset: 0, Limit: 0}})
	assert.Error(t, err)
}

func TestMemoryClient_ILikeAndIn(t *testing.T) {
	m := newDemoClient(t)
	ctx := context.Background()

	rows, err := m.Select(ctx, "products", Query{Filters: []Filter{ILike("name", "PIPE")}})
	require.NoError(t, err)
	products, err := DecodeRows[testProduct](rows)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "HDPE Pipes", products[0].Name)

	rows, err = m.Select(ctx, "categories", Query{Filters: []Filter{In("id", []int64{3, 1, 99})}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = m.Select(ctx, "categories", Query{Filters: []Filter{In("slug", []string{"solar-solutions"})}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMemoryClient_SelectColumns(t *testing.T) {
	m := newDemoClient(t)

	rows, err := m.Select(context.Background(), "categories", Query{Select: "id, slug", Filters: []Filter{Eq("id", int64(1))}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"id":1,"slug":"irrigation-systems"}`, string(rows[0]))
}

func TestMemoryClient_NullArraysStayNull(t *testing.T) {
	m := newDemoClient(t)

	rows, err := m.Select(context.Background(), "products", Query{Filters: []Filter{Eq("slug", "sprinkler-system")}})
	require.NoError(t, err)
	products, err := DecodeRows[testProduct](rows)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Nil(t, products[0].Videos)
}

func TestMemoryClient_InsertAssignsIDAndTimestamp(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newDemoClient(t).WithClock(func() time.Time { return fixed })

	rows, err := m.Insert(context.Background(), "categories", Values{"name": "Pumps", "slug": "pumps", "description": nil})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"id":4,"name":"Pumps","slug":"pumps","description":null,"created_at":"2025-03-01T12:00:00.000000Z"}`, string(rows[0]))
}

func TestMemoryClient_DuplicateSlugIsConflict(t *testing.T) {
	m := newDemoClient(t)
	ctx := context.Background()

	_, err := m.Insert(ctx, "categories", Values{"name": "Again", "slug": "solar-solutions"})
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.True(t, remote.Conflict())

	_, err = m.Update(ctx, "categories", Values{"slug": "solar-solutions"}, []Filter{Eq("id", int64(1))})
	require.True(t, errors.As(err, &remote))
	assert.True(t, remote.Conflict())

	rows, err := m.Update(ctx, "categories", Values{"slug": "solar-solutions"}, []Filter{Eq("id", int64(3))})
	require.NoError(t, err, "keeping its own slug is not a conflict")
	assert.Len(t, rows, 1)
}

func TestMemoryClient_UpdateAndDeleteReportAffectedRows(t *testing.T) {
	m := newDemoClient(t)
	ctx := context.Background()

	rows, err := m.Update(ctx, "products", Values{"featured": true}, []Filter{In("id", []int64{2, 4, 404})})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = m.Select(ctx, "products", Query{Filters: []Filter{Eq("featured", true)}})
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	rows, err = m.Delete(ctx, "products", []Filter{Eq("id", int64(404))})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = m.Delete(ctx, "products", []Filter{In("id", []int64{1, 2})})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = m.Select(ctx, "products", Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestMemoryClient_CancelledContext(t *testing.T) {
	m := newDemoClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Select(ctx, "products", Query{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Error(t, m.Ping(ctx))
}
