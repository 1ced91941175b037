package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/events"
	"storefront-catalog-service/internal/store"
)

func decodeUpdate[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestGateway_RequiresAdminBeforeStoreAccess(t *testing.T) {
	client := new(MockClient)
	g := NewGateway(client, nil, nil)

	contexts := map[string]context.Context{
		"no claims":  context.Background(),
		"non-admin":  auth.WithClaims(context.Background(), &auth.Claims{Role: "viewer"}),
		"nil claims": auth.WithClaims(context.Background(), nil),
	}
	for name, ctx := range contexts {
		t.Run(name, func(t *testing.T) {
			_, err := g.CreateCategory(ctx, domain.CategoryCreate{Name: "X", Slug: "x"})
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			_, err = g.UpdateCategory(ctx, 1, domain.CategoryUpdate{Name: domain.Some("X")})
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			assert.ErrorIs(t, g.DeleteCategory(ctx, 1), domain.ErrUnauthorized)
			_, err = g.CreateProduct(ctx, domain.ProductCreate{CategoryID: 1, Name: "X", Slug: "x"})
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			_, err = g.UpdateProduct(ctx, 1, domain.ProductUpdate{Featured: domain.Some(true)})
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			assert.ErrorIs(t, g.DeleteProduct(ctx, 1), domain.ErrUnauthorized)
			_, err = g.BulkUpdateProducts(ctx, BulkFeature, []int64{1})
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
	client.AssertExpectations(t)
	assert.Empty(t, client.Calls)
}

func TestGateway_UpdateCategoryLeavesOmittedFields(t *testing.T) {
	m := newTestStore(t)
	g := NewGateway(m, nil, nil)
	engine := NewQueryEngine(m, nil)

	in := decodeUpdate[domain.CategoryUpdate](t, `{"name":"Water & Pipes"}`)
	updated, err := g.UpdateCategory(adminCtx(), 2, in)
	require.NoError(t, err)
	assert.Equal(t, "Water & Pipes", updated.Name)

	got, err := engine.GetCategoryByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Water & Pipes", got.Name)
	assert.Equal(t, "water-distribution", got.Slug)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Pipes and fittings", *got.Description)
}

func TestGateway_UpdateCategoryNullSemantics(t *testing.T) {
	m := newTestStore(t)
	g := NewGateway(m, nil, nil)

	cleared, err := g.UpdateCategory(adminCtx(), 2, decodeUpdate[domain.CategoryUpdate](t, `{"description":null}`))
	require.NoError(t, err)
	assert.Nil(t, cleared.Description)
	assert.Equal(t, "Water Distribution", cleared.Name)

	_, err = g.UpdateCategory(adminCtx(), 2, decodeUpdate[domain.CategoryUpdate](t, `{"name":null,"slug":"Bad Slug"}`))
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{"name", "slug"}, verr.Fields)

	_, err = g.UpdateCategory(adminCtx(), 2, decodeUpdate[domain.CategoryUpdate](t, `{}`))
	assert.True(t, domain.IsValidation(err), "empty update")
}

func TestGateway_UpdateMissingIsNotFound(t *testing.T) {
	g := NewGateway(newTestStore(t), nil, nil)

	_, err := g.UpdateCategory(adminCtx(), 404, domain.CategoryUpdate{Name: domain.Some("X")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = g.UpdateProduct(adminCtx(), 404, domain.ProductUpdate{Featured: domain.Some(true)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGateway_DeleteProduct(t *testing.T) {
	m := newTestStore(t)
	pub := &recordingPublisher{}
	g := NewGateway(m, nil, pub)

	assert.ErrorIs(t, g.DeleteProduct(adminCtx(), 404), domain.ErrNotFound)
	assert.Empty(t, pub.events)

	require.NoError(t, g.DeleteProduct(adminCtx(), 1))
	_, err := NewQueryEngine(m, nil).GetProductByID(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.ProductDeleted, pub.events[0].Type)
	assert.Equal(t, []int64{1}, pub.events[0].IDs)
}

func TestGateway_BulkFeatureTouchesExactlyTheGivenIDs(t *testing.T) {
	m := newTestStore(t)
	g := NewGateway(m, nil, nil)

	res, err := g.BulkUpdateProducts(adminCtx(), BulkFeature, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Affected)
	assert.Equal(t, "Featured 3 products", res.Message)

	rows, err := m.Select(context.Background(), tableProducts, store.Query{Order: &store.Order{Field: "id"}})
	require.NoError(t, err)
	products, err := decodeProducts(rows)
	require.NoError(t, err)

	featured := map[int64]bool{}
	for _, p := range products {
		featured[p.ID] = p.product().Featured
	}
	assert.Equal(t, map[int64]bool{1: true, 2: true, 3: true, 4: true, 5: false, 6: false}, featured)
}

func TestGateway_BulkCountsOnlyExistingRows(t *testing.T) {
	g := NewGateway(newTestStore(t), nil, nil)

	res, err := g.BulkUpdateProducts(adminCtx(), BulkDelete, []int64{5, 6, 404})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)
	assert.Equal(t, "Deleted 2 products", res.Message)

	res, err = g.BulkUpdateProducts(adminCtx(), BulkUnfeature, []int64{404})
	require.NoError(t, err)
	assert.Zero(t, res.Affected)
}

func TestGateway_BulkValidatesBeforeStoreCall(t *testing.T) {
	client := new(MockClient)
	g := NewGateway(client, nil, nil)

	_, err := g.BulkUpdateProducts(adminCtx(), BulkOperation("archive"), []int64{1})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"operation"}, verr.Fields)

	_, err = g.BulkUpdateProducts(adminCtx(), BulkFeature, nil)
	assert.True(t, domain.IsValidation(err))

	_, err = g.BulkUpdateProducts(adminCtx(), BulkFeature, []int64{1, -2})
	assert.True(t, domain.IsValidation(err))

	assert.Empty(t, client.Calls)
}

func TestGateway_BulkDeduplicatesIDsInOneCall(t *testing.T) {
	client := new(MockClient)
	client.On("Update", mock.Anything, tableProducts, store.Values{"featured": true}, []store.Filter{store.In("id", []int64{3, 1})}).
		Return(store.Rows{[]byte(`{"id":3}`), []byte(`{"id":1}`)}, nil).Once()
	g := NewGateway(client, nil, nil)

	res, err := g.BulkUpdateProducts(adminCtx(), BulkFeature, []int64{3, 1, 3, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)
	client.AssertExpectations(t)
}

func TestGateway_CategoryMutationsInvalidateCache(t *testing.T) {
	cache := &fakeCache{ok: true, cats: []domain.Category{{ID: 1}}}
	g := NewGateway(newTestStore(t), cache, nil)
	ctx := adminCtx()

	created, err := g.CreateCategory(ctx, domain.CategoryCreate{Name: "Pumps", Slug: "pumps"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)
	assert.Equal(t, int64(4), created.ID)
	assert.Nil(t, created.Description)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = g.UpdateCategory(ctx, created.ID, domain.CategoryUpdate{Description: domain.Some("Water pumps")})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.invalidated)

	require.NoError(t, g.DeleteCategory(ctx, created.ID))
	assert.Equal(t, 3, cache.invalidated)

	assert.ErrorIs(t, g.DeleteCategory(ctx, created.ID), domain.ErrNotFound)
	assert.Equal(t, 3, cache.invalidated, "failed mutations keep the cache")
}

func TestGateway_DuplicateSlugIsConflict(t *testing.T) {
	g := NewGateway(newTestStore(t), nil, nil)

	_, err := g.CreateCategory(adminCtx(), domain.CategoryCreate{Name: "Solar", Slug: "solar-solutions"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = g.UpdateProduct(adminCtx(), 2, domain.ProductUpdate{Slug: domain.Some("pvc-fittings")})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestGateway_UnknownCategoryIsValidationError(t *testing.T) {
	fk := &store.RemoteError{Status: 409, Code: "23503", Message: "violates foreign key constraint"}
	client := new(MockClient)
	client.On("Insert", mock.Anything, tableProducts, mock.Anything).Return(nil, fk)
	client.On("Update", mock.Anything, tableProducts, mock.Anything, mock.Anything).Return(nil, fk)
	g := NewGateway(client, nil, nil)

	_, err := g.CreateProduct(adminCtx(), domain.ProductCreate{CategoryID: 99, Name: "Pump", Slug: "pump"})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"category_id"}, verr.Fields)
	assert.NotErrorIs(t, err, domain.ErrConflict)

	_, err = g.UpdateProduct(adminCtx(), 1, domain.ProductUpdate{CategoryID: domain.Some(int64(99))})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"category_id"}, verr.Fields)
	client.AssertExpectations(t)
}

func TestGateway_DeleteReferencedCategoryIsConflict(t *testing.T) {
	client := new(MockClient)
	client.On("Delete", mock.Anything, tableCategories, mock.Anything).
		Return(nil, &store.RemoteError{Status: 409, Code: "23503", Message: "still referenced"})
	g := NewGateway(client, nil, nil)

	assert.ErrorIs(t, g.DeleteCategory(adminCtx(), 1), domain.ErrConflict)
}

func TestGateway_CreateProductValidation(t *testing.T) {
	client := new(MockClient)
	g := NewGateway(client, nil, nil)

	_, err := g.CreateProduct(adminCtx(), domain.ProductCreate{
		Name:   "",
		Slug:   "Not A Slug",
		SKU:    ptr(string(make([]byte, 101))),
		Images: []string{"ok.png", ""},
	})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Subset(t, verr.Fields, []string{"category_id", "name", "slug", "sku", "images[1]"})
	assert.Empty(t, client.Calls)
}

func TestGateway_CreateProductNormalizesArrays(t *testing.T) {
	pub := &recordingPublisher{}
	g := NewGateway(newTestStore(t), nil, pub)

	p, err := g.CreateProduct(adminCtx(), domain.ProductCreate{
		CategoryID: 3,
		Name:       "PV Junction Box",
		Slug:       "pv-junction-box",
		SKU:        ptr("SOL-PVJB-68"),
		Images:     []string{"box.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, int64(3), p.CategoryID)
	assert.Equal(t, []string{"box.png"}, p.Images)
	assert.Equal(t, []string{}, p.Videos)
	assert.Equal(t, []string{}, p.AvailableVariants)
	require.NotNil(t, p.SKU)
	assert.Nil(t, p.Description)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.ProductCreated, pub.events[0].Type)
	assert.Equal(t, "pv-junction-box", pub.events[0].Slug)
}

func TestGateway_UpdateProductPartial(t *testing.T) {
	m := newTestStore(t)
	g := NewGateway(m, nil, nil)

	in := decodeUpdate[domain.ProductUpdate](t, `{"sku":null,"images":null,"videos":["a.mp4"],"featured":true}`)
	p, err := g.UpdateProduct(adminCtx(), 3, in)
	require.NoError(t, err)
	assert.Nil(t, p.SKU)
	assert.Equal(t, []string{}, p.Images)
	assert.Equal(t, []string{"a.mp4"}, p.Videos)
	assert.Equal(t, []string{"1in"}, p.AvailableVariants, "untouched")
	assert.True(t, p.Featured)
	assert.Equal(t, "PVC Fittings", p.Name)

	_, err = g.UpdateProduct(adminCtx(), 3, decodeUpdate[domain.ProductUpdate](t, `{"featured":null,"category_id":0}`))
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{"featured", "category_id"}, verr.Fields)
}

func TestGateway_PublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &recordingPublisher{err: errPublish}
	g := NewGateway(newTestStore(t), nil, pub)

	res, err := g.BulkUpdateProducts(adminCtx(), BulkUnfeature, []int64{1, 4})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.ProductsUnfeatured, pub.events[0].Type)
}
