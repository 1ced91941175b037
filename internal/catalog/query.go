package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/store"
)

const (
	DefaultProductLimit = 100
	DefaultSearchLimit  = 20
	MaxLimit            = 1000
)

// ProductFilter narrows a product listing. A zero Limit means the default.
type ProductFilter struct {
	CategoryID *int64
	Featured   *bool
	Limit      int
	Offset     int
}

// QueryEngine answers catalog reads. Products are joined to their
// categories in memory, never by the store.
type QueryEngine struct {
	store store.Client
	cache CategoryCache
}

// NewQueryEngine creates a QueryEngine. A nil cache disables caching.
func NewQueryEngine(client store.Client, cache CategoryCache) *QueryEngine {
	if cache == nil {
		cache = NopCache{}
	}
	return &QueryEngine{store: client, cache: cache}
}

// ListCategories returns every category ordered by name.
func (e *QueryEngine) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if cached, ok := e.cache.Get(ctx); ok {
		return cached, nil
	}
	rows, err := e.store.Select(ctx, tableCategories, store.Query{Order: &store.Order{Field: "name"}})
	if err != nil {
		return nil, storeError("list categories", err)
	}
	cats, err := decodeCategories(rows)
	if err != nil {
		return nil, fmt.Errorf("catalog: list categories: %w", err)
	}
	e.cache.Set(ctx, cats)
	return cats, nil
}

// GetCategoryBySlug returns the category with slug.
func (e *QueryEngine) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, domain.NewValidationError("slug is required", "slug")
	}
	return e.oneCategory(ctx, store.Eq("slug", slug))
}

// GetCategoryByID returns the category with id.
func (e *QueryEngine) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	if id <= 0 {
		return nil, domain.NewValidationError("id must be positive", "id")
	}
	return e.oneCategory(ctx, store.Eq("id", id))
}

func (e *QueryEngine) oneCategory(ctx context.Context, filter store.Filter) (*domain.Category, error) {
	rows, err := e.store.Select(ctx, tableCategories, store.Query{
		Filters: []store.Filter{filter},
		Range:   &store.Range{Limit: 1},
	})
	if err != nil {
		return nil, storeError("get category", err)
	}
	cats, err := decodeCategories(rows)
	if err != nil {
		return nil, fmt.Errorf("catalog: get category: %w", err)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("catalog: category %s=%v: %w", filter.Field, filter.Value, domain.ErrNotFound)
	}
	return &cats[0], nil
}

// ListProducts returns products newest first. Categories are attached from
// one fetch of the whole category table.
func (e *QueryEngine) ListProducts(ctx context.Context, f ProductFilter) ([]domain.ProductWithCategory, error) {
	window, err := pageRange(f.Limit, f.Offset, DefaultProductLimit)
	if err != nil {
		return nil, err
	}
	var filters []store.Filter
	if f.CategoryID != nil {
		filters = append(filters, store.Eq("category_id", *f.CategoryID))
	}
	if f.Featured != nil {
		filters = append(filters, store.Eq("featured", *f.Featured))
	}

	rows, err := e.fetchProducts(ctx, "list products", store.Query{
		Filters: filters,
		Order:   newestFirst(),
		Range:   window,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.ProductWithCategory{}, nil
	}

	cats, err := e.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return joinCategories(rows, indexCategories(cats)), nil
}

// SearchProducts matches query as a case-insensitive substring of the
// product name. Only the categories the matches reference are fetched.
func (e *QueryEngine) SearchProducts(ctx context.Context, query string, limit, offset int) ([]domain.ProductWithCategory, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewValidationError("search query is required", "q")
	}
	window, err := pageRange(limit, offset, DefaultSearchLimit)
	if err != nil {
		return nil, err
	}

	rows, err := e.fetchProducts(ctx, "search products", store.Query{
		Filters: []store.Filter{store.ILike("name", query)},
		Order:   newestFirst(),
		Range:   window,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.ProductWithCategory{}, nil
	}

	byID := map[int64]domain.Category{}
	if ids := referencedCategoryIDs(rows); len(ids) > 0 {
		catRows, err := e.store.Select(ctx, tableCategories, store.Query{Filters: []store.Filter{store.In("id", ids)}})
		if err != nil {
			return nil, storeError("search products categories", err)
		}
		cats, err := decodeCategories(catRows)
		if err != nil {
			return nil, fmt.Errorf("catalog: search products categories: %w", err)
		}
		byID = indexCategories(cats)
	}
	return joinCategories(rows, byID), nil
}

// GetProductByID returns one product with its category.
func (e *QueryEngine) GetProductByID(ctx context.Context, id int64) (*domain.ProductWithCategory, error) {
	if id <= 0 {
		return nil, domain.NewValidationError("id must be positive", "id")
	}
	return e.oneProduct(ctx, store.Eq("id", id))
}

// GetProductBySlug returns one product with its category.
func (e *QueryEngine) GetProductBySlug(ctx context.Context, slug string) (*domain.ProductWithCategory, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, domain.NewValidationError("slug is required", "slug")
	}
	return e.oneProduct(ctx, store.Eq("slug", slug))
}

func (e *QueryEngine) oneProduct(ctx context.Context, filter store.Filter) (*domain.ProductWithCategory, error) {
	rows, err := e.fetchProducts(ctx, "get product", store.Query{
		Filters: []store.Filter{filter},
		Range:   &store.Range{Limit: 1},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog: product %s=%v: %w", filter.Field, filter.Value, domain.ErrNotFound)
	}

	byID := map[int64]domain.Category{}
	if cid := rows[0].CategoryID; cid != nil {
		cat, err := e.GetCategoryByID(ctx, *cid)
		switch {
		case err == nil:
			byID[cat.ID] = *cat
		case errors.Is(err, domain.ErrNotFound):
			// dangling category_id, served with an empty category
		default:
			return nil, err
		}
	}
	joined := joinCategories(rows, byID)
	return &joined[0], nil
}

func (e *QueryEngine) fetchProducts(ctx context.Context, op string, q store.Query) ([]productRow, error) {
	rows, err := e.store.Select(ctx, tableProducts, q)
	if err != nil {
		return nil, storeError(op, err)
	}
	products, err := decodeProducts(rows)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", op, err)
	}
	return products, nil
}

// pageRange validates limit and offset. A zero limit takes def.
func pageRange(limit, offset, def int) (*store.Range, error) {
	if limit == 0 {
		limit = def
	}
	var fields []string
	if limit < 1 || limit > MaxLimit {
		fields = append(fields, "limit")
	}
	if offset < 0 {
		fields = append(fields, "offset")
	}
	if len(fields) > 0 {
		return nil, domain.NewValidationError(fmt.Sprintf("limit must be between 1 and %d and offset must not be negative", MaxLimit), fields...)
	}
	return &store.Range{Offset: offset, Limit: limit}, nil
}

func newestFirst() *store.Order {
	return &store.Order{Field: "created_at", Desc: true}
}
