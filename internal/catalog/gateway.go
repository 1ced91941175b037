package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/events"
	"storefront-catalog-service/internal/logging"
	"storefront-catalog-service/internal/store"
)

// BulkOperation is an action applied to many products at once.
type BulkOperation string

const (
	BulkDelete    BulkOperation = "delete"
	BulkFeature   BulkOperation = "feature"
	BulkUnfeature BulkOperation = "unfeature"
)

// BulkResult reports the outcome of a bulk operation.
type BulkResult struct {
	Operation BulkOperation `json:"operation"`
	Affected  int           `json:"affected"`
	Message   string        `json:"message"`
}

// Gateway performs validated catalog writes on behalf of an admin.
type Gateway struct {
	store    store.Client
	cache    CategoryCache
	events   events.Publisher
	validate *validator.Validate
	now      func() time.Time
}

// NewGateway creates a Gateway. Nil cache and publisher are replaced by
// no-op implementations.
func NewGateway(client store.Client, cache CategoryCache, publisher events.Publisher) *Gateway {
	if cache == nil {
		cache = NopCache{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Gateway{
		store:    client,
		cache:    cache,
		events:   publisher,
		validate: NewValidator(),
		now:      time.Now,
	}
}

func (g *Gateway) authorize(ctx context.Context) error {
	if !auth.RequireAdmin(ctx) {
		return domain.ErrUnauthorized
	}
	return nil
}

func (g *Gateway) CreateCategory(ctx context.Context, in domain.CategoryCreate) (*domain.Category, error) {
	if err := g.authorize(ctx); err != nil {
		return nil, err
	}
	if err := g.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	rows, err := g.store.Insert(ctx, tableCategories, store.Values{
		"name":        in.Name,
		"slug":        in.Slug,
		"description": nullable(in.Description),
	})
	if err != nil {
		return nil, storeError("create category", err)
	}
	cat, err := firstCategory(rows, "create category")
	if err != nil {
		return nil, err
	}
	g.cache.Invalidate(ctx)
	g.publish(ctx, events.CategoryCreated, "category", cat.Slug, cat.ID)
	return cat, nil
}

func (g *Gateway) UpdateCategory(ctx context.Context, id int64, in domain.CategoryUpdate) (*domain.Category, error) {
	if err := g.authorize(ctx); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, domain.NewValidationError("id must be positive", "id")
	}
	p := newPatch(g.validate)
	p.text("name", in.Name, "required,max=255")
	p.text("slug", in.Slug, "required,max=255,slug")
	p.nullableText("description", in.Description, "")
	values, err := p.result()
	if err != nil {
		return nil, err
	}

	rows, err := g.store.Update(ctx, tableCategories, values, []store.Filter{store.Eq("id", id)})
	if err != nil {
		return nil, storeError("update category", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog: update category %d: %w", id, domain.ErrNotFound)
	}
	cat, err := firstCategory(rows, "update category")
	if err != nil {
		return nil, err
	}
	g.cache.Invalidate(ctx)
	g.publish(ctx, events.CategoryUpdated, "category", cat.Slug, cat.ID)
	return cat, nil
}

func (g *Gateway) DeleteCategory(ctx context.Context, id int64) error {
	if err := g.authorize(ctx); err != nil {
		return err
	}
	if id <= 0 {
		return domain.NewValidationError("id must be positive", "id")
	}
	rows, err := g.store.Delete(ctx, tableCategories, []store.Filter{store.Eq("id", id)})
	if err != nil {
		return storeError("delete category", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("catalog: delete category %d: %w", id, domain.ErrNotFound)
	}
	g.cache.Invalidate(ctx)
	g.publish(ctx, events.CategoryDeleted, "category", "", id)
	return nil
}

func (g *Gateway) CreateProduct(ctx context.Context, in domain.ProductCreate) (*domain.Product, error) {
	if err := g.authorize(ctx); err != nil {
		return nil, err
	}
	if err := g.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	rows, err := g.store.Insert(ctx, tableProducts, store.Values{
		"category_id":        in.CategoryID,
		"name":               in.Name,
		"slug":               in.Slug,
		"description":        nullable(in.Description),
		"sku":                nullable(in.SKU),
		"featured":           in.Featured,
		"images":             nonNil(in.Images),
		"videos":             nonNil(in.Videos),
		"available_variants": nonNil(in.AvailableVariants),
	})
	if err != nil {
		return nil, productStoreError("create product", err)
	}
	p, err := firstProduct(rows, "create product")
	if err != nil {
		return nil, err
	}
	g.publish(ctx, events.ProductCreated, "product", p.Slug, p.ID)
	return p, nil
}

func (g *Gateway) UpdateProduct(ctx context.Context, id int64, in domain.ProductUpdate) (*domain.Product, error) {
	if err := g.authorize(ctx); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, domain.NewValidationError("id must be positive", "id")
	}
	p := newPatch(g.validate)
	p.id("category_id", in.CategoryID)
	p.text("name", in.Name, "required,max=255")
	p.text("slug", in.Slug, "required,max=255,slug")
	p.nullableText("description", in.Description, "")
	p.nullableText("sku", in.SKU, "max=100")
	p.flag("featured", in.Featured)
	p.list("images", in.Images)
	p.list("videos", in.Videos)
	p.list("available_variants", in.AvailableVariants)
	values, err := p.result()
	if err != nil {
		return nil, err
	}

	rows, err := g.store.Update(ctx, tableProducts, values, []store.Filter{store.Eq("id", id)})
	if err != nil {
		return nil, productStoreError("update product", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog: update product %d: %w", id, domain.ErrNotFound)
	}
	product, err := firstProduct(rows, "update product")
	if err != nil {
		return nil, err
	}
	g.publish(ctx, events.ProductUpdated, "product", product.Slug, product.ID)
	return product, nil
}

func (g *Gateway) DeleteProduct(ctx context.Context, id int64) error {
	if err := g.authorize(ctx); err != nil {
		return err
	}
	if id <= 0 {
		return domain.NewValidationError("id must be positive", "id")
	}
	rows, err := g.store.Delete(ctx, tableProducts, []store.Filter{store.Eq("id", id)})
	if err != nil {
		return storeError("delete product", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("catalog: delete product %d: %w", id, domain.ErrNotFound)
	}
	g.publish(ctx, events.ProductDeleted, "product", "", id)
	return nil
}

// BulkUpdateProducts applies op to every product in ids with one store call.
// Unknown ids are skipped; Affected counts the products actually changed.
func (g *Gateway) BulkUpdateProducts(ctx context.Context, op BulkOperation, ids []int64) (*BulkResult, error) {
	if err := g.authorize(ctx); err != nil {
		return nil, err
	}
	switch op {
	case BulkDelete, BulkFeature, BulkUnfeature:
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("invalid operation %q", op), "operation")
	}
	ids, err := distinctIDs(ids)
	if err != nil {
		return nil, err
	}

	filter := []store.Filter{store.In("id", ids)}
	var (
		rows      store.Rows
		eventType string
		verb      string
	)
	switch op {
	case BulkDelete:
		rows, err = g.store.Delete(ctx, tableProducts, filter)
		eventType, verb = events.ProductsDeleted, "Deleted"
	case BulkFeature:
		rows, err = g.store.Update(ctx, tableProducts, store.Values{"featured": true}, filter)
		eventType, verb = events.ProductsFeatured, "Featured"
	case BulkUnfeature:
		rows, err = g.store.Update(ctx, tableProducts, store.Values{"featured": false}, filter)
		eventType, verb = events.ProductsUnfeatured, "Unfeatured"
	}
	if err != nil {
		return nil, storeError("bulk "+string(op), err)
	}

	affected := len(rows)
	if affected > 0 {
		g.publish(ctx, eventType, "product", "", ids...)
	}
	return &BulkResult{
		Operation: op,
		Affected:  affected,
		Message:   fmt.Sprintf("%s %d products", verb, affected),
	}, nil
}

func distinctIDs(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, domain.NewValidationError("product_ids must not be empty", "product_ids")
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, domain.NewValidationError("product ids must be positive", "product_ids")
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// publish sends an event; failures are only logged.
func (g *Gateway) publish(ctx context.Context, eventType, entity, slug string, ids ...int64) {
	e := events.Event{Type: eventType, Entity: entity, IDs: ids, Slug: slug, OccurredAt: g.now().UTC()}
	if err := g.events.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("event", eventType).Warn("catalog_event_publish_failed")
	}
}

// nullable unwraps s so an absent value is stored as an untyped nil.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func firstCategory(rows store.Rows, op string) (*domain.Category, error) {
	cats, err := decodeCategories(rows)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", op, err)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("catalog: %s: store returned no row", op)
	}
	return &cats[0], nil
}

func firstProduct(rows store.Rows, op string) (*domain.Product, error) {
	products, err := decodeProducts(rows)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", op, err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("catalog: %s: store returned no row", op)
	}
	p := products[0].product()
	return &p, nil
}
