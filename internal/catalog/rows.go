package catalog

import (
	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/store"
)

const (
	tableCategories = "categories"
	tableProducts   = "products"
)

// productRow is a product as stored. Older rows may have a null category_id
// and null array columns.
type productRow struct {
	ID                int64            `json:"id"`
	CategoryID        *int64           `json:"category_id"`
	Name              string           `json:"name"`
	Slug              string           `json:"slug"`
	Description       *string          `json:"description"`
	SKU               *string          `json:"sku"`
	Featured          *bool            `json:"featured"`
	Images            []string         `json:"images"`
	Videos            []string         `json:"videos"`
	AvailableVariants []string         `json:"available_variants"`
	CreatedAt         domain.Timestamp `json:"created_at"`
}

func (r productRow) product() domain.Product {
	p := domain.Product{
		ID:                r.ID,
		Name:              r.Name,
		Slug:              r.Slug,
		Description:       r.Description,
		SKU:               r.SKU,
		Images:            nonNil(r.Images),
		Videos:            nonNil(r.Videos),
		AvailableVariants: nonNil(r.AvailableVariants),
		CreatedAt:         r.CreatedAt,
	}
	if r.CategoryID != nil {
		p.CategoryID = *r.CategoryID
	}
	if r.Featured != nil {
		p.Featured = *r.Featured
	}
	return p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// joinCategories attaches each product's category by id. Products whose
// category is missing from byID get an empty reference.
func joinCategories(rows []productRow, byID map[int64]domain.Category) []domain.ProductWithCategory {
	out := make([]domain.ProductWithCategory, 0, len(rows))
	for _, r := range rows {
		item := domain.ProductWithCategory{Product: r.product()}
		if r.CategoryID != nil {
			if c, ok := byID[*r.CategoryID]; ok {
				item.Category = domain.CategoryRef{Category: &c}
			}
		}
		out = append(out, item)
	}
	return out
}

func indexCategories(cats []domain.Category) map[int64]domain.Category {
	byID := make(map[int64]domain.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	return byID
}

// referencedCategoryIDs returns the distinct non-null category ids in
// first-seen order.
func referencedCategoryIDs(rows []productRow) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, r := range rows {
		if r.CategoryID == nil || seen[*r.CategoryID] {
			continue
		}
		seen[*r.CategoryID] = true
		ids = append(ids, *r.CategoryID)
	}
	return ids
}

func decodeProducts(rows store.Rows) ([]productRow, error) {
	return store.DecodeRows[productRow](rows)
}

func decodeCategories(rows store.Rows) ([]domain.Category, error) {
	return store.DecodeRows[domain.Category](rows)
}
