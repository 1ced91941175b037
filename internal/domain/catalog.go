package domain

import (
	"encoding/json"
)

// Category is a product grouping shown in the storefront navigation.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	CreatedAt   Timestamp `json:"created_at"`
}

// Product represents a catalog item. Images, Videos and AvailableVariants
// are never nil once a product leaves the catalog package.
type Product struct {
	ID                int64     `json:"id"`
	CategoryID        int64     `json:"category_id"`
	Name              string    `json:"name"`
	Slug              string    `json:"slug"`
	Description       *string   `json:"description"`
	SKU               *string   `json:"sku"`
	Featured          bool      `json:"featured"`
	Images            []string  `json:"images"`
	Videos            []string  `json:"videos"`
	AvailableVariants []string  `json:"available_variants"`
	CreatedAt         Timestamp `json:"created_at"`
}

// ProductWithCategory is a product with a snapshot of its category taken at
// query time.
type ProductWithCategory struct {
	Product
	Category CategoryRef `json:"category"`
}

// CategoryRef holds the category attached to a product, or nothing when the
// product's category_id did not resolve. A missing category is written as {}.
type CategoryRef struct {
	*Category
}

// Resolved reports whether the reference points at a category.
func (r CategoryRef) Resolved() bool {
	return r.Category != nil
}

func (r CategoryRef) MarshalJSON() ([]byte, error) {
	if r.Category == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Category)
}

func (r *CategoryRef) UnmarshalJSON(data []byte) error {
	var c Category
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	if c.ID == 0 && c.Name == "" && c.Slug == "" {
		r.Category = nil
		return nil
	}
	r.Category = &c
	return nil
}

// CategoryCreate is the payload for creating a category.
type CategoryCreate struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Slug        string  `json:"slug" validate:"required,max=255,slug"`
	Description *string `json:"description"`
}

// CategoryUpdate is a partial category update. Only keys present in the
// request body are applied.
type CategoryUpdate struct {
	Name        Optional[string] `json:"name"`
	Slug        Optional[string] `json:"slug"`
	Description Optional[string] `json:"description"`
}

// ProductCreate is the payload for creating a product.
type ProductCreate struct {
	CategoryID        int64    `json:"category_id" validate:"required,gt=0"`
	Name              string   `json:"name" validate:"required,max=255"`
	Slug              string   `json:"slug" validate:"required,max=255,slug"`
	Description       *string  `json:"description"`
	SKU               *string  `json:"sku" validate:"omitempty,max=100"`
	Featured          bool     `json:"featured"`
	Images            []string `json:"images" validate:"omitempty,dive,required"`
	Videos            []string `json:"videos" validate:"omitempty,dive,required"`
	AvailableVariants []string `json:"available_variants" validate:"omitempty,dive,required"`
}

// ProductUpdate is a partial product update.
type ProductUpdate struct {
	CategoryID        Optional[int64]    `json:"category_id"`
	Name              Optional[string]   `json:"name"`
	Slug              Optional[string]   `json:"slug"`
	Description       Optional[string]   `json:"description"`
	SKU               Optional[string]   `json:"sku"`
	Featured          Optional[bool]     `json:"featured"`
	Images            Optional[[]string] `json:"images"`
	Videos            Optional[[]string] `json:"videos"`
	AvailableVariants Optional[[]string] `json:"available_variants"`
}
