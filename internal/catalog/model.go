package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type Category string

const (
	CategoryHerbal      Category = "herbal"
	CategorySkincare    Category = "skincare"
	CategorySupplements Category = "supplements"
	CategoryTeas        Category = "teas"
	CategoryOils        Category = "oils"
)

func (c Category) String() string {
	return string(c)
}

func (c Category) Valid() bool {
	switch c {
	case CategoryHerbal, CategorySkincare, CategorySupplements, CategoryTeas, CategoryOils:
		return true
	}
	return false
}

const DefaultMinStockLevel = 10

type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId,omitempty"`
}

// Images is stored as a JSONB array. On input each element may be either a
// plain URL string or an {url, publicId} object.
type Images []Image

func (im *Images) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Images, 0, len(raw))
	for _, elem := range raw {
		var url string
		if err := json.Unmarshal(elem, &url); err == nil {
			out = append(out, Image{URL: url})
			continue
		}
		var img Image
		if err := json.Unmarshal(elem, &img); err != nil {
			return fmt.Errorf("image must be a url string or an object: %w", err)
		}
		out = append(out, img)
	}
	*im = out
	return nil
}

func (im Images) Value() (driver.Value, error) {
	if im == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(im)
}

func (im *Images) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*im = Images{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("catalog: unsupported images column type")
	}
	var out []Image
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("catalog: failed to decode images: %w", err)
	}
	*im = out
	return nil
}

// First returns the url of the first image or "".
func (im Images) First() string {
	if len(im) == 0 {
		return ""
	}
	return im[0].URL
}

type Product struct {
	ID                  string         `json:"_id" db:"id"`
	Name                string         `json:"name" db:"name"`
	Slug                string         `json:"slug" db:"slug"`
	Description         string         `json:"description" db:"description"`
	DetailedDescription string         `json:"detailedDescription,omitempty" db:"detailed_description"`
	Price               float64        `json:"price" db:"price"`
	DiscountPrice       *float64       `json:"discountPrice,omitempty" db:"discount_price"`
	Category            Category       `json:"category" db:"category"`
	Subcategory         string         `json:"subcategory,omitempty" db:"subcategory"`
	Images              Images         `json:"images" db:"images"`
	Ingredients         pq.StringArray `json:"ingredients" db:"ingredients"`
	Benefits            pq.StringArray `json:"benefits" db:"benefits"`
	UsageInstructions   string         `json:"usageInstructions,omitempty" db:"usage_instructions"`
	StockQuantity       int            `json:"stockQuantity" db:"stock_quantity"`
	MinStockLevel       int            `json:"minStockLevel" db:"min_stock_level"`
	IsFeatured          bool           `json:"isFeatured" db:"is_featured"`
	IsNewArrival        bool           `json:"isNewArrival" db:"is_new_arrival"`
	Rating              float64        `json:"rating" db:"rating"`
	Tags                pq.StringArray `json:"tags" db:"tags"`
	MetaTitle           string         `json:"metaTitle,omitempty" db:"meta_title"`
	MetaDescription     string         `json:"metaDescription,omitempty" db:"meta_description"`
	CreatedBy           string         `json:"createdBy,omitempty" db:"created_by"`
	InStock             bool           `json:"inStock" db:"-"`
	CreatedAt           time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time      `json:"updatedAt" db:"updated_at"`
}

// EffectivePrice is the discount price when it undercuts the list price.
func (p *Product) EffectivePrice() float64 {
	if p.DiscountPrice != nil && *p.DiscountPrice > 0 && *p.DiscountPrice < p.Price {
		return *p.DiscountPrice
	}
	return p.Price
}

// normalize fills derived fields and replaces nil collections so the JSON
// shape is stable.
func (p *Product) normalize() {
	p.InStock = p.StockQuantity > 0
	if p.Images == nil {
		p.Images = Images{}
	}
	if p.Ingredients == nil {
		p.Ingredients = pq.StringArray{}
	}
	if p.Benefits == nil {
		p.Benefits = pq.StringArray{}
	}
	if p.Tags == nil {
		p.Tags = pq.StringArray{}
	}
}

// Patch carries a partial product update; nil fields are left untouched.
type Patch struct {
	Name                *string
	Slug                *string
	Description         *string
	DetailedDescription *string
	Price               *float64
	DiscountPrice       *float64
	ClearDiscount       bool
	Category            *Category
	Subcategory         *string
	Images              *Images
	Ingredients         *[]string
	Benefits            *[]string
	UsageInstructions   *string
	StockQuantity       *int
	MinStockLevel       *int
	IsFeatured          *bool
	IsNewArrival        *bool
	Rating              *float64
	Tags                *[]string
	MetaTitle           *string
	MetaDescription     *string
}

func (pt Patch) apply(p *Product) {
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.Slug != nil {
		p.Slug = *pt.Slug
	}
	if pt.Description != nil {
		p.Description = *pt.Description
	}
	if pt.DetailedDescription != nil {
		p.DetailedDescription = *pt.DetailedDescription
	}
	if pt.Price != nil {
		p.Price = *pt.Price
	}
	if pt.ClearDiscount {
		p.DiscountPrice = nil
	} else if pt.DiscountPrice != nil {
		v := *pt.DiscountPrice
		p.DiscountPrice = &v
	}
	if pt.Category != nil {
		p.Category = *pt.Category
	}
	if pt.Subcategory != nil {
		p.Subcategory = *pt.Subcategory
	}
	if pt.Images != nil {
		p.Images = *pt.Images
	}
	if pt.Ingredients != nil {
		p.Ingredients = *pt.Ingredients
	}
	if pt.Benefits != nil {
		p.Benefits = *pt.Benefits
	}
	if pt.UsageInstructions != nil {
		p.UsageInstructions = *pt.UsageInstructions
	}
	if pt.StockQuantity != nil {
		p.StockQuantity = *pt.StockQuantity
	}
	if pt.MinStockLevel != nil {
		p.MinStockLevel = *pt.MinStockLevel
	}
	if pt.IsFeatured != nil {
		p.IsFeatured = *pt.IsFeatured
	}
	if pt.IsNewArrival != nil {
		p.IsNewArrival = *pt.IsNewArrival
	}
	if pt.Rating != nil {
		p.Rating = *pt.Rating
	}
	if pt.Tags != nil {
		p.Tags = *pt.Tags
	}
	if pt.MetaTitle != nil {
		p.MetaTitle = *pt.MetaTitle
	}
	if pt.MetaDescription != nil {
		p.MetaDescription = *pt.MetaDescription
	}
}

type CategorySummary struct {
	ID           Category `json:"_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	ProductCount int      `json:"productCount"`
}

var categoryInfo = []CategorySummary{
	{ID: CategoryHerbal, Name: "Herbal Remedies", Description: "Roots, leaves, and blends for everyday balance."},
	{ID: CategorySkincare, Name: "Skincare Rituals", Description: "Botanical skincare crafted for all skin types."},
	{ID: CategorySupplements, Name: "Supplements", Description: "Nutrition-packed powders and capsules."},
	{ID: CategoryTeas, Name: "Herbal Teas", Description: "Loose-leaf infusions sourced from Kenyan farms."},
	{ID: CategoryOils, Name: "Botanical Oils", Description: "Cold-pressed and distilled oils for body and hair."},
}

type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type Page struct {
	Data []Product `json:"data"`
	Meta PageMeta  `json:"meta"`
}
