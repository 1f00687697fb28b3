package site

import "time"

type Stat struct {
	Label string `json:"label" validate:"required"`
	Value string `json:"value" validate:"required"`
}

type Hero struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	CTAText  string `json:"ctaText"`
	CTALink  string `json:"ctaLink"`
	ImageURL string `json:"imageUrl"`
	Stats    []Stat `json:"stats"`
}

func DefaultHero() Hero {
	return Hero{
		Title:    "Natural Kenyan Herbal Products",
		Subtitle: "Pure, Organic & Sustainable wellness crafted in Kenya.",
		CTAText:  "Shop Now",
		CTALink:  "/products",
		ImageURL: "/hero-banner.jpg",
		Stats:    []Stat{},
	}
}

type Settings struct {
	ID        string    `json:"_id"`
	Hero      Hero      `json:"hero"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HeroPatch carries only the fields the admin sent.
type HeroPatch struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Subtitle *string `json:"subtitle" validate:"omitempty,max=500"`
	CTAText  *string `json:"ctaText" validate:"omitempty,max=60"`
	CTALink  *string `json:"ctaLink" validate:"omitempty,max=500"`
	ImageURL *string `json:"imageUrl" validate:"omitempty,max=2048"`
	Stats    *[]Stat `json:"stats" validate:"omitempty,dive"`
}

func (p HeroPatch) apply(h *Hero) {
	if p.Title != nil {
		h.Title = *p.Title
	}
	if p.Subtitle != nil {
		h.Subtitle = *p.Subtitle
	}
	if p.CTAText != nil {
		h.CTAText = *p.CTAText
	}
	if p.CTALink != nil {
		h.CTALink = *p.CTALink
	}
	if p.ImageURL != nil {
		h.ImageURL = *p.ImageURL
	}
	if p.Stats != nil {
		h.Stats = append([]Stat{}, *p.Stats...)
	}
	if h.Stats == nil {
		h.Stats = []Stat{}
	}
}
