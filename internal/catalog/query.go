package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	defaultSort  = "-createdAt"
)

var sortColumns = map[string]string{
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
	"price":         "price",
	"name":          "name",
	"rating":        "rating",
	"stockQuantity": "stock_quantity",
}

// Query describes a product listing request.
type Query struct {
	Search       string
	Category     Category
	IsFeatured   *bool
	IsNewArrival *bool
	InStock      *bool
	MinPrice     *float64
	MaxPrice     *float64
	Page         int
	Limit        int
	Sort         string
}

// ParseBool treats true, 1 and yes (any case) as true and anything else as
// false. An empty value is reported as unset.
func ParseBool(value string) *bool {
	if value == "" {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		v := true
		return &v
	}
	v := false
	return &v
}

// QueryFromValues builds a Query from URL parameters. The storefront also
// sends `featured`, which is accepted as an alias of isFeatured.
func QueryFromValues(values url.Values) (Query, error) {
	q := Query{
		Search:   strings.TrimSpace(values.Get("search")),
		Category: Category(values.Get("category")),
		Sort:     values.Get("sort"),
	}

	q.IsFeatured = ParseBool(values.Get("isFeatured"))
	if q.IsFeatured == nil {
		q.IsFeatured = ParseBool(values.Get("featured"))
	}
	q.IsNewArrival = ParseBool(values.Get("isNewArrival"))
	q.InStock = ParseBool(values.Get("inStock"))

	var err error
	if q.MinPrice, err = parsePrice(values.Get("minPrice")); err != nil {
		return Query{}, fmt.Errorf("%w: minPrice must be numeric", ErrInvalidQuery)
	}
	if q.MaxPrice, err = parsePrice(values.Get("maxPrice")); err != nil {
		return Query{}, fmt.Errorf("%w: maxPrice must be numeric", ErrInvalidQuery)
	}

	q.Page = positiveInt(values.Get("page"))
	q.Limit = positiveInt(values.Get("limit"))

	return q, nil
}

func parsePrice(value string) (*float64, error) {
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func positiveInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// normalize applies paging defaults and bounds.
func (q *Query) normalize() {
	if q.Page <= 0 {
		q.Page = defaultPage
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if _, ok := sortClause(q.Sort); !ok {
		q.Sort = defaultSort
	}
}

func (q Query) offset() int {
	return (q.Page - 1) * q.Limit
}

// sortClause turns "-price" into "price DESC". Unknown fields are rejected.
func sortClause(sort string) (string, bool) {
	direction := "ASC"
	field := sort
	if strings.HasPrefix(sort, "-") {
		direction = "DESC"
		field = sort[1:]
	}
	column, ok := sortColumns[field]
	if !ok {
		return "", false
	}
	return column + " " + direction + ", id " + direction, true
}

// whereClause renders the filter with `?` placeholders for sqlx.Rebind.
func (q Query) whereClause() (string, []any) {
	var (
		conds []string
		args  []any
	)

	if q.Search != "" {
		conds = append(conds, "search_vector @@ websearch_to_tsquery('english', ?)")
		args = append(args, q.Search)
	}
	if q.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, string(q.Category))
	}
	if q.IsFeatured != nil {
		conds = append(conds, "is_featured = ?")
		args = append(args, *q.IsFeatured)
	}
	if q.IsNewArrival != nil {
		conds = append(conds, "is_new_arrival = ?")
		args = append(args, *q.IsNewArrival)
	}
	if q.InStock != nil {
		if *q.InStock {
			conds = append(conds, "stock_quantity > 0")
		} else {
			conds = append(conds, "stock_quantity = 0")
		}
	}
	if q.MinPrice != nil {
		conds = append(conds, "price >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		conds = append(conds, "price <= ?")
		args = append(args, *q.MaxPrice)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func totalPages(total, limit int) int {
	if total == 0 || limit <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}
