// internal/app/system/paging/paging.go
package paging

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the default number of rows per page.
const PageSize = 20

// MaxPageSize caps configured page sizes.
const MaxPageSize = 200

// Page is one page of a listing. Page numbers are 1-based.
type Page[T any] struct {
	Results    []T   `json:"results"`
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
	TotalCount int64 `json:"totalCount"`
}

// ParsePage extracts the 1-based "page" query parameter.
// Returns 1 if not present or invalid.
func ParsePage(r *http.Request) int {
	s := query.Get(r, "page")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Normalize clamps page to >= 1 and size to [1, MaxPageSize], using PageSize
// when size is unset.
func Normalize(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = PageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// TotalPages returns the number of pages needed for total rows.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// Paginate counts the documents matching filter and decodes the requested
// page in sort order. A page past the end returns empty Results.
func Paginate[T any](ctx context.Context, c *mongo.Collection, filter any, sort bson.D, page, size int) (Page[T], error) {
	page, size = Normalize(page, size)
	out := Page[T]{Results: []T{}, Page: page}

	total, err := c.CountDocuments(ctx, filter)
	if err != nil {
		return out, fmt.Errorf("count %s: %w", c.Name(), err)
	}
	out.TotalCount = total
	out.TotalPages = TotalPages(total, size)

	skip := int64(page-1) * int64(size)
	if total == 0 || skip >= total {
		return out, nil
	}

	opts := options.Find().
		SetSort(sort).
		SetSkip(skip).
		SetLimit(int64(size))
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return out, fmt.Errorf("find %s: %w", c.Name(), err)
	}
	defer cur.Close(ctx)

	if err := cur.All(ctx, &out.Results); err != nil {
		return out, fmt.Errorf("decode %s: %w", c.Name(), err)
	}
	return out, nil
}

// Map converts a page of one type into a page of another.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := Page[U]{
		Results:    make([]U, 0, len(p.Results)),
		Page:       p.Page,
		TotalPages: p.TotalPages,
		TotalCount: p.TotalCount,
	}
	for _, v := range p.Results {
		out.Results = append(out.Results, fn(v))
	}
	return out
}
