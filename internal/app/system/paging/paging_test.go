package paging

import (
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dalemusser/grouphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing", "", 1},
		{"valid", "?page=3", 3},
		{"zero", "?page=0", 1},
		{"negative", "?page=-2", 1},
		{"garbage", "?page=abc", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/groups"+tt.query, nil)
			if got := ParsePage(r); got != tt.want {
				t.Errorf("ParsePage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, PageSize},
		{-1, 5, 1, 5},
		{4, 10, 4, 10},
		{1, MaxPageSize + 1, 1, MaxPageSize},
	}
	for _, tt := range tests {
		p, s := Normalize(tt.page, tt.size)
		if p != tt.wantPage || s != tt.wantSize {
			t.Errorf("Normalize(%d, %d) = (%d, %d), want (%d, %d)", tt.page, tt.size, p, s, tt.wantPage, tt.wantSize)
		}
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total int64
		size  int
		want  int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{45, 20, 3},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestMap(t *testing.T) {
	in := Page[int]{Results: []int{1, 2}, Page: 2, TotalPages: 3, TotalCount: 42}
	out := Map(in, strconv.Itoa)
	if out.Page != 2 || out.TotalPages != 3 || out.TotalCount != 42 {
		t.Errorf("Map lost page metadata: %+v", out)
	}
	if len(out.Results) != 2 || out.Results[1] != "2" {
		t.Errorf("Map results = %v", out.Results)
	}
}

type row struct {
	N         int       `bson:"n"`
	CreatedAt time.Time `bson:"created_at"`
}

func TestPaginate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := db.Collection("paging_rows")
	base := time.Now()
	docs := make([]any, 0, 45)
	for i := 0; i < 45; i++ {
		docs = append(docs, row{N: i, CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}
	if _, err := c.InsertMany(ctx, docs); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}

	sort := bson.D{{Key: "created_at", Value: -1}}

	first, err := Paginate[row](ctx, c, bson.M{}, sort, 1, 20)
	if err != nil {
		t.Fatalf("Paginate page 1: %v", err)
	}
	if first.TotalCount != 45 || first.TotalPages != 3 || len(first.Results) != 20 {
		t.Errorf("page 1 = count %d pages %d len %d", first.TotalCount, first.TotalPages, len(first.Results))
	}
	if first.Results[0].N != 44 {
		t.Errorf("page 1 should start with newest row, got n=%d", first.Results[0].N)
	}

	last, err := Paginate[row](ctx, c, bson.M{}, sort, 3, 20)
	if err != nil {
		t.Fatalf("Paginate page 3: %v", err)
	}
	if len(last.Results) != 5 {
		t.Errorf("page 3 len = %d, want 5", len(last.Results))
	}

	past, err := Paginate[row](ctx, c, bson.M{}, sort, 9, 20)
	if err != nil {
		t.Fatalf("Paginate page 9: %v", err)
	}
	if past.Results == nil || len(past.Results) != 0 {
		t.Errorf("page past end should be an empty, non-nil slice, got %v", past.Results)
	}

	filtered, err := Paginate[row](ctx, c, bson.M{"n": bson.M{"$lt": 3}}, sort, 1, 20)
	if err != nil {
		t.Fatalf("Paginate filtered: %v", err)
	}
	if filtered.TotalCount != 3 || filtered.TotalPages != 1 {
		t.Errorf("filtered = count %d pages %d", filtered.TotalCount, filtered.TotalPages)
	}
}
