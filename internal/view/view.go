// Package view derives the visible slice of the entry list: filter, sort,
// aggregate and paginate. Every function here is pure; callers own the input
// slice and get fresh slices back.
package view

import (
	"fmt"
	"sort"
	"strings"

	"task-list/internal/model"
)

// Status selects entries by completion state.
type Status string

const (
	StatusAll       Status = "all"
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
)

// SortKey names the field the list is ordered by.
type SortKey string

const (
	SortCreatedAt SortKey = "createdAt"
	SortName      SortKey = "name"
	SortType      SortKey = "type"
	SortStatus    SortKey = "status"
)

// Direction of a sort.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

const DefaultPageSize = 10

// Query is the full set of view parameters.
type Query struct {
	Search   string
	Status   Status
	SortBy   SortKey
	SortDir  Direction
	Page     int
	PageSize int
}

// DefaultQuery is the initial view: everything, newest first, first page.
func DefaultQuery() Query {
	return Query{
		Status:   StatusAll,
		SortBy:   SortCreatedAt,
		SortDir:  Desc,
		Page:     1,
		PageSize: DefaultPageSize,
	}
}

// Result is one derived view.
type Result struct {
	Items      []model.Entry `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
	Matched    int           `json:"matched"`
	TotalCount int           `json:"totalCount"`
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusAll, nil
	case StatusAll, StatusCompleted, StatusPending:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return SortCreatedAt, nil
	case "createdat", "created_at", "created":
		return SortCreatedAt, nil
	case "name":
		return SortName, nil
	case "type":
		return SortType, nil
	case "status", "completed":
		return SortStatus, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return Desc, nil
	case Asc, Desc:
		return d, nil
	default:
		return "", fmt.Errorf("unknown sort direction %q", s)
	}
}

// Filter keeps entries whose name or type contains search (case-insensitive)
// and whose completion state matches status.
func Filter(entries []model.Entry, search string, status Status) []model.Entry {
	needle := strings.ToLower(search)
	out := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if !matchesSearch(e, needle) || !matchesStatus(e, status) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchesSearch(e model.Entry, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Name), needle) ||
		strings.Contains(strings.ToLower(e.Type), needle)
}

func matchesStatus(e model.Entry, status Status) bool {
	switch status {
	case StatusCompleted:
		return e.Completed
	case StatusPending:
		return !e.Completed
	default:
		return true
	}
}

// Sort returns a stably sorted copy. Equal keys keep their input order in
// both directions.
func Sort(entries []model.Entry, key SortKey, dir Direction) []model.Entry {
	out := make([]model.Entry, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i], out[j], key)
		if dir == Asc {
			return c < 0
		}
		return c > 0
	})
	return out
}

func compare(a, b model.Entry, key SortKey) int {
	switch key {
	case SortName:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case SortType:
		return strings.Compare(strings.ToLower(a.Type), strings.ToLower(b.Type))
	case SortStatus:
		return boolRank(a.Completed) - boolRank(b.Completed)
	default:
		ta, tb := unixMilli(a), unixMilli(b)
		switch {
		case ta < tb:
			return -1
		case ta > tb:
			return 1
		}
		return 0
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// unixMilli treats a missing timestamp as the epoch.
func unixMilli(e model.Entry) int64 {
	if e.CreatedAt.IsZero() {
		return 0
	}
	return e.CreatedAt.UnixMilli()
}

// Sum adds up the counts.
func Sum(entries []model.Entry) int {
	total := 0
	for _, e := range entries {
		total += e.Count
	}
	return total
}

// TotalPages is never below 1, even for an empty list.
func TotalPages(n, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pages := (n + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// Paginate returns the requested page with the page number clamped to
// [1, TotalPages].
func Paginate(entries []model.Entry, page, pageSize int) ([]model.Entry, int, int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := TotalPages(len(entries), pageSize)
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	out := make([]model.Entry, end-start)
	copy(out, entries[start:end])
	return out, page, total
}

// Arrange filters and sorts without paginating. This is the list exports see.
func Arrange(entries []model.Entry, q Query) []model.Entry {
	return Sort(Filter(entries, q.Search, q.Status), q.SortBy, q.SortDir)
}

// Derive runs the whole pipeline.
func Derive(entries []model.Entry, q Query) Result {
	arranged := Arrange(entries, q)
	items, page, total := Paginate(arranged, q.Page, q.PageSize)

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	return Result{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalPages: total,
		Matched:    len(arranged),
		TotalCount: Sum(arranged),
	}
}
