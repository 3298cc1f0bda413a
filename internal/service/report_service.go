package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"task-list/internal/model"
)

const reportRecentLimit = 5

// EntryLister is the read side of the entry store.
type EntryLister interface {
	List(ctx context.Context) ([]model.Entry, error)
}

// TypeTotal aggregates one entry type.
type TypeTotal struct {
	Type    string `json:"type"`
	Entries int    `json:"entries"`
	Count   int    `json:"count"`
}

// Report is a point-in-time summary of the list.
type Report struct {
	GeneratedAt   time.Time     `json:"generatedAt"`
	Entries       int           `json:"entries"`
	Pending       int           `json:"pending"`
	Completed     int           `json:"completed"`
	TotalCount    int           `json:"totalCount"`
	ByType        []TypeTotal   `json:"byType"`
	RecentPending []model.Entry `json:"recentPending"`
}

// ReportService builds summaries for periodic notifications.
type ReportService struct {
	store EntryLister
}

func NewReportService(store EntryLister) *ReportService {
	return &ReportService{store: store}
}

func (s *ReportService) Summary(ctx context.Context, now time.Time) (Report, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return Report{}, err
	}
	return Summarize(entries, now), nil
}

// Summarize expects entries newest first, as the store returns them.
func Summarize(entries []model.Entry, now time.Time) Report {
	r := Report{GeneratedAt: now, Entries: len(entries)}
	totals := make(map[string]*TypeTotal)

	for _, e := range entries {
		r.TotalCount += e.Count
		if e.Completed {
			r.Completed++
		} else {
			r.Pending++
			if len(r.RecentPending) < reportRecentLimit {
				r.RecentPending = append(r.RecentPending, e)
			}
		}

		tt, ok := totals[e.Type]
		if !ok {
			tt = &TypeTotal{Type: e.Type}
			totals[e.Type] = tt
		}
		tt.Entries++
		tt.Count += e.Count
	}

	for _, tt := range totals {
		r.ByType = append(r.ByType, *tt)
	}
	sort.Slice(r.ByType, func(i, j int) bool {
		a, b := r.ByType[i].Type, r.ByType[j].Type
		if la, lb := strings.ToLower(a), strings.ToLower(b); la != lb {
			return la < lb
		}
		return a < b
	})
	return r
}

// FormatReport renders r as Telegram HTML.
func FormatReport(r Report) string {
	var b strings.Builder
	b.WriteString("📋 <b>Task list report</b>\n")
	b.WriteString(fmt.Sprintf("🗓 %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04")))

	b.WriteString(fmt.Sprintf("Entries: <b>%d</b> (pending %d, completed %d)\n", r.Entries, r.Pending, r.Completed))
	b.WriteString(fmt.Sprintf("Total count: <b>%d</b>\n", r.TotalCount))

	if len(r.ByType) > 0 {
		b.WriteString("\n<b>By type</b>\n")
		for _, tt := range r.ByType {
			b.WriteString(fmt.Sprintf("• %s: %d entries, count %d\n", html.EscapeString(tt.Type), tt.Entries, tt.Count))
		}
	}

	b.WriteString("\n🔥 <b>Latest pending</b>\n")
	if len(r.RecentPending) == 0 {
		b.WriteString("none\n")
	}
	for _, e := range r.RecentPending {
		b.WriteString(fmt.Sprintf("🟢 %s <i>(%s)</i> × %d\n", html.EscapeString(e.Name), html.EscapeString(e.Type), e.Count))
	}

	return strings.TrimSpace(b.String())
}
