package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"task-list/internal/config"
	"task-list/internal/export"
	"task-list/internal/view"
)

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.entries.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Derive(entries, q))
}

func (h *Handler) handleExport(f export.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := h.parseQuery(r.URL.Query())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		data, err := h.exports.Render(r.Context(), q, f)
		if errors.Is(err, export.ErrEmpty) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}

		w.Header().Set("Content-Type", f.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.FileName()))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// parseQuery reads search, status, sort, dir, page and pageSize.
func (h *Handler) parseQuery(v url.Values) (view.Query, error) {
	q := view.DefaultQuery()
	q.PageSize = h.pageSize
	q.Search = v.Get("search")

	var err error
	if q.Status, err = view.ParseStatus(v.Get("status")); err != nil {
		return q, err
	}
	if q.SortBy, err = view.ParseSortKey(v.Get("sort")); err != nil {
		return q, err
	}
	if q.SortDir, err = view.ParseDirection(v.Get("dir")); err != nil {
		return q, err
	}
	if raw := v.Get("page"); raw != "" {
		if q.Page, err = strconv.Atoi(raw); err != nil || q.Page < 1 {
			return q, fmt.Errorf("page must be a positive integer")
		}
	}
	if raw := v.Get("pageSize"); raw != "" {
		if q.PageSize, err = strconv.Atoi(raw); err != nil || q.PageSize < 1 || q.PageSize > config.MaxPageSize {
			return q, fmt.Errorf("pageSize must be between 1 and %d", config.MaxPageSize)
		}
	}
	return q, nil
}
