package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"task-list/internal/auth"
	"task-list/internal/model"
	"task-list/internal/repository"
	"task-list/internal/service"
)

const maxBodyBytes = 1 << 20

type createRequest struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Count json.RawMessage `json:"count"`
}

type updateRequest struct {
	ID        string          `json:"id"`
	LegacyID  string          `json:"_id"`
	Name      *string         `json:"name"`
	Type      *string         `json:"type"`
	Completed *bool           `json:"completed"`
	Count     json.RawMessage `json:"count"`
}

type deleteRequest struct {
	ID string `json:"id"`
}

type deleteResponse struct {
	Success bool `json:"success"`
	Deleted bool `json:"deleted"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.entries.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	entry, err := h.entries.Create(r.Context(), service.CreateInput{
		Name:  req.Name,
		Type:  req.Type,
		Count: countText(req.Count),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Info(r.Context(), "entry created", "id", entry.ID, "type", entry.Type, "subject", subjectOf(r))
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	id := req.ID
	if id == "" {
		id = req.LegacyID
	}

	entry, err := h.entries.Update(r.Context(), service.UpdateInput{
		ID:        id,
		Name:      req.Name,
		Type:      req.Type,
		Completed: req.Completed,
		Count:     countText(req.Count),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Info(r.Context(), "entry updated", "id", entry.ID, "subject", subjectOf(r))
	writeJSON(w, http.StatusOK, entry)
}

// handleDelete takes the id from the JSON body or the id query parameter.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	id := req.ID
	if id == "" {
		id = r.URL.Query().Get("id")
	}

	deleted, err := h.entries.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if deleted {
		h.log.Info(r.Context(), "entry deleted", "id", id, "subject", subjectOf(r))
	}
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Deleted: deleted})
}

func subjectOf(r *http.Request) string {
	sub, _ := auth.SubjectFrom(r.Context())
	return sub
}

// countText turns the raw JSON count into the text the service parses: a
// string literal is unquoted, anything else is passed through verbatim, and
// an absent or null count yields nil.
func countText(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return &s
		}
	}
	s := string(raw)
	return &s
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(v)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, msgEntryNotFound)
	default:
		h.log.Error(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
