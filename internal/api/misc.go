package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"task-list/internal/auth"
	"task-list/internal/blob"
	"task-list/internal/service"
)

const (
	msgBadBody          = "Invalid request body"
	msgInternal         = "Internal error"
	msgEntryNotFound    = "Entry not found"
	msgSnapshotNotFound = "Snapshot not found"
	msgBadCredentials   = "Invalid email or password"
	msgUnauthorized     = "Unauthorized"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	tok, err := h.gate.Login(req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.log.Warn(r.Context(), "login rejected", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *Handler) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w)
			return
		}
		sub, err := h.gate.Verify(tok)
		if err != nil {
			h.log.Debug(r.Context(), "token rejected", "err", err)
			unauthorized(w)
			return
		}
		if rec, ok := w.(*statusRecorder); ok {
			rec.subject = sub
		}
		next(w, r.WithContext(auth.WithSubject(r.Context(), sub)))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="task-list"`)
	writeError(w, http.StatusUnauthorized, msgUnauthorized)
}

func (h *Handler) handleTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.types)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := h.exports.Snapshots(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if infos == nil {
		infos = []blob.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	key := service.SnapshotPrefix + r.PathValue("key")
	info, rc, err := h.exports.OpenSnapshot(r.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgSnapshotNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", lastSegment(key)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn(r.Context(), "snapshot download interrupted", "key", key, "err", err)
	}
}

func lastSegment(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
