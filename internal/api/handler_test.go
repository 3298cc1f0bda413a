package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"task-list/internal/auth"
	"task-list/internal/blob"
	"task-list/internal/logging"
	"task-list/internal/model"
	"task-list/internal/repository"
	"task-list/internal/service"
	"task-list/internal/view"
)

type testEnv struct {
	h       *Handler
	srv     *httptest.Server
	repo    *repository.EntryRepository
	exports *service.ExportService
	token   string
}

func newEnv(t *testing.T, types ...string) *testEnv {
	t.Helper()
	return newEnvWithLog(t, logging.Nop(), types...)
}

func newEnvWithLog(t *testing.T, log logging.Logger, types ...string) *testEnv {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=private", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repository.NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	repo := repository.NewEntryRepository(db)
	categories := service.NewCategoryService(types)
	exports := service.NewExportService(repo, blob.NewMemory(), logging.Nop())

	gate, err := auth.NewGate("admin@demo.com", "123456", []byte("test-secret"), time.Hour)
	require.NoError(t, err)

	h := New(Options{
		Entries: service.NewEntryService(repo, categories),
		Exports: exports,
		Gate:    gate,
		Types:   categories.List(),
		Log:     log,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	tok, err := gate.Login("admin@demo.com", "123456")
	require.NoError(t, err)

	return &testEnv{h: h, srv: srv, repo: repo, exports: exports, token: tok.Token}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) stored(t *testing.T) []model.Entry {
	t.Helper()
	list, err := e.repo.List(context.Background())
	require.NoError(t, err)
	return list
}

func TestCreate_NumericTextCount(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/entries", `{"name":"Rice","type":"IMIC","count":"3"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[model.Entry](t, resp)
	assert.Equal(t, 3, created.Count)
	assert.NotEmpty(t, created.ID)

	list := env.stored(t)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Count)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestCreate_JSONShape(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/entries", `{"name":"Rice","type":"IMIC","count":2}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	raw := decode[map[string]any](t, resp)
	for _, k := range []string{"_id", "name", "type", "completed", "count", "createdAt", "updatedAt"} {
		assert.Contains(t, raw, k)
	}
	assert.Equal(t, false, raw["completed"])
}

func TestCreate_InvalidInputPersistsNothing(t *testing.T) {
	env := newEnv(t)

	cases := map[string]string{
		`{"name":"","type":"IMIC","count":"3"}`:       service.MsgRequired,
		`{"name":"Rice","type":"IMIC","count":"abc"}`: service.MsgRequired,
		`{"name":"Rice","type":"IMIC"}`:               service.MsgRequired,
		`{"name":"Rice","type":"IMIC","count":-1}`:    service.MsgCount,
		`{"name":"Rice","type":"IMIC","count":true}`:  service.MsgRequired,
		`{"name":`:                                    msgBadBody,
	}
	for body, msg := range cases {
		resp := env.do(t, http.MethodPost, "/entries", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, map[string]string{"message": msg}, decode[map[string]string](t, resp), body)
	}
	assert.Empty(t, env.stored(t))
}

func TestCreate_UnknownType(t *testing.T) {
	env := newEnv(t, "IMIC", "SSF")

	resp := env.do(t, http.MethodPost, "/entries", `{"name":"Rice","type":"Other","count":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, service.MsgUnknownType, decode[map[string]string](t, resp)["message"])

	resp = env.do(t, http.MethodGet, "/types", "")
	assert.Equal(t, []string{"IMIC", "SSF"}, decode[[]string](t, resp))
}

func TestUpdate(t *testing.T) {
	env := newEnv(t)
	created := decode[model.Entry](t, env.do(t, http.MethodPost, "/entries", `{"name":"Rice","type":"IMIC","count":2}`))

	resp := env.do(t, http.MethodPut, "/entries", fmt.Sprintf(`{"id":%q,"completed":true,"count":"5"}`, created.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[model.Entry](t, resp)
	assert.True(t, updated.Completed)
	assert.Equal(t, 5, updated.Count)
	assert.Equal(t, "Rice", updated.Name)

	resp = env.do(t, http.MethodPut, "/entries", fmt.Sprintf(`{"_id":%q,"name":"Brown rice"}`, created.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Brown rice", decode[model.Entry](t, resp).Name)
}

func TestUpdate_Errors(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPut, "/entries", `{"completed":true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, service.MsgIDRequired, decode[map[string]string](t, resp)["message"])

	resp = env.do(t, http.MethodPut, "/entries", `{"id":"nope","completed":true}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, msgEntryNotFound, decode[map[string]string](t, resp)["message"])
}

func TestDelete(t *testing.T) {
	env := newEnv(t)
	created := decode[model.Entry](t, env.do(t, http.MethodPost, "/entries", `{"name":"Rice","type":"IMIC","count":2}`))

	resp := env.do(t, http.MethodDelete, "/entries", `{"id":"does-not-exist"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, deleteResponse{Success: true, Deleted: false}, decode[deleteResponse](t, resp))
	assert.Len(t, env.stored(t), 1)

	resp = env.do(t, http.MethodDelete, "/entries?id="+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, deleteResponse{Success: true, Deleted: true}, decode[deleteResponse](t, resp))
	assert.Empty(t, env.stored(t))
}

func TestList_NewestFirst(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodGet, "/entries", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]model.Entry](t, resp))

	env.do(t, http.MethodPost, "/entries", `{"name":"A","type":"X","count":2}`)
	time.Sleep(5 * time.Millisecond)
	env.do(t, http.MethodPost, "/entries", `{"name":"B","type":"Y","count":5}`)

	list := decode[[]model.Entry](t, env.do(t, http.MethodGet, "/entries", ""))
	require.Len(t, list, 2)
	assert.Equal(t, "B", list[0].Name)
}

func seedWorkedExample(t *testing.T, env *testEnv) {
	t.Helper()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, e := range []model.Entry{
		{ID: "A", Name: "A", Type: "X", Count: 2, CreatedAt: t0, UpdatedAt: t0},
		{ID: "B", Name: "B", Type: "Y", Count: 5, Completed: true, CreatedAt: t0.Add(time.Minute), UpdatedAt: t0},
	} {
		require.NoError(t, env.repo.Create(context.Background(), &e))
	}
}

func TestView(t *testing.T) {
	env := newEnv(t)
	seedWorkedExample(t, env)

	resp := env.do(t, http.MethodGet, "/entries/view", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	r := decode[view.Result](t, resp)
	require.Len(t, r.Items, 2)
	assert.Equal(t, "B", r.Items[0].ID)
	assert.Equal(t, 7, r.TotalCount)
	assert.Equal(t, 1, r.TotalPages)

	r = decode[view.Result](t, env.do(t, http.MethodGet, "/entries/view?status=completed", ""))
	require.Len(t, r.Items, 1)
	assert.Equal(t, "B", r.Items[0].ID)
	assert.Equal(t, 5, r.TotalCount)

	r = decode[view.Result](t, env.do(t, http.MethodGet, "/entries/view?sort=name&dir=asc&pageSize=1&page=9", ""))
	require.Len(t, r.Items, 1)
	assert.Equal(t, "B", r.Items[0].ID)
	assert.Equal(t, 2, r.Page)
	assert.Equal(t, 2, r.TotalPages)

	for _, bad := range []string{"status=archived", "sort=count", "dir=up", "page=0", "pageSize=1000"} {
		resp := env.do(t, http.MethodGet, "/entries/view?"+bad, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
	}
}

func TestExport(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodGet, "/entries/export.xlsx", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	seedWorkedExample(t, env)

	resp = env.do(t, http.MethodGet, "/entries/export.xlsx?status=pending", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="task-list.xlsx"`)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"No", "Name", "Type", "Count", "Completed"},
		{"1", "A", "X", "2", "No"},
	}, rows)

	resp = env.do(t, http.MethodGet, "/entries/export.pdf", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	resp = env.do(t, http.MethodGet, "/entries/export.pdf?search=zzz", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSnapshots(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodGet, "/exports", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]blob.Info](t, resp))

	seedWorkedExample(t, env)
	stored, err := env.exports.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 2)

	list := decode[[]blob.Info](t, env.do(t, http.MethodGet, "/exports", ""))
	require.Len(t, list, 2)

	resp = env.do(t, http.MethodGet, "/"+list[0].Key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Disposition"))

	resp = env.do(t, http.MethodGet, "/exports/2020/01/01/missing.pdf", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	env := newEnv(t)

	resp, err := env.srv.Client().Get(env.srv.URL + "/entries")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, `Bearer realm="task-list"`, resp.Header.Get("WWW-Authenticate"))

	env.token = "garbage"
	resp = env.do(t, http.MethodGet, "/entries", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/login", `{"email":"admin@demo.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, msgBadCredentials, decode[map[string]string](t, resp)["message"])

	resp = env.do(t, http.MethodPost, "/login", `{"email":"admin@demo.com","password":"123456"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decode[auth.Token](t, resp)
	require.NotEmpty(t, tok.Token)

	env.token = tok.Token
	resp = env.do(t, http.MethodGet, "/entries", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp))

	env.do(t, http.MethodGet, "/entries", "")
	resp = env.do(t, http.MethodPost, "/entries", `{"name":"Rice","type":"IMIC","count":2}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// the request is counted after its response is flushed
	assert.Eventually(t, func() bool {
		resp, err := env.srv.Client().Get(env.srv.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		text := string(body)
		return strings.Contains(text, `tasklist_http_requests_total{code="200",route="GET /entries"} 1`) &&
			strings.Contains(text, "tasklist_entries 1")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAccessLogCarriesSubject(t *testing.T) {
	var buf bytes.Buffer
	env := newEnvWithLog(t, logging.New(&buf, "json", "info"))

	req := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader(`{"name":"Rice","type":"IMIC","count":2}`))
	req.Header.Set("Authorization", "Bearer "+env.token)
	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "entry created", lines[0]["msg"])
	assert.Equal(t, "admin@demo.com", lines[0]["subject"])
	assert.Equal(t, "http request", lines[1]["msg"])
	assert.Equal(t, "admin@demo.com", lines[1]["subject"])
	assert.Equal(t, "POST /entries", lines[1]["route"])
}

func TestCountText(t *testing.T) {
	assert.Nil(t, countText(nil))
	assert.Nil(t, countText(json.RawMessage("null")))
	assert.Equal(t, "3", *countText(json.RawMessage(`"3"`)))
	assert.Equal(t, "4.5", *countText(json.RawMessage(`4.5`)))
	assert.Equal(t, "true", *countText(json.RawMessage(`true`)))
}
