package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-list/internal/model"
	"task-list/internal/repository"
)

var fixedNow = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

func newEntryService(store *memStore, types ...string) *EntryService {
	s := NewEntryService(store, NewCategoryService(types))
	s.now = func() time.Time { return fixedNow }
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return s
}

func requireValidation(t *testing.T, err error, msg string) {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, msg, ve.Message)
}

func TestCreate_CoercesNumericText(t *testing.T) {
	store := newMemStore()
	svc := newEntryService(store)

	e, err := svc.Create(context.Background(), CreateInput{Name: "Rice", Type: "IMIC", Count: strp("3")})
	require.NoError(t, err)
	assert.Equal(t, 3, e.Count)
	assert.Equal(t, "id-1", e.ID)
	assert.False(t, e.Completed)
	assert.Equal(t, fixedNow, e.CreatedAt)
	assert.Equal(t, fixedNow, e.UpdatedAt)

	stored, err := store.FindByID(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Count)
}

func TestCreate_AcceptsNumberLiteralForms(t *testing.T) {
	svc := newEntryService(newMemStore())
	for raw, want := range map[string]int{"7": 7, " 12 ": 12, "4.0": 4, "1e1": 10} {
		e, err := svc.Create(context.Background(), CreateInput{Name: "x", Type: "y", Count: strp(raw)})
		require.NoError(t, err, "count %q", raw)
		assert.Equal(t, want, e.Count, "count %q", raw)
	}
}

func TestCreate_RejectsMissingFields(t *testing.T) {
	store := newMemStore()
	svc := newEntryService(store)

	cases := []CreateInput{
		{Name: "", Type: "IMIC", Count: strp("1")},
		{Name: "   ", Type: "IMIC", Count: strp("1")},
		{Name: "Rice", Type: "", Count: strp("1")},
		{Name: "Rice", Type: "IMIC"},
		{Name: "Rice", Type: "IMIC", Count: strp("abc")},
		{Name: "Rice", Type: "IMIC", Count: strp("")},
		{Name: "Rice", Type: "IMIC", Count: strp("NaN")},
	}
	for _, in := range cases {
		_, err := svc.Create(context.Background(), in)
		requireValidation(t, err, MsgRequired)
	}
	assert.Zero(t, store.len())
}

func TestCreate_RejectsNonPositiveOrFractionalCount(t *testing.T) {
	store := newMemStore()
	svc := newEntryService(store)

	for _, raw := range []string{"0", "-2", "2.5", "1e12"} {
		_, err := svc.Create(context.Background(), CreateInput{Name: "Rice", Type: "IMIC", Count: strp(raw)})
		requireValidation(t, err, MsgCount)
	}
	assert.Zero(t, store.len())
}

func TestCreate_TypeMustBeConfigured(t *testing.T) {
	store := newMemStore()
	svc := newEntryService(store, "IMIC", "SSF")

	e, err := svc.Create(context.Background(), CreateInput{Name: "Oil", Type: "ssf", Count: strp("1")})
	require.NoError(t, err)
	assert.Equal(t, "SSF", e.Type)

	_, err = svc.Create(context.Background(), CreateInput{Name: "Oil", Type: "Other", Count: strp("1")})
	requireValidation(t, err, MsgUnknownType)
	assert.Equal(t, 1, store.len())
}

func TestCreate_StoreFailurePropagates(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("db down")
	svc := newEntryService(store)

	_, err := svc.Create(context.Background(), CreateInput{Name: "Rice", Type: "IMIC", Count: strp("1")})
	require.Error(t, err)
	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}

func TestUpdate_PartialFields(t *testing.T) {
	store := newMemStore(model.Entry{ID: "a", Name: "Rice", Type: "IMIC", Count: 2, CreatedAt: fixedNow.Add(-time.Hour)})
	svc := newEntryService(store)

	e, err := svc.Update(context.Background(), UpdateInput{ID: "a", Completed: boolp(true), Count: strp("9")})
	require.NoError(t, err)
	assert.True(t, e.Completed)
	assert.Equal(t, 9, e.Count)
	assert.Equal(t, "Rice", e.Name)
	assert.Equal(t, fixedNow, e.UpdatedAt)
}

func TestUpdate_Validation(t *testing.T) {
	store := newMemStore(model.Entry{ID: "a", Name: "Rice", Type: "IMIC", Count: 2})
	svc := newEntryService(store, "IMIC")

	_, err := svc.Update(context.Background(), UpdateInput{Completed: boolp(true)})
	requireValidation(t, err, MsgIDRequired)

	_, err = svc.Update(context.Background(), UpdateInput{ID: "a", Name: strp(" ")})
	requireValidation(t, err, MsgEmptyField)

	_, err = svc.Update(context.Background(), UpdateInput{ID: "a", Type: strp("Nope")})
	requireValidation(t, err, MsgUnknownType)

	for _, raw := range []string{"abc", "0", "1.5"} {
		_, err = svc.Update(context.Background(), UpdateInput{ID: "a", Count: strp(raw)})
		requireValidation(t, err, MsgCount)
	}

	got, _ := store.FindByID(context.Background(), "a")
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "Rice", got.Name)
}

func TestUpdate_UnknownID(t *testing.T) {
	svc := newEntryService(newMemStore())
	_, err := svc.Update(context.Background(), UpdateInput{ID: "missing", Completed: boolp(true)})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestToggle(t *testing.T) {
	store := newMemStore(model.Entry{ID: "a", Name: "Rice", Type: "IMIC", Count: 2})
	svc := newEntryService(store)

	e, err := svc.Toggle(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, e.Completed)

	e, err = svc.Toggle(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, e.Completed)

	_, err = svc.Toggle(context.Background(), "zzz")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := newMemStore(model.Entry{ID: "a", Name: "Rice", Type: "IMIC", Count: 2})
	svc := newEntryService(store)

	deleted, err := svc.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 1, store.len())

	deleted, err = svc.Delete(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = svc.Delete(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Zero(t, store.len())
}

func TestList_NewestFirst(t *testing.T) {
	store := newMemStore(
		model.Entry{ID: "old", CreatedAt: fixedNow.Add(-time.Hour)},
		model.Entry{ID: "new", CreatedAt: fixedNow},
	)
	svc := newEntryService(store)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
}

func TestCount(t *testing.T) {
	store := newMemStore(model.Entry{ID: "a"}, model.Entry{ID: "b"})
	svc := newEntryService(store)

	n, err := svc.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	store.err = errors.New("db down")
	_, err = svc.Count(context.Background())
	assert.Error(t, err)
}

func TestCategoryService(t *testing.T) {
	c := NewCategoryService([]string{"IMIC", " SA-ADIYA ", "", "imic", "Madrassa"})
	assert.Equal(t, []string{"IMIC", "SA-ADIYA", "Madrassa"}, c.List())

	got, ok := c.Resolve("madrassa")
	assert.True(t, ok)
	assert.Equal(t, "Madrassa", got)

	_, ok = c.Resolve("SSF")
	assert.False(t, ok)

	open := NewCategoryService(nil)
	assert.Empty(t, open.List())
	got, ok = open.Resolve(" Anything ")
	assert.True(t, ok)
	assert.Equal(t, "Anything", got)
	_, ok = open.Resolve("")
	assert.False(t, ok)
}
