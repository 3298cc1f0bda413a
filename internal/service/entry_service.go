package service

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-list/internal/model"
)

// Messages returned to clients on validation failure.
const (
	MsgRequired    = "Name, type and count required"
	MsgCount       = "Count must be a positive whole number"
	MsgUnknownType = "Unknown type"
	MsgIDRequired  = "ID is required"
	MsgEmptyField  = "Name and type cannot be empty"
)

// ValidationError is a client input problem. Nothing was persisted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// EntryStore is the persistence the service needs.
type EntryStore interface {
	List(ctx context.Context) ([]model.Entry, error)
	FindByID(ctx context.Context, id string) (*model.Entry, error)
	Create(ctx context.Context, entry *model.Entry) error
	Update(ctx context.Context, id string, patch model.EntryPatch, updatedAt time.Time) (*model.Entry, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// CreateInput holds raw create fields. Count is the unparsed quantity text;
// nil means it was not supplied.
type CreateInput struct {
	Name  string
	Type  string
	Count *string
}

// UpdateInput holds a partial update; nil fields are left unchanged.
type UpdateInput struct {
	ID        string
	Name      *string
	Type      *string
	Completed *bool
	Count     *string
}

// EntryService wraps entry business rules.
type EntryService struct {
	store      EntryStore
	categories *CategoryService
	now        func() time.Time
	newID      func() string
}

func NewEntryService(store EntryStore, categories *CategoryService) *EntryService {
	return &EntryService{
		store:      store,
		categories: categories,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// List returns every entry, newest first.
func (s *EntryService) List(ctx context.Context) ([]model.Entry, error) {
	return s.store.List(ctx)
}

// Count is the number of stored entries.
func (s *EntryService) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

func (s *EntryService) Create(ctx context.Context, in CreateInput) (*model.Entry, error) {
	name := strings.TrimSpace(in.Name)
	typ := strings.TrimSpace(in.Type)
	if name == "" || typ == "" || in.Count == nil {
		return nil, invalid(MsgRequired)
	}
	count, err := parseCount(*in.Count, MsgRequired)
	if err != nil {
		return nil, err
	}
	typ, ok := s.categories.Resolve(typ)
	if !ok {
		return nil, invalid(MsgUnknownType)
	}

	now := s.now().UTC()
	entry := model.Entry{
		ID:        s.newID(),
		Name:      name,
		Type:      typ,
		Count:     count,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Update applies the present fields. An unknown id yields
// repository.ErrNotFound from the store.
func (s *EntryService) Update(ctx context.Context, in UpdateInput) (*model.Entry, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, invalid(MsgIDRequired)
	}

	patch := model.EntryPatch{Completed: in.Completed}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid(MsgEmptyField)
		}
		patch.Name = &name
	}
	if in.Type != nil {
		typ := strings.TrimSpace(*in.Type)
		if typ == "" {
			return nil, invalid(MsgEmptyField)
		}
		typ, ok := s.categories.Resolve(typ)
		if !ok {
			return nil, invalid(MsgUnknownType)
		}
		patch.Type = &typ
	}
	if in.Count != nil {
		count, err := parseCount(*in.Count, MsgCount)
		if err != nil {
			return nil, err
		}
		patch.Count = &count
	}

	return s.store.Update(ctx, id, patch, s.now().UTC())
}

// Toggle flips the completed flag.
func (s *EntryService) Toggle(ctx context.Context, id string) (*model.Entry, error) {
	entry, err := s.store.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	done := !entry.Completed
	return s.Update(ctx, UpdateInput{ID: entry.ID, Completed: &done})
}

// Delete removes the entry if it exists and reports whether it did.
// A missing id is not an error.
func (s *EntryService) Delete(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}
	return s.store.Delete(ctx, id)
}

// parseCount accepts a JSON number literal or numeric text. Text that is not
// a number fails with unparsable; anything else that is not a positive whole
// number fails with MsgCount.
func parseCount(raw, unparsable string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalid(unparsable)
	}
	if f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, invalid(MsgCount)
	}
	return int(f), nil
}
