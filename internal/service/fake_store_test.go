package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"task-list/internal/model"
	"task-list/internal/repository"
)

// memStore is an EntryStore kept in a map.
type memStore struct {
	mu      sync.Mutex
	entries map[string]model.Entry
	err     error
}

func newMemStore(entries ...model.Entry) *memStore {
	s := &memStore{entries: make(map[string]model.Entry)}
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return s
}

func (s *memStore) List(context.Context) ([]model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (s *memStore) Create(_ context.Context, e *model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, dup := s.entries[e.ID]; dup {
		return errors.New("duplicate id")
	}
	s.entries[e.ID] = *e
	return nil
}

func (s *memStore) Update(_ context.Context, id string, p model.EntryPatch, at time.Time) (*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Completed != nil {
		e.Completed = *p.Completed
	}
	if p.Count != nil {
		e.Count = *p.Count
	}
	if !p.Empty() {
		e.UpdatedAt = at
	}
	s.entries[id] = e
	return &e, nil
}

func (s *memStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	return ok, nil
}

func (s *memStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.entries)), nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }
