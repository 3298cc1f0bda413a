package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"task-list/internal/model"
)

// ErrNotFound is returned when no entry matches the given id.
var ErrNotFound = errors.New("entry not found")

// EntryRepository handles CRUD for entries.
type EntryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// List returns every entry, newest first.
func (r *EntryRepository) List(ctx context.Context) ([]model.Entry, error) {
	var entries []model.Entry
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (r *EntryRepository) Create(ctx context.Context, entry *model.Entry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (r *EntryRepository) FindByID(ctx context.Context, id string) (*model.Entry, error) {
	var entry model.Entry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	switch {
	case err == nil:
		return &entry, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("find entry: %w", err)
	}
}

// Update applies the present patch fields and stamps updated_at, then returns
// the stored record. An empty patch only reads the entry back.
func (r *EntryRepository) Update(ctx context.Context, id string, patch model.EntryPatch, updatedAt time.Time) (*model.Entry, error) {
	if patch.Empty() {
		return r.FindByID(ctx, id)
	}

	var updated model.Entry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cols := patch.Columns()
		cols["updated_at"] = updatedAt

		res := tx.Model(&model.Entry{}).Where("id = ?", id).UpdateColumns(cols)
		if res.Error != nil {
			return fmt.Errorf("update entry: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("id = ?", id).First(&updated).Error; err != nil {
			return fmt.Errorf("reload entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the entry and reports whether it existed.
func (r *EntryRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Entry{})
	if res.Error != nil {
		return false, fmt.Errorf("delete entry: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *EntryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Entry{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}
