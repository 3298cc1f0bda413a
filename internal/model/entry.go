package model

import "time"

// Entry is a single item of the list: a named quantity tagged with a type.
type Entry struct {
	ID        string    `gorm:"primaryKey;type:text" json:"_id"`
	Name      string    `gorm:"not null" json:"name"`
	Type      string    `gorm:"not null" json:"type"`
	Completed bool      `gorm:"not null" json:"completed"`
	Count     int       `gorm:"not null" json:"count"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntryPatch holds the fields of a partial update. Nil fields are left untouched.
type EntryPatch struct {
	Name      *string
	Type      *string
	Completed *bool
	Count     *int
}

// Empty reports whether the patch changes nothing.
func (p EntryPatch) Empty() bool {
	return p.Name == nil && p.Type == nil && p.Completed == nil && p.Count == nil
}

// Columns maps the present fields to their column names.
func (p EntryPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Type != nil {
		cols["type"] = *p.Type
	}
	if p.Completed != nil {
		cols["completed"] = *p.Completed
	}
	if p.Count != nil {
		cols["count"] = *p.Count
	}
	return cols
}
