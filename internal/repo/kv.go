// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the key-value adapter every record
// service goes through: single-key get/put/update/delete and a filtered scan.
//
// All functions are context-aware and accept a *gorm.DB handle plus the
// physical table name, so the same model can be stored under any
// configured table.
//
// Error semantics:
//   - Get and Update return ErrNotFound when the key is absent.
//   - Delete of an absent key is a no-op.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrEmptyKey is returned when a key has no column name or a blank value.
var ErrEmptyKey = errors.New("empty key")

// Key identifies a single record by its primary (or unique) column.
type Key struct {
	Name  string
	Value any
}

// Attributes is a sparse column -> value diff. Nil values are ignored.
type Attributes map[string]any

// Filter is a conjunction of column equality conditions.
type Filter map[string]any

func (k Key) valid() bool {
	if strings.TrimSpace(k.Name) == "" || k.Value == nil {
		return false
	}
	if s, ok := k.Value.(string); ok && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

// Get fetches the record stored under key.
func Get[T any](ctx context.Context, db *gorm.DB, table string, key Key) (*T, error) {
	if !key.valid() {
		return nil, ErrEmptyKey
	}
	var out T
	err := db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: key.Name}, Value: key.Value}).
		Take(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Put stores item as a whole, inserting it or replacing every column of an
// existing row with the same primary key. Values are written as given;
// timestamps are not re-stamped on replace.
func Put[T any](ctx context.Context, db *gorm.DB, table string, item *T) error {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(item); err != nil {
		return err
	}
	pk := make([]clause.Column, 0, len(stmt.Schema.PrimaryFieldDBNames))
	isPK := make(map[string]bool, len(stmt.Schema.PrimaryFieldDBNames))
	for _, name := range stmt.Schema.PrimaryFieldDBNames {
		pk = append(pk, clause.Column{Name: name})
		isPK[name] = true
	}
	cols := make([]string, 0, len(stmt.Schema.DBNames))
	for _, name := range stmt.Schema.DBNames {
		if !isPK[name] {
			cols = append(cols, name)
		}
	}
	return db.WithContext(ctx).
		Table(table).
		Clauses(clause.OnConflict{Columns: pk, DoUpdates: clause.AssignmentColumns(cols)}).
		Create(item).Error
}

// Update applies attrs to the record stored under key and returns the
// record as read back after the write. Columns absent from attrs, and
// columns whose value is nil, keep their stored value.
func Update[T any](ctx context.Context, db *gorm.DB, table string, key Key, attrs Attributes) (*T, error) {
	if !key.valid() {
		return nil, ErrEmptyKey
	}
	diff := make(map[string]any, len(attrs))
	for col, v := range attrs {
		if v == nil || col == key.Name {
			continue
		}
		diff[col] = v
	}
	if len(diff) > 0 {
		err := db.WithContext(ctx).
			Table(table).
			Where(clause.Eq{Column: clause.Column{Name: key.Name}, Value: key.Value}).
			Updates(diff).Error
		if err != nil {
			return nil, err
		}
	}
	return Get[T](ctx, db, table, key)
}

// Delete removes the record stored under key.
func Delete[T any](ctx context.Context, db *gorm.DB, table string, key Key) error {
	if !key.valid() {
		return ErrEmptyKey
	}
	return db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: key.Name}, Value: key.Value}).
		Delete(new(T)).Error
}

// Scan returns every record matching filter. When projection is non-empty
// only those columns are loaded; the remaining fields stay zero.
func Scan[T any](ctx context.Context, db *gorm.DB, table string, filter Filter, projection ...string) ([]T, error) {
	q := db.WithContext(ctx).Table(table)
	for col, v := range filter {
		q = q.Where(clause.Eq{Column: clause.Column{Name: col}, Value: v})
	}
	if len(projection) > 0 {
		q = q.Select(projection)
	}
	var out []T
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
