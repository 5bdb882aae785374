package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tasky/internal/store"
)

// Store serves the store contract from a local GORM database.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ store.Client = (*Store)(nil)

func (s *Store) Select(ctx context.Context, rel store.Relation, dest any, q store.Query) error {
	db := s.db.WithContext(ctx).Table(string(rel))
	if len(q.Columns) > 0 {
		db = db.Select(q.Columns)
	}
	db = applyFilters(db, q.Filters)
	for _, o := range q.Order {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	if err := db.Find(dest).Error; err != nil {
		return store.Wrap("select", rel, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, rel store.Relation, rows any) error {
	if err := s.db.WithContext(ctx).Table(string(rel)).Create(rows).Error; err != nil {
		return store.Wrap("insert", rel, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, rel store.Relation, patch store.Patch, filters ...store.Filter) error {
	if len(filters) == 0 {
		return &store.Error{Op: "update", Relation: rel, Message: "update without filter refused"}
	}
	db := applyFilters(s.db.WithContext(ctx).Table(string(rel)), filters)
	if err := db.Updates(map[string]any(patch)).Error; err != nil {
		return store.Wrap("update", rel, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, rel store.Relation, dest any, filters ...store.Filter) error {
	if len(filters) == 0 {
		return &store.Error{Op: "delete", Relation: rel, Message: "delete without filter refused"}
	}
	db := applyFilters(s.db.WithContext(ctx).Table(string(rel)), filters)
	if err := db.Clauses(clause.Returning{}).Delete(dest).Error; err != nil {
		return store.Wrap("delete", rel, err)
	}
	return nil
}

func applyFilters(db *gorm.DB, filters []store.Filter) *gorm.DB {
	for _, f := range filters {
		column := clause.Column{Name: f.Column}
		switch f.Op {
		case store.OpIn:
			db = db.Where(clause.IN{Column: column, Values: f.Value.([]any)})
		default:
			db = db.Where(clause.Eq{Column: column, Value: f.Value})
		}
	}
	return db
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return sqlDB.Close()
}

// SeedRoles inserts roles when the table is empty. Used by the migrate command
// for local databases.
func (s *Store) SeedRoles(ctx context.Context, names []string) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Table(string(store.Roles)).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count roles: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	inserted := 0
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := s.db.WithContext(ctx).Table(string(store.Roles)).Create(map[string]any{"name": name}).Error; err != nil {
			return inserted, fmt.Errorf("seed role %q: %w", name, err)
		}
		inserted++
	}
	return inserted, nil
}
