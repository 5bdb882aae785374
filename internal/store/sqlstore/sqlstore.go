// Package sqlstore serves the store contract straight from PostgreSQL.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/lib/pq"

	"tasky/internal/store"
)

// insertColumns are the client-supplied columns of each relation; ids and
// timestamps are left to the database.
var insertColumns = map[store.Relation][]string{
	store.Users:       {"display_name", "role_id"},
	store.Roles:       {"name"},
	store.Tasks:       {"title", "description"},
	store.Assignments: {"task_id", "user_id", "status"},
}

// Store is a store.Client backed by a *sqlx.DB.
type Store struct {
	db     *sqlx.DB
	mapper *reflectx.Mapper
}

// Open connects to a PostgreSQL database with lib/pq.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return New(db), nil
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db, mapper: reflectx.NewMapper("db")}
}

var _ store.Client = (*Store)(nil)

func (s *Store) Close() error {
	return s.db.Close()
}

func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func (s *Store) Select(ctx context.Context, rel store.Relation, dest any, q store.Query) error {
	columns := q.Columns
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	query := builder().Select(columns...).From(string(rel))
	if len(q.Filters) > 0 {
		query = query.Where(conditions(q.Filters))
	}
	for _, o := range q.Order {
		if o.Desc {
			query = query.OrderBy(o.Column + " DESC")
		} else {
			query = query.OrderBy(o.Column + " ASC")
		}
	}
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return store.Wrap("select", rel, err)
	}
	if err := sqlx.SelectContext(ctx, s.db, dest, sqlStr, args...); err != nil {
		return wrap("select", rel, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, rel store.Relation, rows any) error {
	columns, ok := insertColumns[rel]
	if !ok {
		return &store.Error{Op: "insert", Relation: rel, Message: "unknown relation"}
	}
	slice := reflect.ValueOf(rows)
	if slice.Kind() != reflect.Pointer || slice.Elem().Kind() != reflect.Slice {
		return &store.Error{Op: "insert", Relation: rel, Message: "rows must be a pointer to a slice"}
	}
	slice = slice.Elem()
	if slice.Len() == 0 {
		return nil
	}

	query := builder().Insert(string(rel)).Columns(columns...)
	for i := 0; i < slice.Len(); i++ {
		fields := s.mapper.FieldMap(slice.Index(i))
		values := make([]any, len(columns))
		for j, column := range columns {
			field, ok := fields[column]
			if !ok {
				return &store.Error{Op: "insert", Relation: rel, Message: fmt.Sprintf("row has no column %q", column)}
			}
			values[j] = field.Interface()
		}
		query = query.Values(values...)
	}
	sqlStr, args, err := query.Suffix("RETURNING *").ToSql()
	if err != nil {
		return store.Wrap("insert", rel, err)
	}

	fresh := reflect.New(slice.Type())
	if err := sqlx.SelectContext(ctx, s.db, fresh.Interface(), sqlStr, args...); err != nil {
		return wrap("insert", rel, err)
	}
	slice.Set(fresh.Elem())
	return nil
}

func (s *Store) Update(ctx context.Context, rel store.Relation, patch store.Patch, filters ...store.Filter) error {
	if len(filters) == 0 {
		return &store.Error{Op: "update", Relation: rel, Message: "update without filter refused"}
	}
	sqlStr, args, err := builder().Update(string(rel)).SetMap(map[string]any(patch)).Where(conditions(filters)).ToSql()
	if err != nil {
		return store.Wrap("update", rel, err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return wrap("update", rel, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, rel store.Relation, dest any, filters ...store.Filter) error {
	if len(filters) == 0 {
		return &store.Error{Op: "delete", Relation: rel, Message: "delete without filter refused"}
	}
	sqlStr, args, err := builder().Delete(string(rel)).Where(conditions(filters)).Suffix("RETURNING *").ToSql()
	if err != nil {
		return store.Wrap("delete", rel, err)
	}
	if err := sqlx.SelectContext(ctx, s.db, dest, sqlStr, args...); err != nil {
		return wrap("delete", rel, err)
	}
	return nil
}

func conditions(filters []store.Filter) sq.And {
	and := sq.And{}
	for _, f := range filters {
		and = append(and, sq.Eq{f.Column: f.Value})
	}
	return and
}

// wrap keeps the server's message when the failure came from PostgreSQL.
func wrap(op string, rel store.Relation, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &store.Error{Op: op, Relation: rel, Code: string(pqErr.Code), Message: pqErr.Message, Err: err}
	}
	return store.Wrap(op, rel, err)
}
