// Package store defines the contract of the remote relational store the
// application delegates all persistence to.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Relation names a table on the remote store.
type Relation string

const (
	Users       Relation = "users"
	Roles       Relation = "roles"
	Tasks       Relation = "tasks"
	Assignments Relation = "task_assignments"
)

// Operator is the comparison a Filter applies.
type Operator string

const (
	OpEq Operator = "eq"
	OpIn Operator = "in"
)

// Filter restricts a select, update or delete to matching rows.
type Filter struct {
	Column string
	Op     Operator
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// In matches rows whose column is one of values. An empty list matches
// nothing.
func In[T any](column string, values []T) Filter {
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = v
	}
	return Filter{Column: column, Op: OpIn, Value: list}
}

// Order sorts a select by one column.
type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// Query describes a select. Empty Columns selects every column.
type Query struct {
	Columns []string
	Filters []Filter
	Order   []Order
}

// Patch holds column values for an update.
type Patch map[string]any

// Client is a single round trip per call, without retries. dest and rows
// are pointers to slices of model structs.
type Client interface {
	// Select loads matching rows into dest.
	Select(ctx context.Context, rel Relation, dest any, q Query) error
	// Insert stores rows and refreshes them with the stored
	// representation, including generated ids.
	Insert(ctx context.Context, rel Relation, rows any) error
	Update(ctx context.Context, rel Relation, patch Patch, filters ...Filter) error
	// Delete removes matching rows and loads the removed rows into dest.
	Delete(ctx context.Context, rel Relation, dest any, filters ...Filter) error
}

var ErrNotFound = errors.New("row not found")

// Error is a failed store call. Message is the backend's text, unmodified.
type Error struct {
	Op       string
	Relation Relation
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("store: %s %s: %s", e.Op, e.Relation, e.Message)
	}
	return fmt.Sprintf("store: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap converts err into an *Error unless it already is one.
func Wrap(op string, rel Relation, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return err
	}
	return &Error{Op: op, Relation: rel, Message: err.Error(), Err: err}
}

// MessageOf returns the backend message carried by err, or err's text.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Message
	}
	return err.Error()
}
