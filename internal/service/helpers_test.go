package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tasky/internal/model"
	"tasky/internal/repository"
	"tasky/internal/store"
)

// faultyClient wraps an in-memory store, counts calls and fails the ones
// registered with failOn.
type faultyClient struct {
	store.Client

	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func newFaultyClient(t *testing.T) *faultyClient {
	t.Helper()
	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	s := repository.NewStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return &faultyClient{Client: s, fail: map[string]error{}}
}

func (c *faultyClient) failOn(op string, rel store.Relation, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[op+" "+string(rel)] = &store.Error{Op: op, Relation: rel, Code: "42501", Message: message}
}

func (c *faultyClient) record(op string, rel store.Relation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := op + " " + string(rel)
	c.calls = append(c.calls, key)
	return c.fail[key]
}

func (c *faultyClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *faultyClient) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *faultyClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

func (c *faultyClient) Select(ctx context.Context, rel store.Relation, dest any, q store.Query) error {
	if err := c.record("select", rel); err != nil {
		return err
	}
	return c.Client.Select(ctx, rel, dest, q)
}

func (c *faultyClient) Insert(ctx context.Context, rel store.Relation, rows any) error {
	if err := c.record("insert", rel); err != nil {
		return err
	}
	return c.Client.Insert(ctx, rel, rows)
}

func (c *faultyClient) Update(ctx context.Context, rel store.Relation, patch store.Patch, filters ...store.Filter) error {
	if err := c.record("update", rel); err != nil {
		return err
	}
	return c.Client.Update(ctx, rel, patch, filters...)
}

func (c *faultyClient) Delete(ctx context.Context, rel store.Relation, dest any, filters ...store.Filter) error {
	if err := c.record("delete", rel); err != nil {
		return err
	}
	return c.Client.Delete(ctx, rel, dest, filters...)
}

// stubDeleter records calls and returns err.
type stubDeleter struct {
	name  string
	err   error
	calls int
}

func (d *stubDeleter) Name() string { return d.name }

func (d *stubDeleter) DeleteByID(context.Context, store.Relation, uint) error {
	d.calls++
	return d.err
}

func seedUsers(t *testing.T, c store.Client, names ...string) []model.User {
	t.Helper()
	rows := make([]model.User, 0, len(names))
	for _, n := range names {
		rows = append(rows, model.User{DisplayName: n})
	}
	require.NoError(t, c.Insert(context.Background(), store.Users, &rows))
	return rows
}

func userIDs(users []model.User) []uint {
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

func assignmentsOf(t *testing.T, c store.Client, taskID uint) []model.Assignment {
	t.Helper()
	var rows []model.Assignment
	require.NoError(t, c.Select(context.Background(), store.Assignments, &rows, store.Query{
		Filters: []store.Filter{store.Eq("task_id", taskID)},
		Order:   []store.Order{store.Asc("id")},
	}))
	return rows
}
