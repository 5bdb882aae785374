package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasky/internal/model"
	"tasky/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := NewDB(":memory:")
	require.NoError(t, err)
	s := NewStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreInsertRefreshesIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	users := []model.User{{DisplayName: "Ann"}, {DisplayName: "Bob"}}
	require.NoError(t, s.Insert(ctx, store.Users, &users))
	assert.NotZero(t, users[0].ID)
	assert.NotZero(t, users[1].ID)
	assert.NotEqual(t, users[0].ID, users[1].ID)

	tasks := []model.Task{{Title: "Write report"}}
	require.NoError(t, s.Insert(ctx, store.Tasks, &tasks))
	assert.False(t, tasks[0].CreatedAt.IsZero())
}

func TestStoreSelectFiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	users := []model.User{{DisplayName: "Cid"}, {DisplayName: "Ann"}, {DisplayName: "Bob"}}
	require.NoError(t, s.Insert(ctx, store.Users, &users))

	var got []model.User
	require.NoError(t, s.Select(ctx, store.Users, &got, store.Query{
		Filters: []store.Filter{store.In("id", []uint{users[0].ID, users[1].ID})},
		Order:   []store.Order{store.Asc("display_name")},
	}))
	require.Len(t, got, 2)
	assert.Equal(t, "Ann", got[0].DisplayName)
	assert.Equal(t, "Cid", got[1].DisplayName)

	got = nil
	require.NoError(t, s.Select(ctx, store.Users, &got, store.Query{
		Filters: []store.Filter{store.In("id", []uint{})},
	}))
	assert.Empty(t, got)
}

func TestStoreUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tasks := []model.Task{{Title: "Draft"}}
	require.NoError(t, s.Insert(ctx, store.Tasks, &tasks))

	require.NoError(t, s.Update(ctx, store.Tasks, store.Patch{"title": "Final", "description": "v2"}, store.Eq("id", tasks[0].ID)))

	var got []model.Task
	require.NoError(t, s.Select(ctx, store.Tasks, &got, store.Query{Filters: []store.Filter{store.Eq("id", tasks[0].ID)}}))
	require.Len(t, got, 1)
	assert.Equal(t, "Final", got[0].Title)
	assert.Equal(t, model.Text("v2"), got[0].Description)
}

func TestStoreDeleteReturnsRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := []model.Assignment{
		{TaskID: 1, UserID: 1, Status: model.StatusPending},
		{TaskID: 1, UserID: 2, Status: model.StatusCompleted},
		{TaskID: 2, UserID: 1, Status: model.StatusPending},
	}
	require.NoError(t, s.Insert(ctx, store.Assignments, &rows))

	var removed []model.Assignment
	require.NoError(t, s.Delete(ctx, store.Assignments, &removed, store.Eq("task_id", 1)))
	assert.Len(t, removed, 2)

	var left []model.Assignment
	require.NoError(t, s.Select(ctx, store.Assignments, &left, store.Query{}))
	require.Len(t, left, 1)
	assert.Equal(t, uint(2), left[0].TaskID)
}

func TestStoreRefusesUnfilteredWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, store.Tasks, store.Patch{"title": "x"})
	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "update", storeErr.Op)

	var removed []model.Task
	require.ErrorAs(t, s.Delete(ctx, store.Tasks, &removed), &storeErr)
	assert.Equal(t, "delete", storeErr.Op)
}

func TestSeedRolesOnlyWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.SeedRoles(ctx, []string{"Manager", " ", "Developer"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.SeedRoles(ctx, []string{"Tester"})
	require.NoError(t, err)
	assert.Zero(t, n)

	var roles []model.Role
	require.NoError(t, s.Select(ctx, store.Roles, &roles, store.Query{Order: []store.Order{store.Asc("name")}}))
	require.Len(t, roles, 2)
	assert.Equal(t, "Developer", roles[0].Name)
}
