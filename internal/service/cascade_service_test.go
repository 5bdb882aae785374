package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasky/internal/model"
	"tasky/internal/store"
)

func TestDeleteTaskCascades(t *testing.T) {
	client := newFaultyClient(t)
	tasks := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann", "Bob")

	task, err := tasks.CreateTask(ctx, "Retire", "", userIDs(users))
	require.NoError(t, err)

	fallback := &stubDeleter{name: "fallback"}
	res, err := NewCascadeService(client, fallback).DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State())
	assert.Equal(t, []CascadeState{StateStart, StateDeletingChildren, StateDeletingParent, StateDone}, res.Path)
	assert.Equal(t, 2, res.ChildrenDeleted)
	assert.True(t, res.Refresh)
	assert.NotEmpty(t, res.OperationID)
	assert.Zero(t, fallback.calls)

	assert.Empty(t, assignmentsOf(t, client, task.ID))
	_, err = tasks.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteTaskChildrenFailureTouchesNothing(t *testing.T) {
	client := newFaultyClient(t)
	tasks := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann")

	task, err := tasks.CreateTask(ctx, "Stay", "", userIDs(users))
	require.NoError(t, err)

	client.failOn("delete", store.Assignments, "connection reset")
	fallback := &stubDeleter{name: "fallback"}
	res, err := NewCascadeService(client, fallback).DeleteTask(ctx, task.ID)
	require.ErrorIs(t, err, ErrStore)
	assert.Equal(t, []CascadeState{StateStart, StateDeletingChildren, StateFailed}, res.Path)
	assert.Empty(t, res.Attempts)
	assert.False(t, res.Refresh)
	assert.Zero(t, fallback.calls)

	view, err := tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, view.Assignees, 1)
}

func TestDeleteTaskFallsBack(t *testing.T) {
	client := newFaultyClient(t)
	tasks := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann")

	task, err := tasks.CreateTask(ctx, "Stubborn", "", userIDs(users))
	require.NoError(t, err)

	client.failOn("delete", store.Tasks, "permission denied for table tasks")
	fallback := &stubDeleter{name: "fallback"}
	res, err := NewCascadeService(client, fallback).DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State())
	assert.Contains(t, res.Path, StateFallbackAttempt)
	assert.Equal(t, 1, fallback.calls)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "primary", res.Attempts[0].Deleter)
	assert.Error(t, res.Attempts[0].Err)
	assert.NoError(t, res.Attempts[1].Err)
}

func TestDeleteTaskInconsistent(t *testing.T) {
	client := newFaultyClient(t)
	tasks := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann", "Bob")

	task, err := tasks.CreateTask(ctx, "Half gone", "", userIDs(users))
	require.NoError(t, err)

	client.failOn("delete", store.Tasks, "permission denied for table tasks")
	fallback := &stubDeleter{name: "fallback", err: &store.Error{Op: "delete", Relation: store.Tasks, Message: "Unauthorized"}}
	res, err := NewCascadeService(client, fallback).DeleteTask(ctx, task.ID)
	require.ErrorIs(t, err, ErrCascadeInconsistent)
	assert.Equal(t, StateFailed, res.State())
	assert.Equal(t, 2, res.ChildrenDeleted)
	assert.False(t, res.Refresh)

	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "permission denied for table tasks; fallback: Unauthorized", svcErr.Message)
	assert.ErrorIs(t, err, fallback.err)
	assert.Same(t, fallback.err, svcErr.Fallback)
	var primary *store.Error
	require.ErrorAs(t, svcErr.Err, &primary)
	assert.Equal(t, "permission denied for table tasks", primary.Message)

	// Assignments are gone, the task row is still there.
	assert.Empty(t, assignmentsOf(t, client, task.ID))
	var left []model.Task
	require.NoError(t, client.Client.Select(ctx, store.Tasks, &left, store.Query{Filters: []store.Filter{store.Eq("id", task.ID)}}))
	assert.Len(t, left, 1)

	msg := UserMessage(err)
	assert.Contains(t, msg, "permission denied for table tasks")
	assert.Contains(t, msg, "Manual verification is required.")
}

func TestDeleteTaskWithoutFallback(t *testing.T) {
	client := newFaultyClient(t)
	ctx := context.Background()
	client.failOn("delete", store.Tasks, "denied")

	res, err := NewCascadeService(client, nil).DeleteTask(ctx, 1)
	require.ErrorIs(t, err, ErrCascadeInconsistent)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "fallback", res.Attempts[1].Deleter)
	assert.Error(t, res.Attempts[1].Err)
}

func TestCheckRelations(t *testing.T) {
	client := newFaultyClient(t)
	tasks := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann", "Bob")

	_, err := tasks.CreateTask(ctx, "One", "", userIDs(users))
	require.NoError(t, err)
	_, err = tasks.CreateTask(ctx, "Two", "", []uint{users[0].ID})
	require.NoError(t, err)

	cascade := NewCascadeService(client, nil)
	rel, err := cascade.CheckRelations(ctx, users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rel.Count)

	rel, err = cascade.CheckRelations(ctx, users[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rel.Count)

	rel, err = cascade.CheckRelations(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, rel.Count)
}

func TestDeleteUserWithoutRelations(t *testing.T) {
	client := newFaultyClient(t)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann")

	confirmCalled := false
	res, err := NewCascadeService(client, nil).DeleteUser(ctx, users[0].ID, func(Relations) bool {
		confirmCalled = true
		return false
	})
	require.NoError(t, err)
	assert.False(t, confirmCalled)
	assert.Equal(t, []CascadeState{StateStart, StateDeletingParent, StateDone}, res.Path)
	assert.Zero(t, res.ChildrenDeleted)

	_, err = NewUserService(client).GetUser(ctx, users[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteUserNeedsConfirmation(t *testing.T) {
	client := newFaultyClient(t)
	tasks := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann")

	task, err := tasks.CreateTask(ctx, "Linked", "", userIDs(users))
	require.NoError(t, err)

	cascade := NewCascadeService(client, nil)
	_, err = cascade.DeleteUser(ctx, users[0].ID, nil)
	require.ErrorIs(t, err, ErrNotConfirmed)

	// The count changed since the operator looked.
	_, err = cascade.DeleteUser(ctx, users[0].ID, ConfirmCount(3))
	require.ErrorIs(t, err, ErrNotConfirmed)
	assert.Len(t, assignmentsOf(t, client, task.ID), 1)

	res, err := cascade.DeleteUser(ctx, users[0].ID, ConfirmCount(1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChildrenDeleted)
	assert.Equal(t, StateDone, res.State())
	assert.Empty(t, assignmentsOf(t, client, task.ID))

	// The task itself survives.
	_, err = tasks.GetTask(ctx, task.ID)
	assert.NoError(t, err)
}

func TestDeleteUserRelationCheckFailure(t *testing.T) {
	client := newFaultyClient(t)
	client.failOn("select", store.Assignments, "boom")

	res, err := NewCascadeService(client, nil).DeleteUser(context.Background(), 1, ConfirmCount(0))
	require.ErrorIs(t, err, ErrStore)
	require.NotNil(t, res)
	assert.Equal(t, StateStart, res.State())
	assert.False(t, errors.Is(err, ErrNotConfirmed))
}

func TestStoreDeleterRejectsChildRelation(t *testing.T) {
	client := newFaultyClient(t)
	err := NewStoreDeleter(client).DeleteByID(context.Background(), store.Assignments, 1)
	var storeErr *store.Error
	assert.ErrorAs(t, err, &storeErr)
}
