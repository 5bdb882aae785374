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

func TestCreateTaskValidationMakesNoCalls(t *testing.T) {
	client := newFaultyClient(t)
	svc := NewTaskService(client)
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, "   ", "desc", []uint{1})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateTask(ctx, "Title", "desc", nil)
	require.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, client.callCount())
}

func TestCreateTaskAssignsEveryUserPending(t *testing.T) {
	client := newFaultyClient(t)
	svc := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann", "Bob")

	ids := append(userIDs(users), users[0].ID)
	task, err := svc.CreateTask(ctx, "Quarterly report", "numbers", ids)
	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	require.Len(t, task.Assignments, 2)

	stored := assignmentsOf(t, client, task.ID)
	require.Len(t, stored, 2)
	for _, a := range stored {
		assert.Equal(t, model.StatusPending, a.Status)
	}
}

func TestCreateTaskOrphanNamesTask(t *testing.T) {
	client := newFaultyClient(t)
	svc := NewTaskService(client)
	users := seedUsers(t, client, "Ann")
	client.failOn("insert", store.Assignments, "permission denied for table task_assignments")

	task, err := svc.CreateTask(context.Background(), "Orphan", "", userIDs(users))
	assert.Nil(t, task)
	require.ErrorIs(t, err, ErrStore)

	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.NotZero(t, svcErr.TaskID)
	assert.Equal(t, "permission denied for table task_assignments", svcErr.Message)

	var tasks []model.Task
	require.NoError(t, client.Client.Select(context.Background(), store.Tasks, &tasks, store.Query{}))
	require.Len(t, tasks, 1)
	assert.Equal(t, svcErr.TaskID, tasks[0].ID)

	msg := UserMessage(err)
	assert.Contains(t, msg, "permission denied for table task_assignments")
	assert.Contains(t, msg, "Manual verification is required.")
}

func TestReplaceAssignments(t *testing.T) {
	client := newFaultyClient(t)
	svc := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann", "Bob", "Cid")

	task, err := svc.CreateTask(ctx, "Move office", "", []uint{users[0].ID})
	require.NoError(t, err)

	want := []uint{users[1].ID, users[2].ID}
	got, err := svc.ReplaceAssignments(ctx, task.ID, want, model.StatusInProgress)
	require.NoError(t, err)
	require.Len(t, got, 2)

	stored := assignmentsOf(t, client, task.ID)
	require.Len(t, stored, 2)
	for i, a := range stored {
		assert.Equal(t, want[i], a.UserID)
		assert.Equal(t, model.StatusInProgress, a.Status)
	}

	// The same call again leaves the same set.
	_, err = svc.ReplaceAssignments(ctx, task.ID, want, model.StatusInProgress)
	require.NoError(t, err)
	again := assignmentsOf(t, client, task.ID)
	require.Len(t, again, 2)
	assert.Equal(t, stored[0].UserID, again[0].UserID)
	assert.Equal(t, stored[1].UserID, again[1].UserID)
}

func TestReplaceAssignmentsEmptyClears(t *testing.T) {
	client := newFaultyClient(t)
	svc := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann")

	task, err := svc.CreateTask(ctx, "Cleanup", "", userIDs(users))
	require.NoError(t, err)

	client.reset()
	got, err := svc.ReplaceAssignments(ctx, task.ID, nil, model.StatusPending)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, []string{"delete task_assignments"}, client.recorded())
	assert.Empty(t, assignmentsOf(t, client.Client, task.ID))
}

func TestReplaceAssignmentsPartialFailure(t *testing.T) {
	client := newFaultyClient(t)
	svc := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann", "Bob")

	task, err := svc.CreateTask(ctx, "Audit", "", userIDs(users))
	require.NoError(t, err)

	client.failOn("insert", store.Assignments, "new row violates row-level security policy")
	_, err = svc.ReplaceAssignments(ctx, task.ID, []uint{users[0].ID}, model.StatusCompleted)
	require.ErrorIs(t, err, ErrPartialReplacement)
	assert.False(t, errors.Is(err, ErrStore))

	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, task.ID, svcErr.TaskID)
	assert.Empty(t, assignmentsOf(t, client, task.ID))
	assert.Contains(t, UserMessage(err), "Manual verification is required.")
}

func TestReplaceAssignmentsDeleteFailureKeepsSet(t *testing.T) {
	client := newFaultyClient(t)
	svc := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann")

	task, err := svc.CreateTask(ctx, "Keep", "", userIDs(users))
	require.NoError(t, err)

	client.failOn("delete", store.Assignments, "timeout")
	_, err = svc.ReplaceAssignments(ctx, task.ID, nil, model.StatusPending)
	require.ErrorIs(t, err, ErrStore)
	assert.Len(t, assignmentsOf(t, client, task.ID), 1)
}

func TestUpdateTask(t *testing.T) {
	client := newFaultyClient(t)
	svc := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann")

	task, err := svc.CreateTask(ctx, "Old", "", userIDs(users))
	require.NoError(t, err)

	require.ErrorIs(t, svc.UpdateTask(ctx, task.ID, "", "x"), ErrValidation)
	require.NoError(t, svc.UpdateTask(ctx, task.ID, "New", "details"))

	view, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", view.Task.Title)
	assert.Equal(t, model.Text("details"), view.Task.Description)
}

func TestGetTaskNotFound(t *testing.T) {
	client := newFaultyClient(t)
	svc := NewTaskService(client)

	_, err := svc.GetTask(context.Background(), 404)
	require.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListTasksAndAssignments(t *testing.T) {
	client := newFaultyClient(t)
	svc := NewTaskService(client)
	ctx := context.Background()
	users := seedUsers(t, client, "Ann", "Bob")

	first, err := svc.CreateTask(ctx, "First", "", userIDs(users))
	require.NoError(t, err)
	second, err := svc.CreateTask(ctx, "Second", "", []uint{users[1].ID})
	require.NoError(t, err)

	views, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, second.ID, views[0].Task.ID)
	assert.Len(t, views[1].Assignees, 2)
	assert.Equal(t, model.StatusPending, views[0].Status())
	require.NotNil(t, views[0].Assignees[0].User)
	assert.Equal(t, "Bob", views[0].Assignees[0].User.DisplayName)

	forBob, err := svc.ListAssignmentsForUser(ctx, users[1].ID)
	require.NoError(t, err)
	require.Len(t, forBob, 2)
	titles := []string{forBob[0].Task.Title, forBob[1].Task.Title}
	assert.ElementsMatch(t, []string{first.Title, second.Title}, titles)

	none, err := svc.ListAssignmentsForUser(ctx, 999)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	forTask, err := svc.ListAssignmentsForTask(ctx, 999)
	require.NoError(t, err)
	assert.NotNil(t, forTask)
	assert.Empty(t, forTask)
}

func TestListTasksEmpty(t *testing.T) {
	client := newFaultyClient(t)
	views, err := NewTaskService(client).ListTasks(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestTaskViewStatusDefaultsToPending(t *testing.T) {
	assert.Equal(t, model.StatusPending, TaskView{}.Status())
	view := TaskView{Assignees: []TaskAssignee{{Assignment: model.Assignment{Status: model.StatusCompleted}}}}
	assert.Equal(t, model.StatusCompleted, view.Status())
}
