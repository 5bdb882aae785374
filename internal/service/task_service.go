package service

import (
	"context"
	"log"
	"strings"

	"tasky/internal/model"
	"tasky/internal/store"
)

// TaskAssignee is one assignment of a task with the user it points to.
// User is nil when the assignment references a user that no longer exists.
type TaskAssignee struct {
	Assignment model.Assignment
	User       *model.User
}

// UserTask is one assignment of a user with the task it points to.
type UserTask struct {
	Assignment model.Assignment
	Task       *model.Task
}

// TaskView is a task together with its assignees.
type TaskView struct {
	Task      model.Task
	Assignees []TaskAssignee
}

// Status is the status shown for the task as a whole: the first
// assignment's, or Pending when nobody is assigned.
func (v TaskView) Status() model.Status {
	if len(v.Assignees) == 0 || v.Assignees[0].Assignment.Status == 0 {
		return model.StatusPending
	}
	return v.Assignees[0].Assignment.Status
}

// TaskService owns task creation and the task↔user assignment set.
type TaskService struct {
	store store.Client
}

func NewTaskService(client store.Client) *TaskService {
	return &TaskService{store: client}
}

// CreateTask inserts the task, then one Pending assignment per user. When
// the assignments cannot be stored the task stays behind; the returned
// error names it.
func (s *TaskService) CreateTask(ctx context.Context, title, description string, userIDs []uint) (*model.Task, error) {
	const op = "create task"
	if strings.TrimSpace(title) == "" {
		return nil, validationError(op, "title is required")
	}
	ids := distinct(userIDs)
	if len(ids) == 0 {
		return nil, validationError(op, "select at least one user")
	}

	rows := []model.Task{{Title: title, Description: model.Text(description)}}
	if err := s.store.Insert(ctx, store.Tasks, &rows); err != nil {
		return nil, storeError(op, err)
	}
	task := rows[0]

	// The task row exists now; finish the sequence even if the caller
	// stops waiting.
	assignments := newAssignments(task.ID, ids, model.StatusPending)
	if err := s.store.Insert(context.WithoutCancel(ctx), store.Assignments, &assignments); err != nil {
		log.Printf("[warn] task %d created without assignments: %v", task.ID, err)
		return nil, &Error{Kind: ErrStore, Op: op, Message: store.MessageOf(err), TaskID: task.ID, Err: err}
	}

	task.Assignments = assignments
	log.Printf("[info] task created id=%d assignees=%d", task.ID, len(assignments))
	return &task, nil
}

// ReplaceAssignments swaps the task's whole assignment set for userIDs with
// the given status. The delete and the insert are two calls: if the insert
// fails the task is left with no assignments and ErrPartialReplacement is
// returned.
func (s *TaskService) ReplaceAssignments(ctx context.Context, taskID uint, userIDs []uint, status model.Status) ([]model.Assignment, error) {
	const op = "replace assignments"

	var removed []model.Assignment
	if err := s.store.Delete(ctx, store.Assignments, &removed, store.Eq("task_id", taskID)); err != nil {
		return nil, storeError(op, err)
	}

	assignments := newAssignments(taskID, distinct(userIDs), status)
	if len(assignments) == 0 {
		log.Printf("[info] task %d assignments cleared (removed=%d)", taskID, len(removed))
		return assignments, nil
	}
	if err := s.store.Insert(context.WithoutCancel(ctx), store.Assignments, &assignments); err != nil {
		log.Printf("[warn] task %d left without assignments: %v", taskID, err)
		return nil, &Error{Kind: ErrPartialReplacement, Op: op, Message: store.MessageOf(err), TaskID: taskID, Err: err}
	}

	log.Printf("[info] task %d assignments replaced removed=%d added=%d status=%d", taskID, len(removed), len(assignments), status)
	return assignments, nil
}

// UpdateTask edits the title and description of a task.
func (s *TaskService) UpdateTask(ctx context.Context, taskID uint, title, description string) error {
	const op = "update task"
	if strings.TrimSpace(title) == "" {
		return validationError(op, "title is required")
	}
	patch := store.Patch{"title": title, "description": description}
	if err := s.store.Update(ctx, store.Tasks, patch, store.Eq("id", taskID)); err != nil {
		return storeError(op, err)
	}
	return nil
}

// GetTask loads one task with its assignees.
func (s *TaskService) GetTask(ctx context.Context, taskID uint) (*TaskView, error) {
	const op = "get task"
	var tasks []model.Task
	if err := s.store.Select(ctx, store.Tasks, &tasks, store.Query{Filters: []store.Filter{store.Eq("id", taskID)}}); err != nil {
		return nil, storeError(op, err)
	}
	if len(tasks) == 0 {
		return nil, storeError(op, &store.Error{Op: "select", Relation: store.Tasks, Message: "task not found", Err: store.ErrNotFound})
	}
	assignees, err := s.ListAssignmentsForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &TaskView{Task: tasks[0], Assignees: assignees}, nil
}

// ListTasks returns every task, newest first, with its assignees.
func (s *TaskService) ListTasks(ctx context.Context) ([]TaskView, error) {
	const op = "list tasks"
	var tasks []model.Task
	if err := s.store.Select(ctx, store.Tasks, &tasks, store.Query{Order: []store.Order{store.Desc("created_at"), store.Desc("id")}}); err != nil {
		return nil, storeError(op, err)
	}
	views := make([]TaskView, 0, len(tasks))
	if len(tasks) == 0 {
		return views, nil
	}

	taskIDs := make([]uint, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
	}
	var assignments []model.Assignment
	if err := s.store.Select(ctx, store.Assignments, &assignments, store.Query{
		Filters: []store.Filter{store.In("task_id", taskIDs)},
		Order:   []store.Order{store.Asc("id")},
	}); err != nil {
		return nil, storeError(op, err)
	}
	users, err := s.usersByID(ctx, op, assignments)
	if err != nil {
		return nil, err
	}

	byTask := make(map[uint][]TaskAssignee, len(tasks))
	for _, a := range assignments {
		byTask[a.TaskID] = append(byTask[a.TaskID], TaskAssignee{Assignment: a, User: users[a.UserID]})
	}
	for _, t := range tasks {
		assignees := byTask[t.ID]
		if assignees == nil {
			assignees = []TaskAssignee{}
		}
		views = append(views, TaskView{Task: t, Assignees: assignees})
	}
	return views, nil
}

// ListAssignmentsForTask joins the task's assignments with their users.
func (s *TaskService) ListAssignmentsForTask(ctx context.Context, taskID uint) ([]TaskAssignee, error) {
	const op = "list task assignments"
	var assignments []model.Assignment
	if err := s.store.Select(ctx, store.Assignments, &assignments, store.Query{
		Filters: []store.Filter{store.Eq("task_id", taskID)},
		Order:   []store.Order{store.Asc("id")},
	}); err != nil {
		return nil, storeError(op, err)
	}
	result := make([]TaskAssignee, 0, len(assignments))
	if len(assignments) == 0 {
		return result, nil
	}
	users, err := s.usersByID(ctx, op, assignments)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		result = append(result, TaskAssignee{Assignment: a, User: users[a.UserID]})
	}
	return result, nil
}

// ListAssignmentsForUser joins the user's assignments with their tasks.
func (s *TaskService) ListAssignmentsForUser(ctx context.Context, userID uint) ([]UserTask, error) {
	const op = "list user assignments"
	var assignments []model.Assignment
	if err := s.store.Select(ctx, store.Assignments, &assignments, store.Query{
		Filters: []store.Filter{store.Eq("user_id", userID)},
		Order:   []store.Order{store.Asc("id")},
	}); err != nil {
		return nil, storeError(op, err)
	}
	result := make([]UserTask, 0, len(assignments))
	if len(assignments) == 0 {
		return result, nil
	}

	taskIDs := make([]uint, 0, len(assignments))
	for _, a := range assignments {
		taskIDs = append(taskIDs, a.TaskID)
	}
	var tasks []model.Task
	if err := s.store.Select(ctx, store.Tasks, &tasks, store.Query{Filters: []store.Filter{store.In("id", distinct(taskIDs))}}); err != nil {
		return nil, storeError(op, err)
	}
	byID := make(map[uint]*model.Task, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}
	for _, a := range assignments {
		result = append(result, UserTask{Assignment: a, Task: byID[a.TaskID]})
	}
	return result, nil
}

func (s *TaskService) usersByID(ctx context.Context, op string, assignments []model.Assignment) (map[uint]*model.User, error) {
	userIDs := make([]uint, 0, len(assignments))
	for _, a := range assignments {
		userIDs = append(userIDs, a.UserID)
	}
	byID := make(map[uint]*model.User)
	if len(userIDs) == 0 {
		return byID, nil
	}
	var users []model.User
	if err := s.store.Select(ctx, store.Users, &users, store.Query{Filters: []store.Filter{store.In("id", distinct(userIDs))}}); err != nil {
		return nil, storeError(op, err)
	}
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	return byID, nil
}

func newAssignments(taskID uint, userIDs []uint, status model.Status) []model.Assignment {
	rows := make([]model.Assignment, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, model.Assignment{TaskID: taskID, UserID: id, Status: status})
	}
	return rows
}

// distinct drops repeated ids, keeping first-seen order.
func distinct(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
