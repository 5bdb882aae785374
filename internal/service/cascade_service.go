package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"tasky/internal/model"
	"tasky/internal/store"
)

// CascadeState is a step of a cascade deletion.
type CascadeState string

const (
	StateStart            CascadeState = "start"
	StateDeletingChildren CascadeState = "deleting_children"
	StateDeletingParent   CascadeState = "deleting_parent"
	StateFallbackAttempt  CascadeState = "fallback_attempt"
	StateDone             CascadeState = "done"
	StateFailed           CascadeState = "failed"
)

// DeleteAttempt is the outcome of one Deleter call.
type DeleteAttempt struct {
	Deleter string
	Err     error
}

// CascadeResult describes one deletion, successful or not. It is returned
// alongside any error.
type CascadeResult struct {
	OperationID     string
	Relation        store.Relation
	ParentID        uint
	ChildrenDeleted int
	Path            []CascadeState
	Attempts        []DeleteAttempt
	// Refresh tells the caller to drop the parent from any list it shows.
	Refresh bool
}

// State is the last state reached.
func (r *CascadeResult) State() CascadeState {
	if len(r.Path) == 0 {
		return StateStart
	}
	return r.Path[len(r.Path)-1]
}

func (r *CascadeResult) enter(state CascadeState) {
	r.Path = append(r.Path, state)
}

// Relations is what a user deletion would take with it.
type Relations struct {
	UserID uint
	Count  int
}

// Confirmation decides whether a user with relations may be deleted.
type Confirmation func(Relations) bool

// ConfirmCount accepts only when the user still has exactly the count the
// operator was shown.
func ConfirmCount(count int) Confirmation {
	return func(r Relations) bool { return r.Count == count }
}

// CascadeService deletes tasks and users together with the assignments that
// reference them. Nothing here is atomic: see the states in CascadeResult.
type CascadeService struct {
	store    store.Client
	primary  Deleter
	fallback Deleter
}

// NewCascadeService wires the primary deleter over client. fallback may be
// nil, in which case a failed parent deletion is final.
func NewCascadeService(client store.Client, fallback Deleter) *CascadeService {
	return &CascadeService{
		store:    client,
		primary:  NewStoreDeleter(client),
		fallback: fallback,
	}
}

// DeleteTask removes the task's assignments, then the task.
func (s *CascadeService) DeleteTask(ctx context.Context, taskID uint) (*CascadeResult, error) {
	return s.cascade(ctx, "delete task", store.Tasks, "task_id", taskID)
}

// CheckRelations counts the assignments referencing the user.
func (s *CascadeService) CheckRelations(ctx context.Context, userID uint) (Relations, error) {
	var rows []model.Assignment
	err := s.store.Select(ctx, store.Assignments, &rows, store.Query{
		Columns: []string{"id"},
		Filters: []store.Filter{store.Eq("user_id", userID)},
	})
	if err != nil {
		return Relations{UserID: userID}, storeError("check relations", err)
	}
	return Relations{UserID: userID, Count: len(rows)}, nil
}

// DeleteUser checks the user's relations first. Without relations only the
// user row is deleted. With relations confirm must accept them before the
// cascade starts.
func (s *CascadeService) DeleteUser(ctx context.Context, userID uint, confirm Confirmation) (*CascadeResult, error) {
	const op = "delete user"
	rel, err := s.CheckRelations(ctx, userID)
	if err != nil {
		return s.newResult(store.Users, userID), err
	}

	if rel.Count == 0 {
		return s.deleteBare(ctx, op, store.Users, userID)
	}
	if confirm == nil || !confirm(rel) {
		res := s.newResult(store.Users, userID)
		return res, &Error{Kind: ErrNotConfirmed, Op: op, Message: fmt.Sprintf("user %d has %d assignment(s)", userID, rel.Count)}
	}
	return s.cascade(ctx, op, store.Users, "user_id", userID)
}

func (s *CascadeService) newResult(rel store.Relation, id uint) *CascadeResult {
	return &CascadeResult{
		OperationID: uuid.NewString(),
		Relation:    rel,
		ParentID:    id,
		Path:        []CascadeState{StateStart},
	}
}

// deleteBare deletes a parent known to have no children, primary only.
func (s *CascadeService) deleteBare(ctx context.Context, op string, rel store.Relation, id uint) (*CascadeResult, error) {
	res := s.newResult(rel, id)
	res.enter(StateDeletingParent)
	err := s.primary.DeleteByID(ctx, rel, id)
	res.Attempts = append(res.Attempts, DeleteAttempt{Deleter: s.primary.Name(), Err: err})
	if err != nil {
		res.enter(StateFailed)
		log.Printf("[warn] %s op=%s id=%d failed: %v", op, res.OperationID, id, err)
		return res, storeError(op, err)
	}
	res.enter(StateDone)
	res.Refresh = true
	log.Printf("[info] %s op=%s id=%d done", op, res.OperationID, id)
	return res, nil
}

func (s *CascadeService) cascade(ctx context.Context, op string, rel store.Relation, foreignKey string, id uint) (*CascadeResult, error) {
	res := s.newResult(rel, id)
	log.Printf("[info] %s op=%s id=%d started", op, res.OperationID, id)

	res.enter(StateDeletingChildren)
	var children []model.Assignment
	if err := s.store.Delete(ctx, store.Assignments, &children, store.Eq(foreignKey, id)); err != nil {
		res.enter(StateFailed)
		log.Printf("[warn] %s op=%s id=%d children not deleted: %v", op, res.OperationID, id, err)
		return res, storeError(op, err)
	}
	res.ChildrenDeleted = len(children)
	log.Printf("[info] %s op=%s id=%d removed %d assignment(s)", op, res.OperationID, id, len(children))

	// Children are gone: the remaining steps run even if the caller leaves.
	ctx = context.WithoutCancel(ctx)

	res.enter(StateDeletingParent)
	primaryErr := s.primary.DeleteByID(ctx, rel, id)
	res.Attempts = append(res.Attempts, DeleteAttempt{Deleter: s.primary.Name(), Err: primaryErr})
	if primaryErr == nil {
		res.enter(StateDone)
		res.Refresh = true
		log.Printf("[info] %s op=%s id=%d done", op, res.OperationID, id)
		return res, nil
	}
	log.Printf("[warn] %s op=%s id=%d primary delete failed: %v", op, res.OperationID, id, primaryErr)

	res.enter(StateFallbackAttempt)
	var fallbackErr error
	if s.fallback == nil {
		fallbackErr = errors.New("no fallback deleter configured")
		res.Attempts = append(res.Attempts, DeleteAttempt{Deleter: "fallback", Err: fallbackErr})
	} else {
		fallbackErr = s.fallback.DeleteByID(ctx, rel, id)
		res.Attempts = append(res.Attempts, DeleteAttempt{Deleter: s.fallback.Name(), Err: fallbackErr})
	}
	if fallbackErr == nil {
		res.enter(StateDone)
		res.Refresh = true
		log.Printf("[info] %s op=%s id=%d done via fallback", op, res.OperationID, id)
		return res, nil
	}

	res.enter(StateFailed)
	log.Printf("[warn] %s op=%s id=%d inconsistent: %d assignment(s) removed, parent kept: %v", op, res.OperationID, id, len(children), fallbackErr)
	return res, &Error{
		Kind:     ErrCascadeInconsistent,
		Op:       op,
		Message:  store.MessageOf(primaryErr) + "; fallback: " + store.MessageOf(fallbackErr),
		Err:      primaryErr,
		Fallback: fallbackErr,
	}
}
