package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"tasky/internal/store"
)

func TestUserMessageDistinguishesKinds(t *testing.T) {
	backend := &store.Error{Op: "insert", Relation: store.Assignments, Message: "duplicate key"}

	messages := map[string]string{
		"validation": UserMessage(validationError("create task", "title is required")),
		"store":      UserMessage(storeError("create task", backend)),
		"orphan":     UserMessage(&Error{Kind: ErrStore, Op: "create task", Message: "duplicate key", TaskID: 9, Err: backend}),
		"partial":    UserMessage(&Error{Kind: ErrPartialReplacement, Op: "replace", Message: "duplicate key", TaskID: 9, Err: backend}),
		"cascade":    UserMessage(&Error{Kind: ErrCascadeInconsistent, Op: "delete task", Message: "a; fallback: b", Err: backend}),
		"duplicate":  UserMessage(&Error{Kind: ErrDuplicateName, Op: "register", Message: "Ann"}),
		"confirm":    UserMessage(&Error{Kind: ErrNotConfirmed, Op: "delete user", Message: "user 1 has 2 assignment(s)"}),
	}

	seen := map[string]string{}
	for kind, msg := range messages {
		assert.NotEmpty(t, msg, kind)
		if other, ok := seen[msg]; ok {
			t.Errorf("%s and %s render the same message %q", kind, other, msg)
		}
		seen[msg] = kind
	}

	assert.Equal(t, "The backend rejected the request: duplicate key", messages["store"])
	assert.Contains(t, messages["orphan"], "Task #9")
	assert.Contains(t, messages["partial"], "Manual verification is required.")
	assert.Contains(t, messages["cascade"], "a; fallback: b")
	assert.NotContains(t, messages["store"], "Manual verification")
}

func TestErrorMatchesKindAndCause(t *testing.T) {
	backend := &store.Error{Op: "select", Relation: store.Tasks, Message: "gone", Err: store.ErrNotFound}
	err := storeError("get task", backend)

	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, errors.Is(err, ErrValidation))

	var storeErr *store.Error
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get task: store call failed: gone", err.Error())
}

func TestUserMessageForeignError(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Unexpected error: boom", UserMessage(errors.New("boom")))
}
