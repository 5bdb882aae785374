package service

import (
	"context"
	"fmt"

	"tasky/internal/model"
	"tasky/internal/store"
)

// Deleter removes one parent row by id. The coordinator tries a primary
// and a fallback implementation in that order.
type Deleter interface {
	Name() string
	DeleteByID(ctx context.Context, rel store.Relation, id uint) error
}

// StoreDeleter deletes through the regular store client.
type StoreDeleter struct {
	client store.Client
}

func NewStoreDeleter(client store.Client) *StoreDeleter {
	return &StoreDeleter{client: client}
}

func (d *StoreDeleter) Name() string { return "primary" }

func (d *StoreDeleter) DeleteByID(ctx context.Context, rel store.Relation, id uint) error {
	var err error
	switch rel {
	case store.Tasks:
		var rows []model.Task
		err = d.client.Delete(ctx, rel, &rows, store.Eq("id", id))
	case store.Users:
		var rows []model.User
		err = d.client.Delete(ctx, rel, &rows, store.Eq("id", id))
	default:
		err = &store.Error{Op: "delete", Relation: rel, Message: fmt.Sprintf("no parent deletion for %s", rel)}
	}
	return err
}
