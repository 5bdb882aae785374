package service

import (
	"context"
	"log"
	"strings"

	"tasky/internal/model"
	"tasky/internal/store"
)

const noRole = "No role assigned"

// UserService registers, edits and lists users and roles.
type UserService struct {
	store store.Client
}

func NewUserService(client store.Client) *UserService {
	return &UserService{store: client}
}

// Register creates a user after checking that nobody already uses the same
// display name. The check and the insert are separate calls, so two
// concurrent registrations of one name can both pass.
func (s *UserService) Register(ctx context.Context, displayName string, roleID *uint) (*model.User, error) {
	const op = "register user"
	if strings.TrimSpace(displayName) == "" {
		return nil, validationError(op, "display name is required")
	}

	var existing []model.User
	if err := s.store.Select(ctx, store.Users, &existing, store.Query{
		Columns: []string{"id"},
		Filters: []store.Filter{store.Eq("display_name", displayName)},
	}); err != nil {
		return nil, storeError(op, err)
	}
	if len(existing) > 0 {
		return nil, &Error{Kind: ErrDuplicateName, Op: op, Message: displayName}
	}

	rows := []model.User{{DisplayName: displayName, RoleID: roleID}}
	if err := s.store.Insert(ctx, store.Users, &rows); err != nil {
		return nil, storeError(op, err)
	}
	log.Printf("[info] user registered id=%d", rows[0].ID)
	return &rows[0], nil
}

// UpdateUser edits a user's display name and role. A nil roleID clears the
// role.
func (s *UserService) UpdateUser(ctx context.Context, userID uint, displayName string, roleID *uint) error {
	const op = "update user"
	if strings.TrimSpace(displayName) == "" {
		return validationError(op, "display name is required")
	}
	patch := store.Patch{"display_name": displayName, "role_id": roleID}
	if err := s.store.Update(ctx, store.Users, patch, store.Eq("id", userID)); err != nil {
		return storeError(op, err)
	}
	return nil
}

func (s *UserService) GetUser(ctx context.Context, userID uint) (*model.User, error) {
	const op = "get user"
	var users []model.User
	if err := s.store.Select(ctx, store.Users, &users, store.Query{Filters: []store.Filter{store.Eq("id", userID)}}); err != nil {
		return nil, storeError(op, err)
	}
	if len(users) == 0 {
		return nil, storeError(op, &store.Error{Op: "select", Relation: store.Users, Message: "user not found", Err: store.ErrNotFound})
	}
	return &users[0], nil
}

// ListUsers returns users ordered by name. A non-empty search keeps the
// users whose name contains it, ignoring case.
func (s *UserService) ListUsers(ctx context.Context, search string) ([]model.User, error) {
	var users []model.User
	if err := s.store.Select(ctx, store.Users, &users, store.Query{Order: []store.Order{store.Asc("display_name")}}); err != nil {
		return nil, storeError("list users", err)
	}
	search = strings.ToLower(strings.TrimSpace(search))
	filtered := make([]model.User, 0, len(users))
	for _, u := range users {
		if search == "" || strings.Contains(strings.ToLower(u.DisplayName), search) {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

func (s *UserService) ListRoles(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := s.store.Select(ctx, store.Roles, &roles, store.Query{Order: []store.Order{store.Asc("name")}}); err != nil {
		return nil, storeError("list roles", err)
	}
	if roles == nil {
		roles = []model.Role{}
	}
	return roles, nil
}

// RoleLabel names the role with id roleID among roles.
func RoleLabel(roles []model.Role, roleID *uint) string {
	if roleID == nil {
		return noRole
	}
	for _, r := range roles {
		if r.ID == *roleID {
			return r.Name
		}
	}
	return noRole
}
