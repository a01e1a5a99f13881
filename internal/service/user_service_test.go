package service

import (
	"context"
	"errors"
	"testing"

	"smartcity/internal/model"
	"smartcity/internal/testutil"

	"github.com/google/uuid"
)

func TestUserAdministration(t *testing.T) {
	stores := testutil.NewStores()
	svc := NewUserService(stores.Users, stores.Departments)
	ctx := context.Background()
	admin := testutil.CreateUser(t, stores.Users, "admin", model.RoleAdmin, nil)
	citizen := testutil.CreateUser(t, stores.Users, "citizen", model.RoleCitizen, nil)
	dept := testutil.CreateDepartment(t, stores.Departments, "Water")

	if _, err := svc.List(ctx, citizen); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	users, err := svc.List(ctx, admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].ID != citizen.ID {
		t.Errorf("Expected everyone but the caller, got %+v", users)
	}

	official, err := svc.Create(ctx, admin, &model.CreateUserRequest{
		Username: "dana", Email: "dana@city.test", Password: "secret1",
		Role: "Department Official", DepartmentID: &dept.ID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if official.Role != model.RoleDepartment || official.DepartmentID == nil || *official.DepartmentID != dept.ID {
		t.Errorf("Expected department official in Water, got %+v", official)
	}

	createCases := []struct {
		name string
		req  model.CreateUserRequest
		want error
	}{
		{"department without id", model.CreateUserRequest{Username: "e1", Email: "e1@city.test", Password: "secret1", Role: "department"}, ErrInvalidInput},
		{"unknown department", model.CreateUserRequest{Username: "e2", Email: "e2@city.test", Password: "secret1", Role: "department", DepartmentID: ptr(uuid.New())}, ErrInvalidReference},
		{"unknown role", model.CreateUserRequest{Username: "e3", Email: "e3@city.test", Password: "secret1", Role: "mayor"}, ErrInvalidInput},
		{"duplicate email", model.CreateUserRequest{Username: "e4", Email: "dana@city.test", Password: "secret1", Role: "citizen"}, ErrConflict},
	}
	for _, tc := range createCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, admin, &tc.req); !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}

	plain, err := svc.Create(ctx, admin, &model.CreateUserRequest{
		Username: "frank", Email: "frank@city.test", Password: "secret1", Role: "citizen", DepartmentID: &dept.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if plain.DepartmentID != nil {
		t.Error("Expected department dropped for citizens")
	}

	demoted, err := svc.UpdateRole(ctx, admin, official.ID, &model.UpdateRoleRequest{Role: "citizen"})
	if err != nil {
		t.Fatal(err)
	}
	if demoted.Role != model.RoleCitizen || demoted.DepartmentID != nil {
		t.Errorf("Expected department cleared on demotion, got %+v", demoted)
	}
	stored, _ := stores.Users.FindByID(ctx, official.ID)
	if stored.DepartmentID != nil {
		t.Error("Expected stored department cleared")
	}
	if _, err := svc.UpdateRole(ctx, admin, uuid.New(), &model.UpdateRoleRequest{Role: "citizen"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestToggleAndDelete(t *testing.T) {
	stores := testutil.NewStores()
	svc := NewUserService(stores.Users, stores.Departments)
	ctx := context.Background()
	admin := testutil.CreateUser(t, stores.Users, "admin", model.RoleAdmin, nil)
	citizen := testutil.CreateUser(t, stores.Users, "citizen", model.RoleCitizen, nil)

	resp, err := svc.ToggleActive(ctx, admin, citizen.ID)
	if err != nil {
		t.Fatal(err)
	}
	if resp.IsActive || resp.Message != "User deactivated successfully" {
		t.Errorf("Unexpected toggle response %+v", resp)
	}
	resp, err = svc.ToggleActive(ctx, admin, citizen.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.IsActive || resp.Message != "User reactivated successfully" {
		t.Errorf("Unexpected toggle response %+v", resp)
	}

	if _, err := svc.ToggleActive(ctx, admin, admin.ID); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected self-toggle rejected, got %v", err)
	}
	if err := svc.Delete(ctx, admin, admin.ID); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected self-delete rejected, got %v", err)
	}
	if err := svc.Delete(ctx, citizen, admin.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, admin, citizen.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, admin, citizen.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
