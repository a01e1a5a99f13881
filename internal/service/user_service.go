package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"smartcity/internal/model"
	"smartcity/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserService holds the admin-only user management operations.
type UserService struct {
	users       UserStore
	departments DepartmentStore
}

func NewUserService(users UserStore, departments DepartmentStore) *UserService {
	return &UserService{users: users, departments: departments}
}

func (s *UserService) List(ctx context.Context, admin *model.User) ([]model.User, error) {
	if admin.Role != model.RoleAdmin {
		return nil, forbidden("not authorized")
	}
	return s.users.List(ctx, admin.ID)
}

func (s *UserService) Create(ctx context.Context, admin *model.User, req *model.CreateUserRequest) (*model.User, error) {
	if admin.Role != model.RoleAdmin {
		return nil, forbidden("not authorized")
	}

	role, err := model.ParseRole(req.Role)
	if err != nil {
		return nil, invalidInput(err.Error())
	}
	deptID, err := s.departmentFor(ctx, role, req.DepartmentID)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, conflict("user already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.New(),
		Username:     strings.ToLower(strings.TrimSpace(req.Username)),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Role:         role,
		DepartmentID: deptID,
		IsActive:     true,
		Profile:      model.Profile{FirstName: req.FirstName, LastName: req.LastName},
		CreatedAt:    time.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("user already exists")
		}
		return nil, err
	}
	return user, nil
}

// UpdateRole changes the role and keeps the department link consistent with it.
func (s *UserService) UpdateRole(ctx context.Context, admin *model.User, id uuid.UUID, req *model.UpdateRoleRequest) (*model.User, error) {
	if admin.Role != model.RoleAdmin {
		return nil, forbidden("not authorized")
	}

	role, err := model.ParseRole(req.Role)
	if err != nil {
		return nil, invalidInput(err.Error())
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	deptID, err := s.departmentFor(ctx, role, req.DepartmentID)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateRole(ctx, id, role, deptID); err != nil {
		return nil, userErr(err)
	}
	user.Role = role
	user.DepartmentID = deptID
	return user, nil
}

func (s *UserService) ToggleActive(ctx context.Context, admin *model.User, id uuid.UUID) (*model.ToggleActiveResponse, error) {
	if admin.Role != model.RoleAdmin {
		return nil, forbidden("not authorized")
	}
	if id == admin.ID {
		return nil, invalidInput("you cannot deactivate your own account")
	}

	active, err := s.users.ToggleActive(ctx, id)
	if err != nil {
		return nil, userErr(err)
	}

	msg := "User deactivated successfully"
	if active {
		msg = "User reactivated successfully"
	}
	return &model.ToggleActiveResponse{Message: msg, IsActive: active}, nil
}

func (s *UserService) Delete(ctx context.Context, admin *model.User, id uuid.UUID) error {
	if admin.Role != model.RoleAdmin {
		return forbidden("not authorized")
	}
	if id == admin.ID {
		return invalidInput("you cannot delete your own account")
	}
	return userErr(s.users.Delete(ctx, id))
}

// departmentFor enforces that a department is set exactly when the role is
// department.
func (s *UserService) departmentFor(ctx context.Context, role model.Role, deptID *uuid.UUID) (*uuid.UUID, error) {
	if role != model.RoleDepartment {
		return nil, nil
	}
	if deptID == nil {
		return nil, invalidInput("department is required for department officials")
	}
	if _, err := s.departments.FindByID(ctx, *deptID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidReference("department not found")
		}
		return nil, err
	}
	id := *deptID
	return &id, nil
}

func (s *UserService) load(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, userErr(err)
	}
	return user, nil
}

func userErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("user")
	}
	return err
}
