package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"smartcity/internal/model"
	"smartcity/internal/repository"

	"github.com/google/uuid"
)

type DepartmentService struct {
	departments DepartmentStore
}

func NewDepartmentService(departments DepartmentStore) *DepartmentService {
	return &DepartmentService{departments: departments}
}

func (s *DepartmentService) List(ctx context.Context) ([]model.Department, error) {
	return s.departments.List(ctx)
}

func (s *DepartmentService) Create(ctx context.Context, admin *model.User, req *model.CreateDepartmentRequest) (*model.Department, error) {
	if admin.Role != model.RoleAdmin {
		return nil, forbidden("not authorized")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidInput("department name is required")
	}

	dept := &model.Department{
		ID:           uuid.New(),
		Name:         name,
		Description:  req.Description,
		Location:     req.Location,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		CreatedAt:    time.Now(),
	}
	if err := s.departments.Create(ctx, dept); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("department already exists")
		}
		return nil, err
	}
	return dept, nil
}
