package repository

import (
	"context"
	"database/sql"

	"smartcity/internal/model"

	"github.com/google/uuid"
)

type DepartmentRepository struct {
	db *sql.DB
}

func NewDepartmentRepository(db *sql.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) Create(ctx context.Context, dept *model.Department) error {
	query := `
		INSERT INTO departments (id, name, description, location, contact_email, contact_phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		dept.ID,
		dept.Name,
		dept.Description,
		dept.Location,
		dept.ContactEmail,
		dept.ContactPhone,
		dept.CreatedAt,
	)
	return translate(err)
}

func (r *DepartmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	query := `
		SELECT id, name, description, location, contact_email, contact_phone, created_at
		FROM departments WHERE id = $1
	`
	dept := &model.Department{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&dept.ID,
		&dept.Name,
		&dept.Description,
		&dept.Location,
		&dept.ContactEmail,
		&dept.ContactPhone,
		&dept.CreatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	return dept, nil
}

func (r *DepartmentRepository) List(ctx context.Context) ([]model.Department, error) {
	query := `
		SELECT id, name, description, location, contact_email, contact_phone, created_at
		FROM departments ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	depts := []model.Department{}
	for rows.Next() {
		var d model.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Location,
			&d.ContactEmail, &d.ContactPhone, &d.CreatedAt); err != nil {
			return nil, err
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}
