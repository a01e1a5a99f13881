package repository

import (
	"context"
	"database/sql"
	"strings"

	"smartcity/internal/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, role, department_id, is_active,
	first_name, last_name, avatar, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var dept uuid.NullUUID
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&dept,
		&user.IsActive,
		&user.Profile.FirstName,
		&user.Profile.LastName,
		&user.Profile.Avatar,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if dept.Valid {
		user.DepartmentID = &dept.UUID
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, department_id, is_active,
			first_name, last_name, avatar, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	user.Email = strings.ToLower(user.Email)
	user.Username = strings.ToLower(user.Username)
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.DepartmentID,
		user.IsActive,
		user.Profile.FirstName,
		user.Profile.LastName,
		user.Profile.Avatar,
		user.CreatedAt,
	)
	return translate(err)
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	return user, translate(err)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, strings.ToLower(email)))
	return user, translate(err)
}

func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR username = $2)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(email), strings.ToLower(username)).Scan(&exists)
	return exists, err
}

// List returns every user except excludeID, newest first.
func (r *UserRepository) List(ctx context.Context, excludeID uuid.UUID) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id <> $1 ORDER BY created_at DESC`
	return r.queryUsers(ctx, query, excludeID)
}

// ListActiveIDsByRoles returns the ids of active users holding any of roles.
func (r *UserRepository) ListActiveIDsByRoles(ctx context.Context, roles ...model.Role) ([]uuid.UUID, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	query := `SELECT id FROM users WHERE role = ANY($1) AND is_active = TRUE`
	return r.queryIDs(ctx, query, pq.Array(names))
}

func (r *UserRepository) ListIDsByDepartment(ctx context.Context, departmentID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT id FROM users WHERE department_id = $1`
	return r.queryIDs(ctx, query, departmentID)
}

func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role, departmentID *uuid.UUID) error {
	query := `UPDATE users SET role = $1, department_id = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, role, departmentID, id)
	if err != nil {
		return translate(err)
	}
	return expectAffected(res)
}

// ToggleActive flips is_active in one statement and returns the new value.
func (r *UserRepository) ToggleActive(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE users SET is_active = NOT is_active WHERE id = $1 RETURNING is_active`
	var active bool
	err := r.db.QueryRowContext(ctx, query, id).Scan(&active)
	return active, translate(err)
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepository) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	return queryIDs(ctx, r.db, query, args...)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
