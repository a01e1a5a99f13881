package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"smartcity/internal/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type IssueRepository struct {
	db *sql.DB
}

func NewIssueRepository(db *sql.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

const issueColumns = `id, title, description, category, images, location_lat, location_lng, status,
	reported_by, assigned_to, assigned_by, assigned_at, resolved_at, created_at, updated_at`

func scanIssue(row rowScanner) (*model.Issue, error) {
	issue := &model.Issue{Comments: []model.Comment{}}
	var lat, lng sql.NullFloat64
	var assignedTo, assignedBy uuid.NullUUID
	var assignedAt, resolvedAt sql.NullTime
	err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&issue.Category,
		pq.Array(&issue.Images),
		&lat,
		&lng,
		&issue.Status,
		&issue.ReportedBy,
		&assignedTo,
		&assignedBy,
		&assignedAt,
		&resolvedAt,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if issue.Images == nil {
		issue.Images = []string{}
	}
	if lat.Valid && lng.Valid {
		issue.Location = &model.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	if assignedTo.Valid {
		issue.AssignedTo = &assignedTo.UUID
	}
	if assignedBy.Valid {
		issue.AssignedBy = &assignedBy.UUID
	}
	if assignedAt.Valid {
		issue.AssignedAt = &assignedAt.Time
	}
	if resolvedAt.Valid {
		issue.ResolvedAt = &resolvedAt.Time
	}
	return issue, nil
}

func locationArgs(loc *model.Location) (lat, lng sql.NullFloat64) {
	if loc == nil {
		return
	}
	return sql.NullFloat64{Float64: loc.Lat, Valid: true}, sql.NullFloat64{Float64: loc.Lng, Valid: true}
}

func (r *IssueRepository) Create(ctx context.Context, issue *model.Issue) error {
	query := `
		INSERT INTO issues (id, title, description, category, images, location_lat, location_lng,
			status, reported_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	lat, lng := locationArgs(issue.Location)
	_, err := r.db.ExecContext(ctx, query,
		issue.ID,
		issue.Title,
		issue.Description,
		issue.Category,
		pq.Array(issue.Images),
		lat,
		lng,
		issue.Status,
		issue.ReportedBy,
		issue.CreatedAt,
		issue.UpdatedAt,
	)
	return translate(err)
}

// FindByID loads the issue together with its comments.
func (r *IssueRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = $1`
	issue, err := scanIssue(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	if err := loadComments(ctx, r.db, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

func loadComments(ctx context.Context, q querier, issue *model.Issue) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, issue_id, text, posted_by, created_at
		FROM issue_comments WHERE issue_id = $1
		ORDER BY created_at ASC
	`, issue.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Text, &c.PostedBy, &c.CreatedAt); err != nil {
			return err
		}
		issue.Comments = append(issue.Comments, c)
	}
	return rows.Err()
}

// List returns issues matching filter, newest first. Comments are not loaded.
func (r *IssueRepository) List(ctx context.Context, filter model.IssueFilter) ([]model.Issue, error) {
	var conds []string
	var args []any
	if filter.ReportedBy != nil {
		args = append(args, *filter.ReportedBy)
		conds = append(conds, fmt.Sprintf("reported_by = $%d", len(args)))
	}
	if filter.AssignedToAny != nil {
		args = append(args, pq.Array(uuidStrings(filter.AssignedToAny)))
		conds = append(conds, fmt.Sprintf("assigned_to = ANY($%d::uuid[])", len(args)))
	}

	query := `SELECT ` + issueColumns + ` FROM issues`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := []model.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, *issue)
	}
	return issues, rows.Err()
}

// Mutate locks the issue row, applies fn and writes every mutable column
// back before committing. Nothing is written when fn fails.
func (r *IssueRepository) Mutate(ctx context.Context, id uuid.UUID, fn func(*model.Issue) error) (*model.Issue, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	issue, err := scanIssue(tx.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, translate(err)
	}
	if err := loadComments(ctx, tx, issue); err != nil {
		return nil, err
	}

	if err := fn(issue); err != nil {
		return nil, err
	}

	query := `
		UPDATE issues
		SET title = $1, description = $2, category = $3, images = $4, location_lat = $5,
			location_lng = $6, status = $7, assigned_to = $8, assigned_by = $9, assigned_at = $10,
			resolved_at = $11, updated_at = $12
		WHERE id = $13
	`
	lat, lng := locationArgs(issue.Location)
	_, err = tx.ExecContext(ctx, query,
		issue.Title,
		issue.Description,
		issue.Category,
		pq.Array(issue.Images),
		lat,
		lng,
		issue.Status,
		issue.AssignedTo,
		issue.AssignedBy,
		issue.AssignedAt,
		issue.ResolvedAt,
		issue.UpdatedAt,
		id,
	)
	if err != nil {
		return nil, translate(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return issue, nil
}

func (r *IssueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *IssueRepository) AddComment(ctx context.Context, comment *model.Comment) error {
	query := `
		INSERT INTO issue_comments (id, issue_id, text, posted_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		comment.ID,
		comment.IssueID,
		comment.Text,
		comment.PostedBy,
		comment.CreatedAt,
	)
	return translate(err)
}

// Missing returns the ids in ids that do not name an existing issue.
func (r *IssueRepository) Missing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT u.id FROM unnest($1::uuid[]) AS u(id)
		WHERE NOT EXISTS (SELECT 1 FROM issues i WHERE i.id = u.id)
	`
	return queryIDs(ctx, r.db, query, pq.Array(uuidStrings(ids)))
}

// CountUnresolved counts issues whose status is not Resolved.
func (r *IssueRepository) CountUnresolved(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE status <> $1`, model.StatusResolved).Scan(&count)
	return count, err
}

func (r *IssueRepository) CountByReporter(ctx context.Context, userID uuid.UUID, status *model.IssueStatus) (int, error) {
	query := `SELECT COUNT(*) FROM issues WHERE reported_by = $1`
	args := []any{userID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
