package repository

import (
	"context"
	"database/sql"

	"smartcity/internal/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, report *model.Report) error {
	query := `
		INSERT INTO reports (id, title, description, files, created_by, department_id, related_issues, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::uuid[], $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.Title,
		report.Description,
		pq.Array(report.Files),
		report.CreatedBy,
		report.DepartmentID,
		pq.Array(uuidStrings(report.RelatedIssues)),
		report.CreatedAt,
	)
	return translate(err)
}

// List returns reports newest first, limited to departmentID when set.
func (r *ReportRepository) List(ctx context.Context, departmentID *uuid.UUID) ([]model.Report, error) {
	query := `
		SELECT id, title, description, files, created_by, department_id, related_issues::text[], created_at
		FROM reports
	`
	var args []any
	if departmentID != nil {
		query += ` WHERE department_id = $1`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		var rep model.Report
		var related []string
		err := rows.Scan(
			&rep.ID,
			&rep.Title,
			&rep.Description,
			pq.Array(&rep.Files),
			&rep.CreatedBy,
			&rep.DepartmentID,
			pq.Array(&related),
			&rep.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if rep.Files == nil {
			rep.Files = []string{}
		}
		rep.RelatedIssues = make([]uuid.UUID, 0, len(related))
		for _, s := range related {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, err
			}
			rep.RelatedIssues = append(rep.RelatedIssues, id)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

func (r *ReportRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&count)
	return count, err
}
