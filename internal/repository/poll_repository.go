package repository

import (
	"context"
	"database/sql"
	"time"

	"smartcity/internal/model"

	"github.com/google/uuid"
)

type PollRepository struct {
	db *sql.DB
}

func NewPollRepository(db *sql.DB) *PollRepository {
	return &PollRepository{db: db}
}

const pollColumns = `id, question, image, created_by, deadline, total_votes, created_at`

func scanPoll(row rowScanner) (*model.Poll, error) {
	poll := &model.Poll{}
	var image sql.NullString
	err := row.Scan(
		&poll.ID,
		&poll.Question,
		&image,
		&poll.CreatedBy,
		&poll.Deadline,
		&poll.TotalVotes,
		&poll.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if image.Valid {
		poll.Image = &image.String
	}
	return poll, nil
}

// Create inserts the poll and its options in one transaction.
func (r *PollRepository) Create(ctx context.Context, poll *model.Poll) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO polls (id, question, image, created_by, deadline, total_votes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, poll.ID, poll.Question, poll.Image, poll.CreatedBy, poll.Deadline, poll.TotalVotes, poll.CreatedAt)
	if err != nil {
		return translate(err)
	}

	for i, opt := range poll.Options {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO poll_options (id, poll_id, position, text, votes)
			VALUES ($1, $2, $3, $4, $5)
		`, opt.ID, poll.ID, i, opt.Text, opt.Votes)
		if err != nil {
			return translate(err)
		}
	}

	return tx.Commit()
}

func (r *PollRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Poll, error) {
	poll, err := scanPoll(r.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	if err := loadOptions(ctx, r.db, poll); err != nil {
		return nil, err
	}
	return poll, nil
}

// List returns polls newest first. activeAt, when set, keeps only polls whose
// deadline is after it.
func (r *PollRepository) List(ctx context.Context, activeAt *time.Time) ([]model.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls`
	var args []any
	if activeAt != nil {
		query += ` WHERE deadline > $1`
		args = append(args, *activeAt)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var polls []*model.Poll
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		polls = append(polls, poll)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Poll, 0, len(polls))
	for _, poll := range polls {
		if err := loadOptions(ctx, r.db, poll); err != nil {
			return nil, err
		}
		out = append(out, *poll)
	}
	return out, nil
}

// Update writes the question, deadline and image.
func (r *PollRepository) Update(ctx context.Context, poll *model.Poll) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE polls SET question = $1, deadline = $2, image = $3 WHERE id = $4`,
		poll.Question, poll.Deadline, poll.Image, poll.ID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *PollRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *PollRepository) CountActive(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM polls WHERE deadline > $1`, now).Scan(&count)
	return count, err
}

// Mutate locks the poll row, applies fn to the loaded poll and writes back
// the resulting counts and voter rows in the same transaction. Nothing is
// written when fn fails.
func (r *PollRepository) Mutate(ctx context.Context, id uuid.UUID, fn func(*model.Poll) error) (*model.Poll, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	poll, err := scanPoll(tx.QueryRowContext(ctx,
		`SELECT `+pollColumns+` FROM polls WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, translate(err)
	}
	if err := loadOptions(ctx, tx, poll); err != nil {
		return nil, err
	}

	before := voterMap(poll)
	if err := fn(poll); err != nil {
		return nil, err
	}
	after := voterMap(poll)

	for user, option := range before {
		if after[user] == option {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM poll_votes WHERE poll_id = $1 AND user_id = $2`, id, user); err != nil {
			return nil, err
		}
	}
	for user, option := range after {
		if before[user] == option {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO poll_votes (poll_id, user_id, option_id, created_at)
			VALUES ($1, $2, $3, NOW())
		`, id, user, option); err != nil {
			return nil, translate(err)
		}
	}

	for _, opt := range poll.Options {
		if _, err := tx.ExecContext(ctx,
			`UPDATE poll_options SET votes = $1 WHERE id = $2`, opt.Votes, opt.ID); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE polls SET total_votes = $1 WHERE id = $2`, poll.TotalVotes, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return poll, nil
}

// loadOptions fills poll.Options in creation order along with each option's voters.
func loadOptions(ctx context.Context, q querier, poll *model.Poll) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, text, votes FROM poll_options
		WHERE poll_id = $1 ORDER BY position
	`, poll.ID)
	if err != nil {
		return err
	}
	index := make(map[uuid.UUID]int)
	poll.Options = []model.PollOption{}
	for rows.Next() {
		var opt model.PollOption
		if err := rows.Scan(&opt.ID, &opt.Text, &opt.Votes); err != nil {
			rows.Close()
			return err
		}
		opt.Voters = []uuid.UUID{}
		index[opt.ID] = len(poll.Options)
		poll.Options = append(poll.Options, opt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT user_id, option_id FROM poll_votes
		WHERE poll_id = $1 ORDER BY created_at
	`, poll.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var user, option uuid.UUID
		if err := rows.Scan(&user, &option); err != nil {
			return err
		}
		if i, ok := index[option]; ok {
			poll.Options[i].Voters = append(poll.Options[i].Voters, user)
		}
	}
	return rows.Err()
}

func voterMap(poll *model.Poll) map[uuid.UUID]uuid.UUID {
	m := make(map[uuid.UUID]uuid.UUID)
	for _, opt := range poll.Options {
		for _, v := range opt.Voters {
			m[v] = opt.ID
		}
	}
	return m
}
