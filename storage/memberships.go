package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"taskboard-api/domain"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// GetTaskMembershipByID returns the membership row or a domain
// not-found error.
func (s *Storage) GetTaskMembershipByID(ctx context.Context, id domain.ID) (domain.TaskMembership, error) {
	var m domain.TaskMembership
	err := s.pool.QueryRow(ctx,
		`select id, task_id, user_id, created_at, updated_at from task_membership where id=$1`, id).
		Scan(&m.ID, &m.TaskID, &m.UserID, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TaskMembership{}, domain.ErrTaskMembershipNotFound
	}
	return m, err
}

// GetTaskMembershipByTaskAndUser looks a membership up by its natural
// key.
func (s *Storage) GetTaskMembershipByTaskAndUser(ctx context.Context, taskID, userID domain.ID) (domain.TaskMembership, error) {
	var m domain.TaskMembership
	err := s.pool.QueryRow(ctx,
		`select id, task_id, user_id, created_at, updated_at from task_membership where task_id=$1 and user_id=$2`,
		taskID, userID).
		Scan(&m.ID, &m.TaskID, &m.UserID, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TaskMembership{}, domain.ErrTaskMembershipNotFound
	}
	return m, err
}

// ListTaskMembershipsByTask returns every membership of a task ordered
// by id.
func (s *Storage) ListTaskMembershipsByTask(ctx context.Context, taskID domain.ID) ([]domain.TaskMembership, error) {
	rows, err := s.pool.Query(ctx,
		`select id, task_id, user_id, created_at, updated_at from task_membership where task_id=$1 order by id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.TaskMembership
	for rows.Next() {
		var m domain.TaskMembership
		if err := rows.Scan(&m.ID, &m.TaskID, &m.UserID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateTaskMembership inserts a membership row. The composite unique
// constraint is the only concurrency guard: a violation is reported as
// the domain conflict, every other storage error propagates unchanged.
func (s *Storage) CreateTaskMembership(ctx context.Context, taskID, userID domain.ID) (domain.TaskMembership, error) {
	var m domain.TaskMembership
	err := s.pool.QueryRow(ctx,
		`insert into task_membership(task_id, user_id, created_at) values($1, $2, now())
		 returning id, task_id, user_id, created_at, updated_at`,
		taskID, userID).
		Scan(&m.ID, &m.TaskID, &m.UserID, &m.CreatedAt, &m.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.TaskMembership{}, domain.ErrUserAlreadyTaskMember
	}
	return m, err
}

// DeleteTaskMembership removes the row and reports whether one was
// removed. Absence is not an error so duplicate deletes stay idempotent.
func (s *Storage) DeleteTaskMembership(ctx context.Context, id domain.ID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `delete from task_membership where id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
