package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"taskboard-api/domain"
)

// GetTaskPath resolves a task together with its ancestors up to the
// project in one round trip. A broken chain anywhere reads as the task
// not existing.
func (s *Storage) GetTaskPath(ctx context.Context, taskID domain.ID) (domain.TaskPath, error) {
	var p domain.TaskPath
	err := s.pool.QueryRow(ctx, `
		select t.id, t.task_list_id, t.name, t.position, t.is_completed, t.assignee_user_id,
		       tl.id, tl.card_id, tl.name, tl.position,
		       c.id, c.list_id, c.name, c.position,
		       l.id, l.board_id, l.name, l.position,
		       b.id, b.project_id, b.name,
		       p.id, p.name
		from task t
		join task_list tl on tl.id = t.task_list_id
		join card c on c.id = tl.card_id
		join list l on l.id = c.list_id
		join board b on b.id = l.board_id
		join project p on p.id = b.project_id
		where t.id = $1`, taskID).
		Scan(&p.Task.ID, &p.Task.TaskListID, &p.Task.Name, &p.Task.Position, &p.Task.IsCompleted, &p.Task.AssigneeUserID,
			&p.TaskList.ID, &p.TaskList.CardID, &p.TaskList.Name, &p.TaskList.Position,
			&p.Card.ID, &p.Card.ListID, &p.Card.Name, &p.Card.Position,
			&p.List.ID, &p.List.BoardID, &p.List.Name, &p.List.Position,
			&p.Board.ID, &p.Board.ProjectID, &p.Board.Name,
			&p.Project.ID, &p.Project.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TaskPath{}, domain.ErrTaskNotFound
	}
	return p, err
}

// GetBoardMembership returns the caller's membership on a board, or a
// domain not-found error when there is none.
func (s *Storage) GetBoardMembership(ctx context.Context, boardID, userID domain.ID) (domain.BoardMembership, error) {
	var m domain.BoardMembership
	err := s.pool.QueryRow(ctx,
		`select id, board_id, user_id, role from board_membership where board_id=$1 and user_id=$2`,
		boardID, userID).
		Scan(&m.ID, &m.BoardID, &m.UserID, &m.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BoardMembership{}, domain.NotFound("board membership not found")
	}
	return m, err
}

// IsBoardMember reports whether the user holds any membership on the
// board, regardless of role.
func (s *Storage) IsBoardMember(ctx context.Context, boardID, userID domain.ID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`select exists(select 1 from board_membership where board_id=$1 and user_id=$2)`,
		boardID, userID).Scan(&exists)
	return exists, err
}

func (s *Storage) GetUserByID(ctx context.Context, id domain.ID) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx,
		`select id, name, email, subscribe_to_own_cards from user_account where id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.SubscribeToOwnCards)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, err
}

// CreateCardSubscription subscribes a user to a card. An existing
// subscription is reported as the domain conflict so callers can decide
// whether it matters.
func (s *Storage) CreateCardSubscription(ctx context.Context, cardID, userID domain.ID) error {
	_, err := s.pool.Exec(ctx,
		`insert into card_subscription(card_id, user_id) values($1, $2)`, cardID, userID)
	if isUniqueViolation(err) {
		return domain.ErrUserAlreadyCardSubscriber
	}
	return err
}
