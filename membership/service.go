// Package membership implements the two task-membership mutations:
// adding a user to a task and removing one. Both authorize against the
// task's board, perform the write, then fan out to board subscribers,
// webhooks and the card's audit timeline.
package membership

import (
	"context"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Repository is the persistence surface the service needs.
type Repository interface {
	GetTaskPath(ctx context.Context, taskID domain.ID) (domain.TaskPath, error)
	GetBoardMembership(ctx context.Context, boardID, userID domain.ID) (domain.BoardMembership, error)
	IsBoardMember(ctx context.Context, boardID, userID domain.ID) (bool, error)
	GetUserByID(ctx context.Context, id domain.ID) (domain.User, error)
	GetTaskMembershipByID(ctx context.Context, id domain.ID) (domain.TaskMembership, error)
	CreateTaskMembership(ctx context.Context, taskID, userID domain.ID) (domain.TaskMembership, error)
	DeleteTaskMembership(ctx context.Context, id domain.ID) (bool, error)
	CreateCardSubscription(ctx context.Context, cardID, userID domain.ID) error
	CreateAction(ctx context.Context, cardID, userID domain.ID, typ domain.ActionType, data domain.ActionData) (domain.Action, error)
}

// Broadcaster publishes an event to every subscriber of the board
// channel. Publication is fire-and-forget relative to the HTTP response.
type Broadcaster interface {
	Publish(ctx context.Context, ev domain.BoardEvent)
}

// WebhookSender hands a payload to the delivery workers without
// blocking the request.
type WebhookSender interface {
	Send(event string, data domain.WebhookData, actor domain.UserRef)
}

// Service owns the membership mutations.
type Service struct {
	repo   Repository
	broker Broadcaster
	hooks  WebhookSender
	logger *log.Logger
}

func NewService(repo Repository, broker Broadcaster, hooks WebhookSender, logger *log.Logger) *Service {
	return &Service{repo: repo, broker: broker, hooks: hooks, logger: logger}
}

// authorize resolves the actor's board membership and requires the
// editor role. A missing membership is reported with the supplied
// hidden error so existence never leaks to outsiders.
func (s *Service) authorize(ctx context.Context, boardID, actorID domain.ID, hidden *domain.Error) error {
	bm, err := s.repo.GetBoardMembership(ctx, boardID, actorID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return hidden
		}
		return err
	}
	if bm.Role != domain.RoleEditor {
		return domain.ErrNotEnoughRights
	}
	return nil
}

// Create adds a user to a task.
//
// Preconditions are checked in contract order: task exists, actor is a
// board member (hidden as task-not-found otherwise), actor is an
// editor, target user exists, target user is a board member (hidden as
// user-not-found otherwise). The (task, user) unique constraint
// resolves concurrent creates; the loser sees the conflict error.
func (s *Service) Create(ctx context.Context, actorID, taskID, userID domain.ID) (domain.TaskMembership, error) {
	path, err := s.repo.GetTaskPath(ctx, taskID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return domain.TaskMembership{}, domain.ErrTaskNotFound
		}
		return domain.TaskMembership{}, err
	}
	if err := s.authorize(ctx, path.Board.ID, actorID, domain.ErrTaskNotFound); err != nil {
		return domain.TaskMembership{}, err
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return domain.TaskMembership{}, domain.ErrUserNotFound
		}
		return domain.TaskMembership{}, err
	}
	isMember, err := s.repo.IsBoardMember(ctx, path.Board.ID, user.ID)
	if err != nil {
		return domain.TaskMembership{}, err
	}
	if !isMember {
		return domain.TaskMembership{}, domain.ErrUserNotFound
	}

	m, err := s.repo.CreateTaskMembership(ctx, path.Task.ID, user.ID)
	if err != nil {
		return domain.TaskMembership{}, err
	}

	s.fanOut(ctx, domain.EventTaskMembershipCreate, domain.WebhookTaskMembershipCreate,
		domain.ActionAddMemberToTask, m, path, user, actorID)

	if user.SubscribeToOwnCards {
		// Best effort: a failed auto-subscribe must not fail the add.
		err := s.repo.CreateCardSubscription(ctx, path.Card.ID, user.ID)
		if err != nil && !domain.IsCode(err, domain.CodeConflict) {
			s.logger.WithError(err).WithFields(log.Fields{
				"card": path.Card.ID,
				"user": user.ID,
			}).Warn("card auto-subscribe failed")
		}
	}

	return m, nil
}

// Delete removes a membership by id.
//
// Authorization mirrors Create against the membership's board. The
// delete itself is idempotent: when the row vanished between the read
// and the delete, the previously read state is returned and no events
// fire, since some other request already announced the removal.
func (s *Service) Delete(ctx context.Context, actorID, membershipID domain.ID) (domain.TaskMembership, error) {
	m, err := s.repo.GetTaskMembershipByID(ctx, membershipID)
	if err != nil {
		return domain.TaskMembership{}, err
	}
	path, err := s.repo.GetTaskPath(ctx, m.TaskID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return domain.TaskMembership{}, domain.ErrTaskMembershipNotFound
		}
		return domain.TaskMembership{}, err
	}
	if err := s.authorize(ctx, path.Board.ID, actorID, domain.ErrTaskMembershipNotFound); err != nil {
		return domain.TaskMembership{}, err
	}

	// The member user feeds the webhook payload and the audit record.
	// A concurrently deleted account degrades to a bare reference.
	user, err := s.repo.GetUserByID(ctx, m.UserID)
	if err != nil {
		if !domain.IsCode(err, domain.CodeNotFound) {
			return domain.TaskMembership{}, err
		}
		user = domain.User{ID: m.UserID}
	}

	deleted, err := s.repo.DeleteTaskMembership(ctx, m.ID)
	if err != nil {
		return domain.TaskMembership{}, err
	}
	if !deleted {
		return m, nil
	}

	s.fanOut(ctx, domain.EventTaskMembershipDelete, domain.WebhookTaskMembershipDelete,
		domain.ActionRemoveMemberFromTask, m, path, user, actorID)

	return m, nil
}

// fanOut runs the post-commit side effects. None of them may roll back
// or fail the mutation; failures are logged and dropped.
func (s *Service) fanOut(ctx context.Context, eventType, webhookEvent string, actionType domain.ActionType,
	m domain.TaskMembership, path domain.TaskPath, user domain.User, actorID domain.ID) {

	s.broker.Publish(ctx, domain.BoardEvent{
		Type:    eventType,
		BoardID: path.Board.ID,
		Data:    domain.EventItem{Item: m},
	})

	actor := domain.UserRef{ID: actorID}
	if actorUser, err := s.repo.GetUserByID(ctx, actorID); err == nil {
		actor.Name = actorUser.Name
	}

	s.hooks.Send(webhookEvent, domain.WebhookData{
		Item: m,
		Included: domain.Included{
			Users:     []domain.User{user},
			Projects:  []domain.Project{path.Project},
			Boards:    []domain.Board{path.Board},
			Lists:     []domain.List{path.List},
			Cards:     []domain.Card{path.Card},
			TaskLists: []domain.TaskList{path.TaskList},
			Tasks:     []domain.Task{path.Task},
		},
	}, actor)

	_, err := s.repo.CreateAction(ctx, path.Card.ID, actorID, actionType, domain.ActionData{
		User: domain.UserRef{ID: user.ID, Name: user.Name},
		Task: domain.TaskRef{Name: path.Task.Name},
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"card": path.Card.ID,
			"type": actionType,
		}).Error("audit action append failed")
	}
}
