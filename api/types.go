package api

import (
	"context"

	"taskboard-api/domain"
)

// MembershipService performs the authorized mutations.
type MembershipService interface {
	Create(ctx context.Context, actorID, taskID, userID domain.ID) (domain.TaskMembership, error)
	Delete(ctx context.Context, actorID, membershipID domain.ID) (domain.TaskMembership, error)
}

// Authenticator is implemented by types able to extract user IDs from
// Authorization headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// BoardDirectory answers membership questions for stream authorization.
type BoardDirectory interface {
	IsBoardMember(ctx context.Context, boardID, userID domain.ID) (bool, error)
}

// Subscriber hands out per-board event channels.
type Subscriber interface {
	Subscribe(boardID domain.ID) (<-chan domain.BoardEvent, func())
}

// Pinger reports storage connectivity for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
