package api

import "taskboard-api/domain"

const createBodyMaxSize = 16 * 1024 // 16 KiB

// POST /api/tasks/:taskId/memberships request body
type createMembershipRequest struct {
	UserID domain.ID `json:"userId"`
}

type itemResponse struct {
	Item domain.TaskMembership `json:"item"`
}

type errorResponse struct {
	Error string `json:"error"`
}
