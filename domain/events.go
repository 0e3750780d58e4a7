package domain

import "time"

// Realtime event names on the per-board channel.
const (
	EventTaskMembershipCreate = "taskMembershipCreate"
	EventTaskMembershipDelete = "taskMembershipDelete"
)

// Webhook event names.
const (
	WebhookTaskMembershipCreate = "TASK_MEMBERSHIP_CREATE"
	WebhookTaskMembershipDelete = "TASK_MEMBERSHIP_DELETE"
)

// BoardEvent is what board subscribers receive, both over the wire and
// through the in-process broker.
type BoardEvent struct {
	Type    string    `json:"type"`
	BoardID ID        `json:"boardId"`
	Data    EventItem `json:"data"`
}

// EventItem wraps the mutated record the way clients expect it.
type EventItem struct {
	Item TaskMembership `json:"item"`
}

// Included carries the denormalized ancestors delivered with webhook
// payloads so receivers need no follow-up reads.
type Included struct {
	Users     []User     `json:"users"`
	Projects  []Project  `json:"projects"`
	Boards    []Board    `json:"boards"`
	Lists     []List     `json:"lists"`
	Cards     []Card     `json:"cards"`
	TaskLists []TaskList `json:"taskLists"`
	Tasks     []Task     `json:"tasks"`
}

// WebhookData is the event-specific portion of a webhook payload.
type WebhookData struct {
	Item     TaskMembership `json:"item"`
	Included Included       `json:"included"`
}

// WebhookPayload is the body POSTed to every enabled webhook.
type WebhookPayload struct {
	Event      string      `json:"event"`
	Data       WebhookData `json:"data"`
	User       UserRef     `json:"user"`
	DeliveryID string      `json:"deliveryId"`
	OccurredAt time.Time   `json:"occurredAt"`
}
