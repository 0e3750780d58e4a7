package domain

import (
	"fmt"
	"strconv"
	"time"
)

// ID is a 64-bit entity identifier. It is serialized as a decimal string
// because board clients treat identifiers as opaque strings.
type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatInt(int64(id), 10) + `"`), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", s)
	}
	*id = ID(n)
	return nil
}

// ParseID parses a decimal path or body parameter into an ID.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return ID(n), nil
}

// Role is a per-board permission level.
type Role string

const (
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// TaskMembership assigns one user to one task. At most one membership
// exists per (task, user) pair.
type TaskMembership struct {
	ID        ID         `json:"id"`
	TaskID    ID         `json:"taskId"`
	UserID    ID         `json:"userId"`
	CreatedAt *time.Time `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

type User struct {
	ID                  ID     `json:"id"`
	Name                string `json:"name"`
	Email               string `json:"email,omitempty"`
	SubscribeToOwnCards bool   `json:"subscribeToOwnCards,omitempty"`
}

type Project struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type Board struct {
	ID        ID     `json:"id"`
	ProjectID ID     `json:"projectId"`
	Name      string `json:"name"`
}

type BoardMembership struct {
	ID      ID   `json:"id"`
	BoardID ID   `json:"boardId"`
	UserID  ID   `json:"userId"`
	Role    Role `json:"role"`
}

type List struct {
	ID       ID     `json:"id"`
	BoardID  ID     `json:"boardId"`
	Name     string `json:"name"`
	Position int64  `json:"position"`
}

type Card struct {
	ID       ID     `json:"id"`
	ListID   ID     `json:"listId"`
	Name     string `json:"name"`
	Position int64  `json:"position"`
}

type TaskList struct {
	ID       ID     `json:"id"`
	CardID   ID     `json:"cardId"`
	Name     string `json:"name"`
	Position int64  `json:"position"`
}

// Task is a checklist item within a card's task list.
type Task struct {
	ID             ID     `json:"id"`
	TaskListID     ID     `json:"taskListId"`
	Name           string `json:"name"`
	Position       int64  `json:"position"`
	IsCompleted    bool   `json:"isCompleted"`
	AssigneeUserID *ID    `json:"assigneeUserId,omitempty"`
}

// TaskPath is a task resolved together with every ancestor up to its
// project. Authorization and fan-out both need the full chain.
type TaskPath struct {
	Task     Task
	TaskList TaskList
	Card     Card
	List     List
	Board    Board
	Project  Project
}

// ActionType names an audit action kind.
type ActionType string

const (
	ActionAddMemberToTask      ActionType = "addMemberToTask"
	ActionRemoveMemberFromTask ActionType = "removeMemberFromTask"
)

// Action is an immutable audit record describing a mutation on a card.
type Action struct {
	ID        ID         `json:"id"`
	CardID    ID         `json:"cardId"`
	UserID    ID         `json:"userId"`
	Type      ActionType `json:"type"`
	Data      ActionData `json:"data"`
	CreatedAt *time.Time `json:"createdAt"`
}

// ActionData carries the denormalized names shown on the card timeline.
type ActionData struct {
	User UserRef `json:"user"`
	Task TaskRef `json:"task"`
}

type UserRef struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type TaskRef struct {
	Name string `json:"name"`
}

// Webhook is an outbound delivery target registered by an administrator.
type Webhook struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	AccessToken string `json:"accessToken,omitempty"`
	Enabled     bool   `json:"enabled"`
}
