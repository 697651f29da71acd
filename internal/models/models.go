// Package models defines the core domain types for taskchat.
package models

import "time"

// TaskStatus represents the workflow state of a task.
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "OPEN"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusCanceled   TaskStatus = "CANCELED"
)

// Task is a read-only snapshot of one task record as the data provider
// returns it. The gateway never mutates tasks.
type Task struct {
	ID               int64      `json:"id"`
	CreatedAt        time.Time  `json:"createdAt"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           TaskStatus `json:"status"`
	Deadline         string     `json:"deadline"`
	AssignedUserID   int64      `json:"assignedUserId"`
	AllowUserUpdate  bool       `json:"allowUserUpdate"`
	AssignedFullName string     `json:"assignedFullName"`
}

// Claims is the identity extracted from a verified access token.
// Valid for the duration of one request only.
type Claims struct {
	UserID    int64
	Username  string
	TokenType string
	ExpiresAt time.Time
}

// Turn roles as they appear in conversation history payloads.
const (
	RoleUser      = "user"
	RoleAssistant = "model"
)

// Turn is one entry of a conversation history: who spoke and what was said.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SelectionResult is the outcome of interpreting a backend reply: either a
// structured selection of task records or the reply text verbatim.
type SelectionResult struct {
	IsStructured bool
	Tasks        []Task
	Reply        string
}

// StructuredSelection builds a structured result from resolved tasks.
func StructuredSelection(tasks []Task) SelectionResult {
	return SelectionResult{IsStructured: true, Tasks: tasks}
}

// TextReply builds an unstructured result carrying the reply verbatim.
func TextReply(reply string) SelectionResult {
	return SelectionResult{IsStructured: false, Reply: reply}
}
