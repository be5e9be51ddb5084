package models

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	Status       TaskStatus `json:"status"`
	TotalMinutes int        `json:"total_minutes"`
	ProjectID    *uuid.UUID `json:"project_id,omitempty"`
	CreatorID    uuid.UUID  `json:"creator_id"`
	AssigneeID   *uuid.UUID `json:"assignee_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Personal reports whether the task lives outside any project. Personal
// tasks are visible only to their creator and global admins.
func (t *Task) Personal() bool {
	return t.ProjectID == nil
}

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

var statusOrder = map[TaskStatus]int{
	StatusTodo:       0,
	StatusInProgress: 1,
	StatusDone:       2,
}

func (s TaskStatus) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// CanTransitionTo allows moves between adjacent states of the chain
// todo <-> in_progress <-> done, in either direction. Setting the same
// status again is a no-op and allowed.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	a, ok := statusOrder[s]
	if !ok {
		return false
	}
	b, ok := statusOrder[next]
	if !ok {
		return false
	}
	diff := a - b
	return diff >= -1 && diff <= 1
}
