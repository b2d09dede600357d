package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Task and Project
// ===========================================================================

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

func IsValidTaskStatus(s string) bool {
	switch TaskStatus(s) {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func IsValidPriority(s string) bool {
	switch Priority(s) {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	BaseModel
	TenantScoped

	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Status      TaskStatus `gorm:"size:20;not null;default:'todo';index" json:"status"`
	Priority    Priority   `gorm:"size:20;not null;default:'normal'" json:"priority"`
	DueDate     *time.Time `gorm:"index" json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ClientID  *uuid.UUID `gorm:"type:uuid;index" json:"client_id,omitempty"`
	ProjectID *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

type ProjectStatus string

const (
	ProjectPlanned   ProjectStatus = "planned"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

type Project struct {
	BaseModel
	TenantScoped

	ClientID    *uuid.UUID    `gorm:"type:uuid;index" json:"client_id,omitempty"`
	Name        string        `gorm:"size:255;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description,omitempty"`
	Status      ProjectStatus `gorm:"size:20;not null;default:'planned';index" json:"status"`
	Budget      float64       `gorm:"default:0" json:"budget"`
	StartDate   *time.Time    `json:"start_date,omitempty"`
	EndDate     *time.Time    `json:"end_date,omitempty"`

	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

func (Project) TableName() string {
	return "projects"
}
