package entity

import (
	"time"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusFailed    RequestStatus = "failed"
)

// DiagramRequest is one prompt-to-diagram lifecycle. It is created pending and
// moves exactly once to completed or failed.
type DiagramRequest struct {
	ID           int64         `json:"id" gorm:"primaryKey;autoIncrement" bson:"id"`
	Prompt       string        `json:"prompt" gorm:"type:text;not null" bson:"prompt"`
	DiagramCode  *string       `json:"diagram_code" gorm:"type:text" bson:"diagram_code,omitempty"`
	DiagramType  *string       `json:"diagram_type" gorm:"size:50" bson:"diagram_type,omitempty"`
	Status       RequestStatus `json:"status" gorm:"size:20;not null;default:pending;index" bson:"status"`
	ErrorMessage *string       `json:"error_message" gorm:"type:text" bson:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at" gorm:"not null;index" bson:"created_at"`
}

func (DiagramRequest) TableName() string {
	return "diagram_requests"
}

func NewDiagramRequest(prompt, diagramType string) *DiagramRequest {
	req := &DiagramRequest{
		Prompt:    prompt,
		Status:    RequestStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if diagramType != "" {
		req.DiagramType = &diagramType
	}
	return req
}

func (r *DiagramRequest) IsTerminal() bool {
	return r.Status == RequestStatusCompleted || r.Status == RequestStatusFailed
}

// DiagramRequestSummary is the history view of a request row.
type DiagramRequestSummary struct {
	ID           int64         `json:"id"`
	Prompt       string        `json:"prompt"`
	Status       RequestStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	ErrorMessage *string       `json:"error_message"`
}

func (r *DiagramRequest) Summary() DiagramRequestSummary {
	return DiagramRequestSummary{
		ID:           r.ID,
		Prompt:       r.Prompt,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		ErrorMessage: r.ErrorMessage,
	}
}
