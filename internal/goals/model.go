// Package goals stores the personal goals a user is working towards.
package goals

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusAbandoned  = "ABANDONED"
)

type Goal struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CreateGoalRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	Status      string     `json:"status" validate:"omitempty,oneof=IN_PROGRESS COMPLETED ABANDONED"`
	TargetDate  *time.Time `json:"target_date"`
}

type UpdateGoalRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	Status      *string    `json:"status" validate:"omitempty,oneof=IN_PROGRESS COMPLETED ABANDONED"`
	TargetDate  *time.Time `json:"target_date"`
}

// apply copies the set fields of req onto g.
func (req *UpdateGoalRequest) apply(g *Goal) {
	if req.Title != nil {
		g.Title = *req.Title
	}
	if req.Description != nil {
		g.Description = *req.Description
	}
	if req.Status != nil {
		g.Status = *req.Status
	}
	if req.TargetDate != nil {
		g.TargetDate = req.TargetDate
	}
}
