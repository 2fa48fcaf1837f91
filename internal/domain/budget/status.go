package budget

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
)

// WorkflowStatus is the lifecycle state shared by Plan and Execution
type WorkflowStatus string

const (
	StatusDraft     WorkflowStatus = "draft"
	StatusSubmitted WorkflowStatus = "submitted"
	StatusApproved  WorkflowStatus = "approved"
	StatusRejected  WorkflowStatus = "rejected"
)

// IsValid checks if the status is a known WorkflowStatus
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// String returns the string representation of WorkflowStatus
func (s WorkflowStatus) String() string {
	return string(s)
}

// IsTerminal returns true for approved and rejected
func (s WorkflowStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanEdit returns true if child records may be mutated
func (s WorkflowStatus) CanEdit() bool {
	return s == StatusDraft
}

// CanSubmit returns true if the entity can be submitted for approval
func (s WorkflowStatus) CanSubmit() bool {
	return s == StatusDraft
}

// CanApprove returns true if the entity can be approved or rejected
func (s WorkflowStatus) CanApprove() bool {
	return s == StatusSubmitted
}

// Workflow holds the lifecycle state plus submission and decision stamps
type Workflow struct {
	Status           WorkflowStatus `json:"status"`
	SubmittedBy      *uuid.UUID     `json:"submitted_by,omitempty"`
	SubmittedAt      *time.Time     `json:"submitted_at,omitempty"`
	ApprovedBy       *uuid.UUID     `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time     `json:"approved_at,omitempty"`
	RejectedBy       *uuid.UUID     `json:"rejected_by,omitempty"`
	RejectedAt       *time.Time     `json:"rejected_at,omitempty"`
	RejectionComment string         `json:"rejection_comment,omitempty"`
}

func newWorkflow() Workflow {
	return Workflow{Status: StatusDraft}
}

func (w *Workflow) requireEditable(entity string) error {
	if !w.Status.CanEdit() {
		return shared.NewInvalidStateError(fmt.Sprintf("cannot modify %s in %s status", entity, w.Status))
	}
	return nil
}

func (w *Workflow) submit(entity string, actor uuid.UUID, now time.Time) error {
	if !w.Status.CanSubmit() {
		return shared.NewInvalidStateError(fmt.Sprintf("cannot submit %s in %s status", entity, w.Status))
	}
	w.Status = StatusSubmitted
	w.SubmittedBy = &actor
	w.SubmittedAt = &now
	return nil
}

func (w *Workflow) approve(entity string, actor uuid.UUID, now time.Time) error {
	if !w.Status.CanApprove() {
		return shared.NewInvalidStateError(fmt.Sprintf("cannot approve %s in %s status", entity, w.Status))
	}
	w.Status = StatusApproved
	w.ApprovedBy = &actor
	w.ApprovedAt = &now
	return nil
}

func (w *Workflow) reject(entity string, actor uuid.UUID, comment string, now time.Time) error {
	if !w.Status.CanApprove() {
		return shared.NewInvalidStateError(fmt.Sprintf("cannot reject %s in %s status", entity, w.Status))
	}
	if len(comment) > 500 {
		return shared.NewValidationError("rejection comment cannot exceed 500 characters")
	}
	w.Status = StatusRejected
	w.RejectedBy = &actor
	w.RejectedAt = &now
	w.RejectionComment = comment
	return nil
}
