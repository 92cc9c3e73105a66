package entity

import (
	"time"
)

// ApprovalAction is an agent's decision on a pending AI response.
type ApprovalAction string

const (
	ActionApproved ApprovalAction = "approved"
	ActionModified ApprovalAction = "modified"
	ActionRejected ApprovalAction = "rejected"
)

// ParseApprovalAction validates a raw action string.
func ParseApprovalAction(raw string) (ApprovalAction, error) {
	switch ApprovalAction(raw) {
	case ActionApproved, ActionModified, ActionRejected:
		return ApprovalAction(raw), nil
	}
	return "", ErrInvalidApprovalAction
}

// ApprovalRecord is one entry in the append-only approval audit log.
// Exactly one record exists per finalized decision.
type ApprovalRecord struct {
	ID            string
	AIResponseID  string
	AgentID       string
	Action        ApprovalAction
	SubmittedText string // the final text sent to the customer
	Notes         string
	Turnaround    time.Duration // generation-to-decision elapsed time
	DecidedAt     time.Time
}
