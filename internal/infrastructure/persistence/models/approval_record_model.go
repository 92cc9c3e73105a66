package models

import (
	"time"
)

// ApprovalRecordModel is the database row for one approval audit entry.
// Append-only; rows are never updated or deleted.
type ApprovalRecordModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	AIResponseID  string `gorm:"size:64;index"`
	AgentID       string `gorm:"size:64"`
	Action        string `gorm:"size:16"`
	SubmittedText string `gorm:"type:text"`
	Notes         string `gorm:"type:text"`
	TurnaroundMs  int64
	DecidedAt     time.Time
}

// TableName specifies the table name.
func (ApprovalRecordModel) TableName() string {
	return "approval_records"
}
