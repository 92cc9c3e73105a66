package entity

import "errors"

var (
	// Conversation errors
	ErrInvalidConversationID = errors.New("invalid conversation id")
	ErrInvalidTenantID       = errors.New("invalid tenant id")

	// Message errors
	ErrInvalidMessageID  = errors.New("invalid message id")
	ErrInvalidSenderType = errors.New("invalid sender type")
	ErrEmptyMessageBody  = errors.New("empty message body")

	// Approval errors
	ErrInvalidApprovalAction = errors.New("invalid approval action")
)
