package gov

import (
	"encoding/json"
	"time"
)

// Effect is a declarative instruction applied when a GOVERNANCE or ACTION
// proposal is approved. The JSON layout is persisted and must stay stable.
type Effect struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Order   *int            `json:"order,omitempty"`
}

// SortKey returns the execution order of the effect; missing order sorts as 0.
func (e Effect) SortKey() int {
	if e.Order == nil {
		return 0
	}
	return *e.Order
}

// Proposal is a decision request owned by a band.
type Proposal struct {
	ID               uint64        `gorm:"primaryKey" json:"id"`
	BandID           uint64        `gorm:"index;not null" json:"bandId"`
	AuthorID         uint64        `gorm:"index;not null" json:"authorId"`
	Title            string        `gorm:"size:255;not null" json:"title"`
	Description      string        `gorm:"type:text;not null" json:"description"`
	Type             ProposalType  `gorm:"size:32;not null" json:"type"`
	ExecutionType    ExecutionType `gorm:"size:16;not null" json:"executionType"`
	ExecutionSubtype string        `gorm:"size:64" json:"executionSubtype,omitempty"`
	Effects          []Effect      `gorm:"serializer:json;type:text" json:"effects,omitempty"`
	SubjectUserID    *uint64       `json:"subjectUserId,omitempty"`

	Status          ProposalStatus `gorm:"size:16;index;not null" json:"status"`
	SubmittedAt     *time.Time     `json:"submittedAt,omitempty"`
	VotingStartsAt  *time.Time     `json:"votingStartsAt,omitempty"`
	VotingEndsAt    *time.Time     `json:"votingEndsAt,omitempty"`
	ClosedAt        *time.Time     `json:"closedAt,omitempty"`
	SubmissionCount int            `gorm:"not null;default:0" json:"submissionCount"`

	ReviewedByID    *uint64    `json:"reviewedById,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejectionReason,omitempty"`
	EditReason      string     `gorm:"type:text" json:"editReason,omitempty"`
	ClosureReason   string     `gorm:"size:255" json:"closureReason,omitempty"`

	EffectsValidatedAt *time.Time `json:"effectsValidatedAt,omitempty"`
	EffectsExecutedAt  *time.Time `json:"effectsExecutedAt,omitempty"`
	ExecutionError     string     `gorm:"type:text" json:"executionError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Vote is one member's decision on one proposal.
type Vote struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	ProposalID uint64    `gorm:"uniqueIndex:idx_vote_proposal_user,priority:1;not null" json:"proposalId"`
	UserID     uint64    `gorm:"uniqueIndex:idx_vote_proposal_user,priority:2;not null" json:"userId"`
	Value      VoteValue `gorm:"size:8;not null" json:"vote"`
	Comment    string    `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ReviewHistory records each review decision taken on a proposal.
type ReviewHistory struct {
	ID         uint64       `gorm:"primaryKey" json:"id"`
	ProposalID uint64       `gorm:"index;not null" json:"proposalId"`
	ReviewerID uint64       `gorm:"not null" json:"reviewerId"`
	Action     ReviewAction `gorm:"size:16;not null" json:"action"`
	Reason     string       `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// ExecutionLog is written once per execution attempt and never updated.
type ExecutionLog struct {
	ID               uint64     `gorm:"primaryKey" json:"id"`
	ProposalID       uint64     `gorm:"index;not null" json:"proposalId"`
	Subtype          string     `gorm:"size:64" json:"subtype,omitempty"`
	EffectsSubmitted []Effect   `gorm:"serializer:json;type:text" json:"effectsSubmitted"`
	EffectsExecuted  []Effect   `gorm:"serializer:json;type:text" json:"effectsExecuted"`
	EffectsDigest    string     `gorm:"size:16" json:"effectsDigest"`
	Status           ExecStatus `gorm:"size:16;not null" json:"status"`
	Error            string     `gorm:"type:text" json:"error,omitempty"`
	ExecutedByID     uint64     `gorm:"not null" json:"executedById"`
	CreatedAt        time.Time  `json:"createdAt"`
}
