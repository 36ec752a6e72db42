package members

import (
	"context"

	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

// Reviewers decides who may review a proposal before it opens for voting.
type Reviewers struct {
	db *gorm.DB
}

// NewReviewers returns the role-tier reviewer policy.
func NewReviewers(db *gorm.DB) *Reviewers {
	return &Reviewers{db: db}
}

// CanReviewProposal: reviewers come from the review tier and never review
// their own proposal. An author from the review tier needs a reviewer ranked
// above their tier; founders, who have no one above them, review each other.
func (r *Reviewers) CanReviewProposal(reviewerRole, authorRole gov.Role, reviewerID, authorID uint64) bool {
	if reviewerID == authorID {
		return false
	}
	if !IsReviewerRole(reviewerRole) {
		return false
	}
	if !IsReviewerRole(authorRole) {
		return true
	}
	if authorRole == gov.RoleFounder {
		return reviewerRole == gov.RoleFounder
	}
	return reviewerRole.Rank() > authorRole.Rank()
}

// EligibleReviewers lists the user IDs that may review a proposal by authorID.
func (r *Reviewers) EligibleReviewers(ctx context.Context, bandID, authorID uint64, authorRole gov.Role) ([]uint64, error) {
	active, err := Active(ctx, r.db, bandID)
	if err != nil {
		return nil, err
	}
	var out []uint64
	for _, m := range active {
		if r.CanReviewProposal(m.Role, authorRole, m.UserID, authorID) {
			out = append(out, m.UserID)
		}
	}
	return out, nil
}
