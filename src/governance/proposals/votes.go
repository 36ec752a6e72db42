package proposals

import (
	"context"
	"fmt"
	"strings"

	"github.com/stake-plus/bandgov/src/governance/metrics"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm/clause"
)

// VoteInput is a member's ballot.
type VoteInput struct {
	Value   gov.VoteValue
	Comment string
}

// CastVote records or replaces userID's vote on an OPEN proposal.
func (s *Service) CastVote(ctx context.Context, proposalID, userID uint64, in VoteInput) (*gov.Vote, error) {
	if !in.Value.Valid() {
		return nil, badRequest("vote must be one of YES, NO or ABSTAIN")
	}
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != gov.StatusOpen {
		return nil, badRequest("voting is not open on this proposal, it is %s", p.Status)
	}
	if p.VotingEndsAt != nil && !s.now().Before(*p.VotingEndsAt) {
		return nil, badRequest("the voting period ended at %s", p.VotingEndsAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	band, err := s.activeBand(ctx, p.BandID)
	if err != nil {
		return nil, err
	}
	voter, err := s.member(ctx, band.ID, userID)
	if err != nil {
		return nil, err
	}
	if !band.CanVote(voter.Role) {
		return nil, forbidden("role %s may not vote in this band", voter.Role)
	}
	switch p.Type {
	case gov.TypeDissolution:
		if in.Value == gov.VoteAbstain {
			return nil, badRequest("abstaining is not allowed on a dissolution vote")
		}
	case gov.TypeAddFounder:
		if voter.Role != gov.RoleFounder {
			return nil, forbidden("only founders may vote on adding a founder")
		}
	}
	if err := s.requireStanding(ctx, band.ID, userID); err != nil {
		return nil, err
	}

	v := gov.Vote{
		ProposalID: p.ID,
		UserID:     userID,
		Value:      in.Value,
		Comment:    strings.TrimSpace(in.Comment),
	}
	db := s.db.WithContext(ctx)
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "proposal_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "comment", "updated_at"}),
	}).Create(&v).Error
	if err != nil {
		return nil, fmt.Errorf("record vote: %w", err)
	}

	var stored gov.Vote
	if err := db.Where("proposal_id = ? AND user_id = ?", p.ID, userID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("reload vote: %w", err)
	}
	metrics.ObserveVote(string(stored.Value))
	s.record(ctx, p, userID, "vote.cast", map[string]any{"vote": stored.Value})
	return &stored, nil
}

// Summary is the current vote count of a proposal.
type Summary struct {
	ProposalID uint64             `json:"proposalId"`
	Status     gov.ProposalStatus `json:"status"`
	Yes        int                `json:"yes"`
	No         int                `json:"no"`
	Abstain    int                `json:"abstain"`
	Total      int                `json:"total"`
}

// VoteSummary counts the votes recorded on a proposal.
func (s *Service) VoteSummary(ctx context.Context, proposalID uint64) (*Summary, error) {
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Value gov.VoteValue
		N     int
	}
	err = s.db.WithContext(ctx).Model(&gov.Vote{}).
		Select("value, COUNT(*) AS n").
		Where("proposal_id = ?", p.ID).
		Group("value").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}

	sum := &Summary{ProposalID: p.ID, Status: p.Status}
	for _, r := range rows {
		switch r.Value {
		case gov.VoteYes:
			sum.Yes = r.N
		case gov.VoteNo:
			sum.No = r.N
		case gov.VoteAbstain:
			sum.Abstain = r.N
		}
		sum.Total += r.N
	}
	return sum, nil
}
