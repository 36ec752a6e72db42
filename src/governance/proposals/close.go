package proposals

import (
	"context"
	"errors"
	"fmt"

	"github.com/stake-plus/bandgov/src/governance/effects"
	"github.com/stake-plus/bandgov/src/governance/members"
	"github.com/stake-plus/bandgov/src/governance/metrics"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

// ReasonBandDissolved is stamped on live proposals closed by a dissolution.
const ReasonBandDissolved = "BAND_DISSOLVED"

// Built-in side effects of special proposal types.
const (
	BuiltInDissolve       = "DISSOLVE_BAND"
	BuiltInPromoteFounder = "PROMOTE_FOUNDER"
)

// CloseOptions modify a close request.
type CloseOptions struct {
	// ForceClose ends the vote before its deadline. Founders only.
	ForceClose bool
}

// CloseResult is the committed outcome of a close.
type CloseResult struct {
	Proposal     *gov.Proposal            `json:"proposal"`
	Status       gov.ProposalStatus       `json:"status"`
	Reason       string                   `json:"reason"`
	Message      string                   `json:"message"`
	Quorum       QuorumInfo               `json:"quorumInfo"`
	Execution    *effects.ExecutionResult `json:"executionResult,omitempty"`
	BuiltIn      string                   `json:"builtIn,omitempty"`
	BuiltInError string                   `json:"builtInError,omitempty"`
	Events       []Event                  `json:"-"`
}

// Close tallies an OPEN proposal and commits APPROVED or REJECTED. The status
// write is guarded on OPEN, so of two concurrent closers only one proceeds
// and effects run at most once. Approved effects then run in their own
// transaction; their failure leaves the proposal APPROVED with a failed
// Execution result.
func (s *Service) Close(ctx context.Context, proposalID, actorID uint64, opts CloseOptions) (*CloseResult, error) {
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != gov.StatusOpen {
		return nil, badRequest("only OPEN proposals can be closed, this one is %s", p.Status)
	}
	band, err := s.activeBand(ctx, p.BandID)
	if err != nil {
		return nil, err
	}
	actor, err := s.member(ctx, band.ID, actorID)
	if err != nil {
		return nil, err
	}
	if actorID != p.AuthorID && !members.CanClose(actor.Role) {
		return nil, forbidden("only the author or a %s, %s or %s may close this proposal",
			gov.RoleFounder, gov.RoleGovernor, gov.RoleModerator)
	}
	now := s.now()
	if p.VotingEndsAt != nil && now.Before(*p.VotingEndsAt) {
		if !opts.ForceClose {
			return nil, badRequest("voting is open until %s", p.VotingEndsAt.UTC().Format("2006-01-02 15:04 MST"))
		}
		if !members.CanForceClose(actor.Role) {
			return nil, forbidden("only a %s may close a vote before its deadline", gov.RoleFounder)
		}
	}
	if err := s.requireStanding(ctx, band.ID, actorID); err != nil {
		return nil, err
	}

	ballots, err := s.ballots(ctx, p)
	if err != nil {
		return nil, err
	}
	voters, err := s.votingMembers(ctx, band)
	if err != nil {
		return nil, err
	}
	out := Tally(TallyInput{
		Type:             p.Type,
		Method:           band.VotingMethod,
		QuorumPercentage: band.QuorumPercentage,
		EligibleVoters:   len(voters),
		Ballots:          ballots,
	})

	p.Status = out.Status
	p.ClosedAt = &now
	p.ClosureReason = out.Reason
	if err := s.save(s.db.WithContext(ctx), p, gov.StatusOpen, "status", "closed_at", "closure_reason"); err != nil {
		p.Status = gov.StatusOpen
		return nil, err
	}
	metrics.ObserveClose(string(out.Status), out.Reason)
	s.record(ctx, p, actorID, "proposal.closed", map[string]any{
		"status": out.Status, "reason": out.Reason, "quorum": out.Quorum, "force": opts.ForceClose,
	})

	res := &CloseResult{
		Proposal: p,
		Status:   out.Status,
		Reason:   out.Reason,
		Message:  out.Message,
		Quorum:   out.Quorum,
	}
	if out.Status == gov.StatusApproved {
		s.resolve(ctx, band, p, actorID, res)
	}

	res.Events = s.closeEvents(ctx, band, p, actorID, res)
	return res, nil
}

// resolve applies the consequences of an approved proposal.
func (s *Service) resolve(ctx context.Context, band *gov.Band, p *gov.Proposal, actorID uint64, res *CloseResult) {
	if p.ExecutionType.AllowsEffects() && len(p.Effects) > 0 {
		exec := s.executor.ExecuteAndLog(ctx, p, actorID)
		res.Execution = &exec
	}

	var err error
	switch p.Type {
	case gov.TypeDissolution:
		res.BuiltIn = BuiltInDissolve
		err = s.dissolve(ctx, band, p)
	case gov.TypeAddFounder:
		res.BuiltIn = BuiltInPromoteFounder
		err = s.promoteFounder(ctx, p)
	default:
		return
	}
	if err == nil {
		s.record(ctx, p, actorID, "proposal.builtin_applied", map[string]any{"action": res.BuiltIn})
		return
	}

	s.logger.Error("built-in resolution failed", "proposal", p.ID, "action", res.BuiltIn, "err", err)
	res.BuiltInError = err.Error()
	p.ExecutionError = err.Error()
	if err := s.db.WithContext(ctx).Model(&gov.Proposal{}).Where("id = ?", p.ID).
		Update("execution_error", p.ExecutionError).Error; err != nil {
		s.logger.Error("stamping built-in failure failed", "proposal", p.ID, "err", err)
	}
}

// ballots loads the votes of p with each voter's active role in the band.
func (s *Service) ballots(ctx context.Context, p *gov.Proposal) ([]Ballot, error) {
	var out []Ballot
	err := s.db.WithContext(ctx).Table("votes").
		Select("votes.user_id, votes.value, members.role").
		Joins("LEFT JOIN members ON members.band_id = ? AND members.user_id = votes.user_id AND members.status = ?",
			p.BandID, gov.MemberActive).
		Where("votes.proposal_id = ?", p.ID).
		Order("votes.id asc").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load ballots: %w", err)
	}
	return out, nil
}

// dissolve marks the band DISSOLVED and closes every other live proposal.
func (s *Service) dissolve(ctx context.Context, band *gov.Band, p *gov.Proposal) error {
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&gov.Band{}).
			Where("id = ? AND status = ?", band.ID, gov.BandActive).
			Updates(map[string]any{"status": gov.BandDissolved, "dissolved_at": now})
		if res.Error != nil {
			return fmt.Errorf("dissolve band: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.New("band is already dissolved")
		}
		err := tx.Model(&gov.Proposal{}).
			Where("band_id = ? AND id <> ? AND status IN ?", band.ID, p.ID,
				[]gov.ProposalStatus{gov.StatusDraft, gov.StatusPendingReview, gov.StatusOpen}).
			Updates(map[string]any{
				"status":         gov.StatusClosed,
				"closed_at":      now,
				"closure_reason": ReasonBandDissolved,
			}).Error
		if err != nil {
			return fmt.Errorf("close live proposals: %w", err)
		}
		band.Status = gov.BandDissolved
		band.DissolvedAt = &now
		return nil
	})
}

// promoteFounder raises the subject of an ADD_FOUNDER proposal to FOUNDER.
func (s *Service) promoteFounder(ctx context.Context, p *gov.Proposal) error {
	if p.SubjectUserID == nil {
		return errors.New("proposal does not name a member to promote")
	}
	res := s.db.WithContext(ctx).Model(&gov.Member{}).
		Where("band_id = ? AND user_id = ? AND status = ?", p.BandID, *p.SubjectUserID, gov.MemberActive).
		Update("role", gov.RoleFounder)
	if res.Error != nil {
		return fmt.Errorf("promote member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d is no longer an active member", *p.SubjectUserID)
	}
	return nil
}

func (s *Service) closeEvents(ctx context.Context, band *gov.Band, p *gov.Proposal, actorID uint64, res *CloseResult) []Event {
	all, err := members.Active(ctx, s.db, band.ID)
	if err != nil {
		s.logger.Warn("listing members for close events failed", "proposal", p.ID, "err", err)
	}

	tmpl := Event{
		BandID:     band.ID,
		ProposalID: p.ID,
		ActionURL:  actionURL(band.ID, p.ID),
		Priority:   PriorityMedium,
	}
	if res.Status == gov.StatusApproved {
		tmpl.Type = EventApproved
		tmpl.Title = "Proposal approved"
	} else {
		tmpl.Type = EventRejected
		tmpl.Title = "Proposal rejected"
	}
	tmpl.Message = fmt.Sprintf("%q: %s", p.Title, res.Message)
	if res.BuiltIn == BuiltInDissolve && res.BuiltInError == "" {
		tmpl.Priority = PriorityHigh
	}
	events := fanout(tmpl, append(userIDs(all), p.AuthorID)...)

	failed := res.BuiltInError
	if res.Execution != nil && !res.Execution.Success {
		failed = res.Execution.Error
	}
	if failed != "" {
		events = append(events, fanout(Event{
			BandID:     band.ID,
			ProposalID: p.ID,
			Type:       EventExecutionFailed,
			Title:      "Approved proposal could not be applied",
			Message:    fmt.Sprintf("%q was approved but applying it failed: %s", p.Title, failed),
			ActionURL:  actionURL(band.ID, p.ID),
			Priority:   PriorityHigh,
		}, p.AuthorID, actorID)...)
	}
	return events
}
