package proposals

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stake-plus/bandgov/src/governance/effects"
	"github.com/stake-plus/bandgov/src/governance/members"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

// CreateInput describes a new proposal.
type CreateInput struct {
	BandID           uint64
	AuthorID         uint64
	Title            string
	Description      string
	Type             gov.ProposalType
	ExecutionType    gov.ExecutionType
	ExecutionSubtype string
	Effects          json.RawMessage
	SubjectUserID    *uint64
}

// Transition is the result of a lifecycle operation.
type Transition struct {
	Proposal *gov.Proposal `json:"proposal"`
	Events   []Event       `json:"-"`
}

// Create stores a new DRAFT proposal. Effects are validated up front; when
// they fail, the validation result is returned alongside the error.
func (s *Service) Create(ctx context.Context, in CreateInput) (*gov.Proposal, *effects.ValidationResult, error) {
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if title == "" || len(title) > 255 {
		return nil, nil, badRequest("title must be between 1 and 255 characters")
	}
	if desc == "" {
		return nil, nil, badRequest("description is required")
	}
	if in.Type == "" {
		in.Type = gov.TypeGeneral
	}
	if !in.Type.Valid() {
		return nil, nil, badRequest("unknown proposal type %q", in.Type)
	}
	if in.ExecutionType == "" {
		in.ExecutionType = gov.ExecResolution
	}
	if !in.ExecutionType.Valid() {
		return nil, nil, badRequest("unknown execution type %q", in.ExecutionType)
	}

	band, err := s.activeBand(ctx, in.BandID)
	if err != nil {
		return nil, nil, err
	}
	author, err := s.member(ctx, band.ID, in.AuthorID)
	if err != nil {
		return nil, nil, err
	}
	if !band.CanPropose(author.Role) {
		return nil, nil, forbidden("role %s may not create proposals in this band", author.Role)
	}
	if err := s.requireStanding(ctx, band.ID, in.AuthorID); err != nil {
		return nil, nil, err
	}

	if err := s.checkBuiltIn(ctx, band, in); err != nil {
		return nil, nil, err
	}

	res := s.validator.Validate(ctx, in.Effects, in.ExecutionType, in.ExecutionSubtype,
		effects.ValidationContext{BandID: band.ID, DB: s.db.WithContext(ctx)})
	if !res.Valid {
		return nil, &res, &Error{Kind: KindBadRequest, Reason: "effects failed validation", Details: res.Errors}
	}

	now := s.now()
	p := &gov.Proposal{
		BandID:           band.ID,
		AuthorID:         in.AuthorID,
		Title:            title,
		Description:      desc,
		Type:             in.Type,
		ExecutionType:    in.ExecutionType,
		ExecutionSubtype: in.ExecutionSubtype,
		Effects:          res.Effects,
		SubjectUserID:    in.SubjectUserID,
		Status:           gov.StatusDraft,
	}
	if len(res.Effects) > 0 {
		p.EffectsValidatedAt = &now
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, &res, fmt.Errorf("create proposal: %w", err)
	}

	s.record(ctx, p, in.AuthorID, "proposal.created", map[string]any{
		"type": p.Type, "executionType": p.ExecutionType, "effects": len(p.Effects),
	})
	return p, &res, nil
}

// checkBuiltIn enforces the extra creation rules of dissolution and
// founder-addition proposals, which resolve through built-in side effects.
func (s *Service) checkBuiltIn(ctx context.Context, band *gov.Band, in CreateInput) error {
	switch in.Type {
	case gov.TypeDissolution, gov.TypeAddFounder:
	default:
		return nil
	}
	if in.ExecutionType.AllowsEffects() {
		return badRequest("%s proposals resolve through a built-in action and cannot carry effects", in.Type)
	}
	if in.Type == gov.TypeDissolution {
		return nil
	}

	if in.SubjectUserID == nil {
		return badRequest("founder-addition proposals must name the member to promote")
	}
	subject, err := members.Find(ctx, s.db, band.ID, *in.SubjectUserID)
	if err != nil {
		return badRequest("user %d is not an active member of this band", *in.SubjectUserID)
	}
	if subject.Role == gov.RoleFounder {
		return badRequest("user %d is already a founder", *in.SubjectUserID)
	}
	return nil
}

func canResubmit(p *gov.Proposal) bool {
	switch p.Status {
	case gov.StatusDraft, gov.StatusWithdrawn:
		return true
	case gov.StatusRejected:
		// Only review rejections reopen; a tally rejection is final.
		return p.ClosedAt == nil
	}
	return false
}

// Submit moves a DRAFT, WITHDRAWN or review-REJECTED proposal into review or
// straight into voting, depending on the band's configuration.
func (s *Service) Submit(ctx context.Context, proposalID, actorID uint64) (*Transition, error) {
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != actorID {
		return nil, forbidden("only the author can submit this proposal")
	}
	if !canResubmit(p) {
		return nil, badRequest("a proposal in status %s cannot be submitted", p.Status)
	}
	band, err := s.activeBand(ctx, p.BandID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStanding(ctx, band.ID, actorID); err != nil {
		return nil, err
	}
	if p.SubmissionCount >= s.policy.MaxSubmissions {
		return nil, badRequest("this proposal has reached the maximum of %d submissions", s.policy.MaxSubmissions)
	}

	if p.ExecutionType.AllowsEffects() {
		res := s.validator.ValidateEffects(ctx, p.Effects, p.ExecutionType, p.ExecutionSubtype,
			effects.ValidationContext{BandID: band.ID, DB: s.db.WithContext(ctx)})
		if !res.Valid {
			return nil, &Error{Kind: KindBadRequest, Reason: "effects failed validation", Details: res.Errors}
		}
	}

	from := p.Status
	now := s.now()
	p.SubmittedAt = &now
	p.SubmissionCount++
	p.RejectionReason = ""
	cols := []string{"status", "submitted_at", "submission_count", "rejection_reason",
		"voting_starts_at", "voting_ends_at"}
	if p.ExecutionType.AllowsEffects() && len(p.Effects) > 0 {
		p.EffectsValidatedAt = &now
		cols = append(cols, "effects_validated_at")
	}

	if band.RequireProposalReview {
		p.Status = gov.StatusPendingReview
		p.VotingStartsAt, p.VotingEndsAt = nil, nil
	} else {
		s.openVoting(p, band)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if from != gov.StatusDraft {
			if err := tx.Where("proposal_id = ?", p.ID).Delete(&gov.Vote{}).Error; err != nil {
				return fmt.Errorf("clear votes: %w", err)
			}
		}
		return s.save(tx, p, from, cols...)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, p, actorID, "proposal.submitted", map[string]any{
		"from": from, "to": p.Status, "submission": p.SubmissionCount,
	})
	events, err := s.submissionEvents(ctx, band, p)
	if err != nil {
		s.logger.Warn("building submission events failed", "proposal", p.ID, "err", err)
	}
	return &Transition{Proposal: p, Events: events}, nil
}

// openVoting puts p into OPEN with a fresh voting window.
func (s *Service) openVoting(p *gov.Proposal, band *gov.Band) {
	now := s.now()
	ends := now.Add(band.VotingPeriod())
	p.Status = gov.StatusOpen
	p.VotingStartsAt = &now
	p.VotingEndsAt = &ends
}

func (s *Service) submissionEvents(ctx context.Context, band *gov.Band, p *gov.Proposal) ([]Event, error) {
	if p.Status == gov.StatusPendingReview {
		reviewers, err := s.reviewers.EligibleReviewers(ctx, band.ID, p.AuthorID, s.roleOf(ctx, band.ID, p.AuthorID))
		if err != nil {
			return nil, err
		}
		return fanout(Event{
			BandID:     band.ID,
			ProposalID: p.ID,
			Type:       EventReviewRequested,
			Title:      "Proposal awaiting review",
			Message:    fmt.Sprintf("%q needs a review before voting can start.", p.Title),
			ActionURL:  actionURL(band.ID, p.ID),
			Priority:   PriorityMedium,
		}, reviewers...), nil
	}
	return s.votingOpenEvents(ctx, band, p)
}

func (s *Service) votingOpenEvents(ctx context.Context, band *gov.Band, p *gov.Proposal) ([]Event, error) {
	voters, err := s.votingMembers(ctx, band)
	if err != nil {
		return nil, err
	}
	return fanout(Event{
		BandID:     band.ID,
		ProposalID: p.ID,
		Type:       EventVotingOpen,
		Title:      "Voting is open",
		Message:    fmt.Sprintf("Voting on %q closes %s.", p.Title, p.VotingEndsAt.UTC().Format("2006-01-02 15:04 MST")),
		ActionURL:  actionURL(band.ID, p.ID),
		Priority:   PriorityMedium,
	}, userIDs(voters)...), nil
}

// ReviewInput is a reviewer's decision.
type ReviewInput struct {
	Approve bool
	Reason  string
}

// Review approves a PENDING_REVIEW proposal into voting or rejects it with a reason.
func (s *Service) Review(ctx context.Context, proposalID, reviewerID uint64, in ReviewInput) (*Transition, error) {
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != gov.StatusPendingReview {
		return nil, badRequest("only proposals pending review can be reviewed, this one is %s", p.Status)
	}
	band, err := s.activeBand(ctx, p.BandID)
	if err != nil {
		return nil, err
	}
	reviewer, err := s.member(ctx, band.ID, reviewerID)
	if err != nil {
		return nil, err
	}
	authorRole := s.roleOf(ctx, band.ID, p.AuthorID)
	if !s.reviewers.CanReviewProposal(reviewer.Role, authorRole, reviewerID, p.AuthorID) {
		return nil, forbidden("you are not eligible to review this proposal")
	}
	if err := s.requireStanding(ctx, band.ID, reviewerID); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(in.Reason)
	if !in.Approve && len(reason) < s.policy.MinRejectReasonLen {
		return nil, badRequest("a rejection reason of at least %d characters is required", s.policy.MinRejectReasonLen)
	}

	now := s.now()
	p.ReviewedByID = &reviewerID
	p.ReviewedAt = &now
	history := gov.ReviewHistory{ProposalID: p.ID, ReviewerID: reviewerID, Reason: reason}
	cols := []string{"status", "reviewed_by_id", "reviewed_at"}
	if in.Approve {
		s.openVoting(p, band)
		history.Action = gov.ReviewApproved
		cols = append(cols, "voting_starts_at", "voting_ends_at")
	} else {
		p.Status = gov.StatusRejected
		p.RejectionReason = reason
		history.Action = gov.ReviewRejected
		cols = append(cols, "rejection_reason")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.save(tx, p, gov.StatusPendingReview, cols...); err != nil {
			return err
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, p, reviewerID, "proposal.reviewed", map[string]any{"action": history.Action})

	tmpl := Event{
		BandID:     band.ID,
		ProposalID: p.ID,
		ActionURL:  actionURL(band.ID, p.ID),
		Priority:   PriorityMedium,
	}
	var events []Event
	if in.Approve {
		tmpl.Type = EventReviewApproved
		tmpl.Title = "Proposal approved for voting"
		tmpl.Message = fmt.Sprintf("%q passed review and is open for voting.", p.Title)
		events = fanout(tmpl, p.AuthorID)
		open, err := s.votingOpenEvents(ctx, band, p)
		if err != nil {
			s.logger.Warn("building voting events failed", "proposal", p.ID, "err", err)
		}
		events = append(events, open...)
	} else {
		tmpl.Type = EventReviewRejected
		tmpl.Title = "Proposal rejected in review"
		tmpl.Message = fmt.Sprintf("%q was rejected: %s", p.Title, reason)
		tmpl.Priority = PriorityHigh
		events = fanout(tmpl, p.AuthorID)
	}
	return &Transition{Proposal: p, Events: events}, nil
}

// Withdraw lets the author pull a proposal that is still a draft, awaiting
// review, or open without any votes.
func (s *Service) Withdraw(ctx context.Context, proposalID, actorID uint64) (*Transition, error) {
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != actorID {
		return nil, forbidden("only the author can withdraw this proposal")
	}
	switch p.Status {
	case gov.StatusDraft, gov.StatusPendingReview, gov.StatusOpen:
	default:
		return nil, badRequest("a proposal in status %s cannot be withdrawn", p.Status)
	}

	from := p.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if from == gov.StatusOpen {
			var n int64
			if err := tx.Model(&gov.Vote{}).Where("proposal_id = ?", p.ID).Count(&n).Error; err != nil {
				return fmt.Errorf("count votes: %w", err)
			}
			if n > 0 {
				return badRequest("a proposal that has received votes cannot be withdrawn")
			}
		}
		p.Status = gov.StatusWithdrawn
		p.VotingStartsAt, p.VotingEndsAt = nil, nil
		return s.save(tx, p, from, "status", "voting_starts_at", "voting_ends_at")
	})
	if err != nil {
		p.Status = from
		return nil, err
	}

	s.record(ctx, p, actorID, "proposal.withdrawn", map[string]any{"from": from})
	return &Transition{Proposal: p}, nil
}

// EditInput lists the fields to change; nil means unchanged.
type EditInput struct {
	Title       *string
	Description *string
	Effects     json.RawMessage
	Reason      string
}

// Edit changes a proposal's content. Editing an OPEN proposal discards every
// vote and either sends it back to review or restarts the voting window.
func (s *Service) Edit(ctx context.Context, proposalID, actorID uint64, in EditInput) (*Transition, error) {
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != actorID {
		return nil, forbidden("only the author can edit this proposal")
	}
	switch p.Status {
	case gov.StatusDraft, gov.StatusPendingReview, gov.StatusOpen:
	default:
		return nil, badRequest("a proposal in status %s cannot be edited", p.Status)
	}
	band, err := s.activeBand(ctx, p.BandID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStanding(ctx, band.ID, actorID); err != nil {
		return nil, err
	}

	from := p.Status
	var cols []string
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" || len(t) > 255 {
			return nil, badRequest("title must be between 1 and 255 characters")
		}
		if t != p.Title {
			p.Title = t
			cols = append(cols, "title")
		}
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			return nil, badRequest("description is required")
		}
		if d != p.Description {
			p.Description = d
			cols = append(cols, "description")
		}
	}
	if len(in.Effects) > 0 {
		res := s.validator.Validate(ctx, in.Effects, p.ExecutionType, p.ExecutionSubtype,
			effects.ValidationContext{BandID: band.ID, DB: s.db.WithContext(ctx)})
		if !res.Valid {
			return nil, &Error{Kind: KindBadRequest, Reason: "effects failed validation", Details: res.Errors}
		}
		now := s.now()
		p.Effects = res.Effects
		p.EffectsValidatedAt = &now
		cols = append(cols, "effects", "effects_validated_at")
	}
	if len(cols) == 0 {
		return nil, badRequest("nothing to change")
	}

	var reset []uint64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if from == gov.StatusOpen {
			if err := tx.Model(&gov.Vote{}).Where("proposal_id = ?", p.ID).Pluck("user_id", &reset).Error; err != nil {
				return fmt.Errorf("load votes: %w", err)
			}
			reason := strings.TrimSpace(in.Reason)
			if len(reset) > 0 && reason == "" {
				return badRequest("an edit reason is required once voting has started")
			}
			if err := tx.Where("proposal_id = ?", p.ID).Delete(&gov.Vote{}).Error; err != nil {
				return fmt.Errorf("reset votes: %w", err)
			}
			p.EditReason = reason
			if band.RequireProposalReview {
				p.Status = gov.StatusPendingReview
				p.VotingStartsAt, p.VotingEndsAt = nil, nil
			} else {
				s.openVoting(p, band)
			}
			cols = append(cols, "status", "edit_reason", "voting_starts_at", "voting_ends_at")
		}
		return s.save(tx, p, from, cols...)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, p, actorID, "proposal.edited", map[string]any{
		"fields": cols, "votesReset": len(reset), "reason": p.EditReason,
	})

	var events []Event
	if len(reset) > 0 {
		events = fanout(Event{
			BandID:     band.ID,
			ProposalID: p.ID,
			Type:       EventVotesReset,
			Title:      "Proposal changed, please vote again",
			Message:    fmt.Sprintf("%q was edited and your vote was cleared: %s", p.Title, p.EditReason),
			ActionURL:  actionURL(band.ID, p.ID),
			Priority:   PriorityHigh,
		}, reset...)
	}
	return &Transition{Proposal: p, Events: events}, nil
}

// AdminClose ends a proposal without a tally, for example after moderation.
func (s *Service) AdminClose(ctx context.Context, proposalID, actorID uint64, reason string) (*Transition, error) {
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	actor, err := s.member(ctx, p.BandID, actorID)
	if err != nil {
		return nil, err
	}
	if !members.CanClose(actor.Role) {
		return nil, forbidden("role %s may not close proposals administratively", actor.Role)
	}
	switch p.Status {
	case gov.StatusDraft, gov.StatusPendingReview, gov.StatusOpen, gov.StatusWithdrawn:
	default:
		return nil, badRequest("a proposal in status %s cannot be closed", p.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, badRequest("a closure reason is required")
	}

	from := p.Status
	now := s.now()
	p.Status = gov.StatusClosed
	p.ClosedAt = &now
	p.ClosureReason = reason
	if err := s.save(s.db.WithContext(ctx), p, from, "status", "closed_at", "closure_reason"); err != nil {
		return nil, err
	}
	s.record(ctx, p, actorID, "proposal.admin_closed", map[string]any{"from": from, "reason": reason})

	events := fanout(Event{
		BandID:     p.BandID,
		ProposalID: p.ID,
		Type:       EventClosed,
		Title:      "Proposal closed",
		Message:    fmt.Sprintf("%q was closed by a moderator: %s", p.Title, reason),
		ActionURL:  actionURL(p.BandID, p.ID),
		Priority:   PriorityMedium,
	}, p.AuthorID)
	return &Transition{Proposal: p, Events: events}, nil
}
