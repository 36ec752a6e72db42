// Package proposals implements the proposal lifecycle, vote casting and the
// tally that resolves a proposal when its vote is closed.
package proposals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stake-plus/bandgov/src/governance/audit"
	"github.com/stake-plus/bandgov/src/governance/effects"
	"github.com/stake-plus/bandgov/src/governance/members"
	"github.com/stake-plus/bandgov/src/governance/metrics"
	"github.com/stake-plus/bandgov/src/logging"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

// ReviewerEligibility decides who may review a proposal.
type ReviewerEligibility interface {
	EligibleReviewers(ctx context.Context, bandID, authorID uint64, authorRole gov.Role) ([]uint64, error)
	CanReviewProposal(reviewerRole, authorRole gov.Role, reviewerID, authorID uint64) bool
}

// StandingChecker fails when a member may not take state-advancing actions.
type StandingChecker interface {
	RequireGoodStanding(ctx context.Context, bandID, userID uint64) error
}

// Policy holds the lifecycle limits.
type Policy struct {
	MaxSubmissions     int
	MinRejectReasonLen int
}

// DefaultPolicy returns the stock lifecycle limits.
func DefaultPolicy() Policy {
	return Policy{MaxSubmissions: 3, MinRejectReasonLen: 10}
}

// Deps wires a Service.
type Deps struct {
	DB        *gorm.DB
	Validator *effects.Validator
	Executor  *effects.Executor
	Reviewers ReviewerEligibility
	Standing  StandingChecker
	Audit     audit.Sink
	Logger    *log.Logger
	Policy    Policy
}

// Service is the governance decision engine.
type Service struct {
	db        *gorm.DB
	validator *effects.Validator
	executor  *effects.Executor
	reviewers ReviewerEligibility
	standing  StandingChecker
	audit     audit.Sink
	logger    *log.Logger
	policy    Policy
	now       func() time.Time
}

// NewService builds a Service from its dependencies.
func NewService(d Deps) *Service {
	if d.Audit == nil {
		d.Audit = audit.Discard{}
	}
	if d.Policy.MaxSubmissions <= 0 {
		d.Policy.MaxSubmissions = DefaultPolicy().MaxSubmissions
	}
	if d.Policy.MinRejectReasonLen <= 0 {
		d.Policy.MinRejectReasonLen = DefaultPolicy().MinRejectReasonLen
	}
	return &Service{
		db:        d.DB,
		validator: d.Validator,
		executor:  d.Executor,
		reviewers: d.Reviewers,
		standing:  d.Standing,
		audit:     d.Audit,
		logger:    d.Logger,
		policy:    d.Policy,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get loads a proposal by ID.
func (s *Service) Get(ctx context.Context, id uint64) (*gov.Proposal, error) {
	var p gov.Proposal
	err := s.db.WithContext(ctx).First(&p, id).Error
	if logging.IsNotFound(err) {
		return nil, notFound("proposal %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load proposal %d: %w", id, err)
	}
	return &p, nil
}

// activeBand loads the band of a proposal and refuses dissolved bands.
func (s *Service) activeBand(ctx context.Context, bandID uint64) (*gov.Band, error) {
	band, err := members.Band(ctx, s.db, bandID)
	if errors.Is(err, members.ErrBandNotFound) {
		return nil, notFound("band %d not found", bandID)
	}
	if err != nil {
		return nil, fmt.Errorf("load band %d: %w", bandID, err)
	}
	if band.Status != gov.BandActive {
		return nil, badRequest("band %d has been dissolved", bandID)
	}
	return band, nil
}

// member returns the active membership of userID or a forbidden error.
func (s *Service) member(ctx context.Context, bandID, userID uint64) (*gov.Member, error) {
	m, err := members.Find(ctx, s.db, bandID, userID)
	if errors.Is(err, members.ErrNotMember) {
		return nil, denied(err)
	}
	if err != nil {
		return nil, fmt.Errorf("load member: %w", err)
	}
	return m, nil
}

// roleOf returns the recorded role of userID regardless of membership status.
func (s *Service) roleOf(ctx context.Context, bandID, userID uint64) gov.Role {
	var m gov.Member
	if err := s.db.WithContext(ctx).Where("band_id = ? AND user_id = ?", bandID, userID).First(&m).Error; err != nil {
		return ""
	}
	return m.Role
}

func (s *Service) requireStanding(ctx context.Context, bandID, userID uint64) error {
	if s.standing == nil {
		return nil
	}
	if err := s.standing.RequireGoodStanding(ctx, bandID, userID); err != nil {
		if errors.Is(err, members.ErrNotMember) || errors.Is(err, members.ErrNotInGoodStanding) {
			return denied(err)
		}
		return fmt.Errorf("good standing check: %w", err)
	}
	return nil
}

// save writes the listed columns of p, but only while the stored status is
// still from. A concurrent transition makes it a conflict.
func (s *Service) save(tx *gorm.DB, p *gov.Proposal, from gov.ProposalStatus, cols ...string) error {
	p.UpdatedAt = s.now()
	cols = append(cols, "updated_at")
	res := tx.Model(p).Where("status = ?", from).Select(cols).Updates(p)
	if res.Error != nil {
		return fmt.Errorf("update proposal %d: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return conflict("proposal %d was changed by another request", p.ID)
	}
	if from != p.Status {
		metrics.ObserveTransition(string(from), string(p.Status))
	}
	return nil
}

func (s *Service) record(ctx context.Context, p *gov.Proposal, actorID uint64, action string, meta map[string]any) {
	err := s.audit.Record(ctx, audit.Event{
		BandID:     p.BandID,
		ActorID:    actorID,
		Action:     action,
		EntityType: "proposal",
		EntityID:   p.ID,
		Metadata:   meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", "proposal", p.ID, "action", action, "err", err)
	}
}

// votingMembers lists active members whose role is eligible to vote.
func (s *Service) votingMembers(ctx context.Context, band *gov.Band) ([]gov.Member, error) {
	all, err := members.Active(ctx, s.db, band.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := all[:0]
	for _, m := range all {
		if band.CanVote(m.Role) {
			out = append(out, m)
		}
	}
	return out, nil
}

func userIDs(ms []gov.Member) []uint64 {
	out := make([]uint64, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.UserID)
	}
	return out
}
