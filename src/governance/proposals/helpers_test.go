package proposals

import (
	"context"
	"testing"
	"time"

	"github.com/stake-plus/bandgov/src/governance/audit"
	"github.com/stake-plus/bandgov/src/governance/effects"
	"github.com/stake-plus/bandgov/src/governance/effects/finance"
	"github.com/stake-plus/bandgov/src/governance/members"
	"github.com/stake-plus/bandgov/src/logging"
	"github.com/stake-plus/bandgov/src/shared/data/datatest"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	founder   uint64 = 1
	governor  uint64 = 2
	moderator uint64 = 3
	alice     uint64 = 4
	bob       uint64 = 5
	observer  uint64 = 6
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func (c *clock) pastDeadline(p *gov.Proposal) { c.t = p.VotingEndsAt.Add(time.Second) }

type env struct {
	db    *gorm.DB
	svc   *Service
	band  *gov.Band
	clock *clock
	ctx   context.Context
}

// newEnv seeds a band whose five officers and members vote; the observer does not.
func newEnv(t *testing.T, band gov.Band) *env {
	t.Helper()
	db := datatest.Open(t)
	reg := effects.NewRegistry()
	require.NoError(t, finance.Register(reg))

	b := datatest.Band(t, db, band)
	datatest.Member(t, db, b.ID, founder, gov.RoleFounder)
	datatest.Member(t, db, b.ID, governor, gov.RoleGovernor)
	datatest.Member(t, db, b.ID, moderator, gov.RoleModerator)
	datatest.Member(t, db, b.ID, alice, gov.RoleVotingMember)
	datatest.Member(t, db, b.ID, bob, gov.RoleVotingMember)
	datatest.Member(t, db, b.ID, observer, gov.RoleObserver)

	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(Deps{
		DB:        db,
		Validator: effects.NewValidator(reg),
		Executor:  effects.NewExecutor(db, reg, logging.Discard()),
		Reviewers: members.NewReviewers(db),
		Standing:  members.NewStanding(db),
		Audit:     audit.NewStore(db),
		Logger:    logging.Discard(),
	}).WithClock(c.now)

	return &env{db: db, svc: svc, band: b, clock: c, ctx: context.Background()}
}

func (e *env) create(t *testing.T, in CreateInput) *gov.Proposal {
	t.Helper()
	if in.BandID == 0 {
		in.BandID = e.band.ID
	}
	if in.AuthorID == 0 {
		in.AuthorID = alice
	}
	if in.Title == "" {
		in.Title = "Buy a new van"
	}
	if in.Description == "" {
		in.Description = "The old one broke down on tour."
	}
	p, _, err := e.svc.Create(e.ctx, in)
	require.NoError(t, err)
	return p
}

// open creates a proposal and submits it straight into voting.
func (e *env) open(t *testing.T, in CreateInput) *gov.Proposal {
	t.Helper()
	p := e.create(t, in)
	tr, err := e.svc.Submit(e.ctx, p.ID, p.AuthorID)
	require.NoError(t, err)
	require.Equal(t, gov.StatusOpen, tr.Proposal.Status)
	return tr.Proposal
}

func (e *env) vote(t *testing.T, p *gov.Proposal, userID uint64, v gov.VoteValue) {
	t.Helper()
	_, err := e.svc.CastVote(e.ctx, p.ID, userID, VoteInput{Value: v})
	require.NoError(t, err)
}

func (e *env) reload(t *testing.T, id uint64) *gov.Proposal {
	t.Helper()
	p, err := e.svc.Get(e.ctx, id)
	require.NoError(t, err)
	return p
}

func (e *env) voteCount(t *testing.T, id uint64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&gov.Vote{}).Where("proposal_id = ?", id).Count(&n).Error)
	return n
}

func recipients(events []Event, typ EventType) []uint64 {
	var out []uint64
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev.UserID)
		}
	}
	return out
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), err.Error())
}
