package proposals

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stake-plus/bandgov/src/governance/effects/finance"
	"github.com/stake-plus/bandgov/src/shared/data/datatest"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCloseDeadlineAndAuthority(t *testing.T) {
	e := newEnv(t, gov.Band{})
	p := e.open(t, CreateInput{})

	_, err := e.svc.Close(e.ctx, p.ID, alice, CloseOptions{})
	requireKind(t, err, KindBadRequest)

	_, err = e.svc.Close(e.ctx, p.ID, governor, CloseOptions{ForceClose: true})
	requireKind(t, err, KindForbidden)

	_, err = e.svc.Close(e.ctx, p.ID, bob, CloseOptions{ForceClose: true})
	requireKind(t, err, KindForbidden)

	e.clock.pastDeadline(p)
	_, err = e.svc.Close(e.ctx, p.ID, bob, CloseOptions{})
	requireKind(t, err, KindForbidden)
	_, err = e.svc.Close(e.ctx, p.ID, 99, CloseOptions{})
	requireKind(t, err, KindForbidden)

	assert.Equal(t, gov.StatusOpen, e.reload(t, p.ID).Status)
}

func TestForceCloseByFounder(t *testing.T) {
	e := newEnv(t, gov.Band{})
	p := e.open(t, CreateInput{})
	e.vote(t, p, founder, gov.VoteYes)
	e.vote(t, p, governor, gov.VoteYes)
	e.vote(t, p, bob, gov.VoteNo)

	res, err := e.svc.Close(e.ctx, p.ID, founder, CloseOptions{ForceClose: true})
	require.NoError(t, err)
	assert.Equal(t, gov.StatusApproved, res.Status)
	assert.Equal(t, ReasonPassed, res.Reason)
	assert.Equal(t, 5, res.Quorum.EligibleVoters)
	assert.Equal(t, 3, res.Quorum.TotalVoters)
	assert.Nil(t, res.Execution)
	assert.Empty(t, res.BuiltIn)
}

func TestCloseQuorumNotMet(t *testing.T) {
	e := newEnv(t, gov.Band{})
	p := e.open(t, CreateInput{})
	e.vote(t, p, founder, gov.VoteYes)
	e.vote(t, p, bob, gov.VoteYes)
	e.clock.pastDeadline(p)

	res, err := e.svc.Close(e.ctx, p.ID, alice, CloseOptions{})
	require.NoError(t, err)
	assert.Equal(t, gov.StatusRejected, res.Status)
	assert.Equal(t, ReasonQuorumNotMet, res.Reason)
	assert.False(t, res.Quorum.QuorumMet)
	assert.InDelta(t, 40.0, res.Quorum.Participation, 0.001)

	stored := e.reload(t, p.ID)
	assert.Equal(t, gov.StatusRejected, stored.Status)
	assert.Equal(t, ReasonQuorumNotMet, stored.ClosureReason)
	require.NotNil(t, stored.ClosedAt)

	// Every active member hears about it, observers included.
	assert.Equal(t, []uint64{founder, governor, moderator, alice, bob, observer}, recipients(res.Events, EventRejected))

	// A tally rejection is final.
	_, err = e.svc.Submit(e.ctx, p.ID, alice)
	requireKind(t, err, KindBadRequest)
}

func TestCloseCountsOnlyCurrentVotingMembers(t *testing.T) {
	e := newEnv(t, gov.Band{})
	p := e.open(t, CreateInput{})
	e.vote(t, p, founder, gov.VoteYes)
	e.vote(t, p, governor, gov.VoteYes)
	e.vote(t, p, bob, gov.VoteYes)
	datatest.SetMember(t, e.db, e.band.ID, moderator, map[string]any{"status": gov.MemberLeft})
	e.clock.pastDeadline(p)

	res, err := e.svc.Close(e.ctx, p.ID, founder, CloseOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Quorum.EligibleVoters)
	assert.InDelta(t, 75.0, res.Quorum.Participation, 0.001)
}

func governanceProposal(t *testing.T, e *env, effectsJSON string) *gov.Proposal {
	t.Helper()
	return e.open(t, CreateInput{
		Title:            "Finance changes",
		ExecutionType:    gov.ExecGovernance,
		ExecutionSubtype: finance.Subtype,
		Effects:          json.RawMessage(effectsJSON),
	})
}

func passVote(t *testing.T, e *env, p *gov.Proposal) {
	t.Helper()
	e.vote(t, p, founder, gov.VoteYes)
	e.vote(t, p, governor, gov.VoteYes)
	e.vote(t, p, moderator, gov.VoteYes)
	e.clock.pastDeadline(p)
}

func executionLogCount(t *testing.T, e *env, proposalID uint64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&gov.ExecutionLog{}).Where("proposal_id = ?", proposalID).Count(&n).Error)
	return n
}

func TestCloseExecutesEffectsOnce(t *testing.T) {
	e := newEnv(t, gov.Band{})
	p := governanceProposal(t, e, `[{"type":"CREATE_BUCKET","payload":{"name":"Tour fund","type":"PROJECT","visibility":"MEMBERS"}}]`)
	passVote(t, e, p)

	res, err := e.svc.Close(e.ctx, p.ID, moderator, CloseOptions{})
	require.NoError(t, err)
	assert.Equal(t, gov.StatusApproved, res.Status)
	require.NotNil(t, res.Execution)
	assert.True(t, res.Execution.Success, res.Execution.Error)
	assert.Empty(t, recipients(res.Events, EventExecutionFailed))

	var bucket gov.Bucket
	require.NoError(t, e.db.Where("band_id = ? AND name = ?", e.band.ID, "Tour fund").First(&bucket).Error)
	assert.Equal(t, moderator, bucket.CreatedByID)

	stored := e.reload(t, p.ID)
	assert.NotNil(t, stored.EffectsExecutedAt)

	_, err = e.svc.Close(e.ctx, p.ID, founder, CloseOptions{})
	requireKind(t, err, KindBadRequest)
	assert.EqualValues(t, 1, executionLogCount(t, e, p.ID))
}

func TestConcurrentCloseConflicts(t *testing.T) {
	e := newEnv(t, gov.Band{})
	p := governanceProposal(t, e, `[{"type":"CREATE_BUCKET","payload":{"name":"Tour fund","type":"PROJECT","visibility":"MEMBERS"}}]`)
	passVote(t, e, p)

	_, err := e.svc.Close(e.ctx, p.ID, moderator, CloseOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, executionLogCount(t, e, p.ID))

	// The second closer still reads OPEN; the winner's commit lands just
	// before its guarded write.
	require.NoError(t, e.db.Model(&gov.Proposal{}).Where("id = ?", p.ID).Update("status", gov.StatusOpen).Error)
	fired := false
	require.NoError(t, e.db.Callback().Update().Before("gorm:update").Register("test:close_race", func(db *gorm.DB) {
		if fired || db.Statement.Table != "proposals" {
			return
		}
		fired = true
		db.Session(&gorm.Session{NewDB: true}).Exec("UPDATE proposals SET status = ? WHERE id = ?", gov.StatusApproved, p.ID)
	}))

	_, err = e.svc.Close(e.ctx, p.ID, founder, CloseOptions{})
	requireKind(t, err, KindConflict)
	assert.True(t, fired)
	assert.EqualValues(t, 1, executionLogCount(t, e, p.ID))
	assert.Equal(t, gov.StatusApproved, e.reload(t, p.ID).Status)

	var buckets int64
	require.NoError(t, e.db.Model(&gov.Bucket{}).Where("band_id = ?", e.band.ID).Count(&buckets).Error)
	assert.EqualValues(t, 1, buckets)
}

func TestCloseKeepsApprovalWhenEffectsFail(t *testing.T) {
	e := newEnv(t, gov.Band{})
	b := &gov.Bucket{BandID: e.band.ID, Name: "Gear", Type: gov.BucketOperating,
		Visibility: gov.VisibilityMembers, ManagementPolicy: gov.PolicyOfficerTier, IsActive: true, CreatedByID: founder}
	require.NoError(t, e.db.Create(b).Error)

	p := governanceProposal(t, e, fmt.Sprintf(`[{"type":"DEACTIVATE_BUCKET","payload":{"bucketId":%d}}]`, b.ID))
	passVote(t, e, p)

	// Someone else deactivated it while the vote ran.
	require.NoError(t, e.db.Model(b).Update("is_active", false).Error)

	res, err := e.svc.Close(e.ctx, p.ID, founder, CloseOptions{})
	require.NoError(t, err)
	assert.Equal(t, gov.StatusApproved, res.Status)
	require.NotNil(t, res.Execution)
	assert.False(t, res.Execution.Success)
	assert.Equal(t, finance.DeactivateBucket, res.Execution.FailedEffect)
	assert.Equal(t, []uint64{alice, founder}, recipients(res.Events, EventExecutionFailed))

	stored := e.reload(t, p.ID)
	assert.Equal(t, gov.StatusApproved, stored.Status)
	assert.Nil(t, stored.EffectsExecutedAt)
	assert.NotEmpty(t, stored.ExecutionError)
	assert.EqualValues(t, 1, executionLogCount(t, e, p.ID))
}

func treasurerIDs(t *testing.T, e *env) []uint64 {
	t.Helper()
	var ids []uint64
	require.NoError(t, e.db.Model(&gov.Treasurer{}).Where("band_id = ?", e.band.ID).Order("user_id").Pluck("user_id", &ids).Error)
	return ids
}

func TestCloseHandsOverLastTreasurer(t *testing.T) {
	e := newEnv(t, gov.Band{})
	require.NoError(t, e.db.Create(&gov.Treasurer{BandID: e.band.ID, UserID: founder}).Error)
	require.NoError(t, e.db.Create(&gov.Bucket{BandID: e.band.ID, Name: "Vault", Type: gov.BucketSavings,
		Visibility: gov.VisibilityOfficers, ManagementPolicy: gov.PolicyTreasurerOnly, IsActive: true, CreatedByID: founder}).Error)

	// The removal is only legal after the addition ordered before it.
	p := governanceProposal(t, e, fmt.Sprintf(`[
		{"type":"REMOVE_TREASURER","payload":{"userId":%d},"order":2},
		{"type":"ADD_TREASURER","payload":{"userId":%d},"order":1}
	]`, founder, alice))
	assert.NotNil(t, p.EffectsValidatedAt)
	assert.Equal(t, []uint64{founder}, treasurerIDs(t, e), "validation must not persist effects")

	passVote(t, e, p)
	res, err := e.svc.Close(e.ctx, p.ID, founder, CloseOptions{})
	require.NoError(t, err)
	assert.Equal(t, gov.StatusApproved, res.Status)
	require.NotNil(t, res.Execution)
	assert.True(t, res.Execution.Success, res.Execution.Error)
	assert.Equal(t, []uint64{alice}, treasurerIDs(t, e))
	assert.EqualValues(t, 1, executionLogCount(t, e, p.ID))
}

func TestRejectedProposalDoesNotExecute(t *testing.T) {
	e := newEnv(t, gov.Band{})
	p := governanceProposal(t, e, `[{"type":"CREATE_BUCKET","payload":{"name":"Never","type":"PROJECT","visibility":"MEMBERS"}}]`)
	e.vote(t, p, founder, gov.VoteNo)
	e.vote(t, p, governor, gov.VoteNo)
	e.vote(t, p, moderator, gov.VoteYes)
	e.clock.pastDeadline(p)

	res, err := e.svc.Close(e.ctx, p.ID, alice, CloseOptions{})
	require.NoError(t, err)
	assert.Equal(t, ReasonThresholdNotMet, res.Reason)
	assert.Nil(t, res.Execution)
	assert.Zero(t, executionLogCount(t, e, p.ID))

	var n int64
	require.NoError(t, e.db.Model(&gov.Bucket{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDissolutionClosesEverything(t *testing.T) {
	e := newEnv(t, gov.Band{})
	other := e.open(t, CreateInput{AuthorID: bob, Title: "New logo"})
	draft := e.create(t, CreateInput{AuthorID: governor, Title: "Spring tour"})
	done := e.open(t, CreateInput{Title: "Withdrawn idea"})
	_, err := e.svc.Withdraw(e.ctx, done.ID, alice)
	require.NoError(t, err)

	p := e.open(t, CreateInput{AuthorID: founder, Type: gov.TypeDissolution, Title: "Call it a day"})
	e.vote(t, p, founder, gov.VoteYes)
	e.vote(t, p, alice, gov.VoteYes)
	e.clock.pastDeadline(p)

	res, err := e.svc.Close(e.ctx, p.ID, founder, CloseOptions{})
	require.NoError(t, err)
	assert.Equal(t, gov.StatusApproved, res.Status)
	assert.Equal(t, BuiltInDissolve, res.BuiltIn)
	assert.Empty(t, res.BuiltInError)
	assert.Len(t, recipients(res.Events, EventApproved), 6)
	require.NotEmpty(t, res.Events)
	assert.Equal(t, PriorityHigh, res.Events[0].Priority)

	var band gov.Band
	require.NoError(t, e.db.First(&band, e.band.ID).Error)
	assert.Equal(t, gov.BandDissolved, band.Status)
	assert.NotNil(t, band.DissolvedAt)

	for _, id := range []uint64{other.ID, draft.ID} {
		got := e.reload(t, id)
		assert.Equal(t, gov.StatusClosed, got.Status)
		assert.Equal(t, ReasonBandDissolved, got.ClosureReason)
	}
	assert.Equal(t, gov.StatusWithdrawn, e.reload(t, done.ID).Status)
	assert.Equal(t, gov.StatusApproved, e.reload(t, p.ID).Status)

	_, _, err = e.svc.Create(e.ctx, CreateInput{BandID: e.band.ID, AuthorID: alice, Title: "t", Description: "d"})
	requireKind(t, err, KindBadRequest)
}

func TestDissolutionDissent(t *testing.T) {
	e := newEnv(t, gov.Band{})
	p := e.open(t, CreateInput{AuthorID: founder, Type: gov.TypeDissolution, Title: "Call it a day"})
	e.vote(t, p, founder, gov.VoteYes)
	e.vote(t, p, governor, gov.VoteYes)
	e.vote(t, p, bob, gov.VoteNo)
	e.clock.pastDeadline(p)

	res, err := e.svc.Close(e.ctx, p.ID, founder, CloseOptions{})
	require.NoError(t, err)
	assert.Equal(t, ReasonDissent, res.Reason)
	assert.Empty(t, res.BuiltIn)

	var band gov.Band
	require.NoError(t, e.db.First(&band, e.band.ID).Error)
	assert.Equal(t, gov.BandActive, band.Status)
}

func TestFounderAdditionPromotes(t *testing.T) {
	e := newEnv(t, gov.Band{})
	p := e.open(t, CreateInput{AuthorID: governor, Type: gov.TypeAddFounder, Title: "Bob for founder", SubjectUserID: u64p(bob)})
	e.vote(t, p, founder, gov.VoteYes)
	e.clock.pastDeadline(p)

	res, err := e.svc.Close(e.ctx, p.ID, governor, CloseOptions{})
	require.NoError(t, err)
	assert.Equal(t, gov.StatusApproved, res.Status)
	assert.Equal(t, BuiltInPromoteFounder, res.BuiltIn)
	assert.Empty(t, res.BuiltInError)

	var m gov.Member
	require.NoError(t, e.db.Where("band_id = ? AND user_id = ?", e.band.ID, bob).First(&m).Error)
	assert.Equal(t, gov.RoleFounder, m.Role)
}

func TestFounderAdditionSubjectLeft(t *testing.T) {
	e := newEnv(t, gov.Band{})
	p := e.open(t, CreateInput{AuthorID: governor, Type: gov.TypeAddFounder, Title: "Bob for founder", SubjectUserID: u64p(bob)})
	e.vote(t, p, founder, gov.VoteYes)
	datatest.SetMember(t, e.db, e.band.ID, bob, map[string]any{"status": gov.MemberLeft})
	e.clock.pastDeadline(p)

	res, err := e.svc.Close(e.ctx, p.ID, founder, CloseOptions{})
	require.NoError(t, err)
	assert.Equal(t, gov.StatusApproved, res.Status)
	assert.NotEmpty(t, res.BuiltInError)
	assert.Equal(t, []uint64{governor, founder}, recipients(res.Events, EventExecutionFailed))
	assert.NotEmpty(t, e.reload(t, p.ID).ExecutionError)
}

func TestCloseRefusesNonOpen(t *testing.T) {
	e := newEnv(t, gov.Band{})
	p := e.create(t, CreateInput{})
	_, err := e.svc.Close(e.ctx, p.ID, founder, CloseOptions{ForceClose: true})
	requireKind(t, err, KindBadRequest)

	_, err = e.svc.Close(e.ctx, 4040, founder, CloseOptions{})
	requireKind(t, err, KindNotFound)
}
