package proposals

import (
	"testing"

	"github.com/stake-plus/bandgov/src/shared/gov"
	"github.com/stretchr/testify/assert"
)

func ballots(yes, no, abstain int) []Ballot {
	var out []Ballot
	id := uint64(1)
	add := func(n int, v gov.VoteValue) {
		for i := 0; i < n; i++ {
			out = append(out, Ballot{UserID: id, Value: v, Role: gov.RoleVotingMember})
			id++
		}
	}
	add(yes, gov.VoteYes)
	add(no, gov.VoteNo)
	add(abstain, gov.VoteAbstain)
	return out
}

func TestTallyGeneral(t *testing.T) {
	tests := []struct {
		name     string
		method   gov.VotingMethod
		eligible int
		yes      int
		no       int
		abstain  int
		status   gov.ProposalStatus
		reason   string
	}{
		{"quorum exactly met", gov.SimpleMajority, 10, 5, 0, 0, gov.StatusApproved, ReasonPassed},
		{"quorum missed", gov.SimpleMajority, 10, 4, 0, 0, gov.StatusRejected, ReasonQuorumNotMet},
		{"abstain counts toward quorum", gov.SimpleMajority, 10, 1, 0, 4, gov.StatusApproved, ReasonPassed},
		{"only abstentions", gov.SimpleMajority, 10, 0, 0, 6, gov.StatusRejected, ReasonNoVotesCast},
		{"tie is not a majority", gov.SimpleMajority, 10, 5, 5, 0, gov.StatusRejected, ReasonThresholdNotMet},
		{"simple majority", gov.SimpleMajority, 10, 6, 4, 0, gov.StatusApproved, ReasonPassed},
		{"empty method is simple majority", "", 10, 6, 4, 0, gov.StatusApproved, ReasonPassed},
		{"two thirds", gov.Supermajority66, 3, 2, 1, 0, gov.StatusApproved, ReasonPassed},
		{"below two thirds", gov.Supermajority66, 100, 65, 35, 0, gov.StatusRejected, ReasonThresholdNotMet},
		{"three quarters boundary", gov.Supermajority75, 4, 3, 1, 0, gov.StatusApproved, ReasonPassed},
		{"below three quarters", gov.Supermajority75, 10, 7, 3, 0, gov.StatusRejected, ReasonThresholdNotMet},
		{"unanimous", gov.UnanimousVoting, 10, 9, 0, 1, gov.StatusApproved, ReasonPassed},
		{"unanimous with one no", gov.UnanimousVoting, 10, 9, 1, 0, gov.StatusRejected, ReasonThresholdNotMet},
		{"no eligible voters", gov.SimpleMajority, 0, 0, 0, 0, gov.StatusRejected, ReasonQuorumNotMet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Tally(TallyInput{
				Type:             gov.TypeGeneral,
				Method:           tt.method,
				QuorumPercentage: 50,
				EligibleVoters:   tt.eligible,
				Ballots:          ballots(tt.yes, tt.no, tt.abstain),
			})
			assert.Equal(t, tt.status, out.Status, out.Message)
			assert.Equal(t, tt.reason, out.Reason)
		})
	}
}

func TestTallyExactBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		method   gov.VotingMethod
		quorum   int
		eligible int
		yes      int
		no       int
		status   gov.ProposalStatus
		reason   string
	}{
		{"29 of 100 at 29%", gov.SimpleMajority, 29, 100, 29, 0, gov.StatusApproved, ReasonPassed},
		{"28 of 100 at 29%", gov.SimpleMajority, 29, 100, 28, 0, gov.StatusRejected, ReasonQuorumNotMet},
		{"58 of 100 at 58%", gov.SimpleMajority, 58, 100, 58, 0, gov.StatusApproved, ReasonPassed},
		{"57 of 100 at 57%", gov.SimpleMajority, 57, 100, 57, 0, gov.StatusApproved, ReasonPassed},
		{"29 of 50 at 58%", gov.SimpleMajority, 58, 50, 29, 0, gov.StatusApproved, ReasonPassed},
		{"66 of 100 yes at two thirds", gov.Supermajority66, 10, 100, 66, 34, gov.StatusApproved, ReasonPassed},
		{"29 of 50 yes at two thirds", gov.Supermajority66, 10, 100, 29, 21, gov.StatusRejected, ReasonThresholdNotMet},
		{"75 of 100 yes at three quarters", gov.Supermajority75, 10, 100, 75, 25, gov.StatusApproved, ReasonPassed},
		{"74 of 100 yes at three quarters", gov.Supermajority75, 10, 100, 74, 26, gov.StatusRejected, ReasonThresholdNotMet},
		{"51 of 101 yes", gov.SimpleMajority, 10, 101, 51, 50, gov.StatusApproved, ReasonPassed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Tally(TallyInput{
				Type:             gov.TypeGeneral,
				Method:           tt.method,
				QuorumPercentage: tt.quorum,
				EligibleVoters:   tt.eligible,
				Ballots:          ballots(tt.yes, tt.no, 0),
			})
			assert.Equal(t, tt.status, out.Status, out.Message)
			assert.Equal(t, tt.reason, out.Reason)
		})
	}
}

func TestTallyQuorumInfo(t *testing.T) {
	out := Tally(TallyInput{
		Type:             gov.TypeBudget,
		Method:           gov.SimpleMajority,
		QuorumPercentage: 40,
		EligibleVoters:   8,
		Ballots:          ballots(2, 1, 1),
	})
	q := out.Quorum
	assert.Equal(t, 8, q.EligibleVoters)
	assert.Equal(t, 4, q.TotalVoters)
	assert.Equal(t, 3, q.TotalVotes)
	assert.Equal(t, 2, q.Yes)
	assert.Equal(t, 1, q.No)
	assert.Equal(t, 1, q.Abstain)
	assert.InDelta(t, 50.0, q.Participation, 0.001)
	assert.Equal(t, 40, q.QuorumPercentage)
	assert.True(t, q.QuorumMet)
}

func TestTallyDissolution(t *testing.T) {
	in := TallyInput{Type: gov.TypeDissolution, Method: gov.SimpleMajority, QuorumPercentage: 90, EligibleVoters: 10}

	in.Ballots = ballots(3, 0, 0)
	out := Tally(in)
	assert.Equal(t, gov.StatusApproved, out.Status, "dissolution ignores quorum")

	in.Ballots = ballots(3, 1, 0)
	out = Tally(in)
	assert.Equal(t, gov.StatusRejected, out.Status)
	assert.Equal(t, ReasonDissent, out.Reason)
	assert.Contains(t, out.Message, "1 member(s)")

	in.Ballots = nil
	out = Tally(in)
	assert.Equal(t, ReasonNoVotesCast, out.Reason)
	assert.Equal(t, "no votes cast", out.Message)
}

func TestTallyFounderAddition(t *testing.T) {
	f := func(id uint64, v gov.VoteValue) Ballot { return Ballot{UserID: id, Value: v, Role: gov.RoleFounder} }
	m := func(id uint64, v gov.VoteValue) Ballot { return Ballot{UserID: id, Value: v, Role: gov.RoleVotingMember} }
	in := TallyInput{Type: gov.TypeAddFounder, QuorumPercentage: 50, EligibleVoters: 10}

	in.Ballots = []Ballot{f(1, gov.VoteYes), f(2, gov.VoteYes), m(3, gov.VoteNo)}
	assert.Equal(t, gov.StatusApproved, Tally(in).Status, "non-founder ballots do not count")

	in.Ballots = []Ballot{m(3, gov.VoteYes)}
	assert.Equal(t, ReasonNoFounderVotes, Tally(in).Reason)

	in.Ballots = []Ballot{f(1, gov.VoteYes), f(2, gov.VoteNo)}
	assert.Equal(t, ReasonFounderDissent, Tally(in).Reason)

	in.Ballots = []Ballot{f(1, gov.VoteAbstain)}
	assert.Equal(t, gov.StatusApproved, Tally(in).Status)

	// A ballot from someone no longer active carries no role.
	in.Ballots = []Ballot{{UserID: 9, Value: gov.VoteYes}}
	assert.Equal(t, ReasonNoFounderVotes, Tally(in).Reason)
}
