package proposals

import (
	"fmt"

	"github.com/stake-plus/bandgov/src/shared/gov"
)

// Close reasons.
const (
	ReasonQuorumNotMet    = "QUORUM_NOT_MET"
	ReasonNoVotesCast     = "NO_VOTES_CAST"
	ReasonDissent         = "DISSENT"
	ReasonNoFounderVotes  = "NO_FOUNDER_VOTES"
	ReasonFounderDissent  = "FOUNDER_DISSENT"
	ReasonThresholdNotMet = "THRESHOLD_NOT_MET"
	ReasonPassed          = "PASSED"
)

// Ballot is a recorded vote together with the voter's current role.
type Ballot struct {
	UserID uint64
	Value  gov.VoteValue
	Role   gov.Role
}

// TallyInput is everything the tally needs; it performs no I/O.
type TallyInput struct {
	Type             gov.ProposalType
	Method           gov.VotingMethod
	QuorumPercentage int
	EligibleVoters   int
	Ballots          []Ballot
}

// QuorumInfo describes participation at close time.
type QuorumInfo struct {
	EligibleVoters   int     `json:"eligibleVoters"`
	TotalVoters      int     `json:"totalVoters"`
	TotalVotes       int     `json:"totalVotes"`
	Yes              int     `json:"yes"`
	No               int     `json:"no"`
	Abstain          int     `json:"abstain"`
	Participation    float64 `json:"participation"`
	QuorumPercentage int     `json:"quorumPercentage"`
	QuorumMet        bool    `json:"quorumMet"`
}

// Outcome is the resolution of a tally.
type Outcome struct {
	Status  gov.ProposalStatus `json:"status"`
	Reason  string             `json:"reason"`
	Message string             `json:"message"`
	Quorum  QuorumInfo         `json:"quorum"`
}

func approved(q QuorumInfo, msg string) Outcome {
	return Outcome{Status: gov.StatusApproved, Reason: ReasonPassed, Message: msg, Quorum: q}
}

func rejected(q QuorumInfo, reason, msg string) Outcome {
	return Outcome{Status: gov.StatusRejected, Reason: reason, Message: msg, Quorum: q}
}

// Tally decides a proposal from its ballots.
//
// Dissolution needs every voter to say YES and at least one vote. Founder
// addition only counts founders' ballots. Everything else must reach quorum
// and then the band's voting method on YES/(YES+NO).
func Tally(in TallyInput) Outcome {
	q := QuorumInfo{EligibleVoters: in.EligibleVoters, QuorumPercentage: in.QuorumPercentage}
	for _, b := range in.Ballots {
		switch b.Value {
		case gov.VoteYes:
			q.Yes++
		case gov.VoteNo:
			q.No++
		case gov.VoteAbstain:
			q.Abstain++
		}
	}
	q.TotalVoters = q.Yes + q.No + q.Abstain
	q.TotalVotes = q.Yes + q.No
	// Participation is for reporting; thresholds compare exact integers.
	if in.EligibleVoters > 0 {
		q.Participation = float64(q.TotalVoters) / float64(in.EligibleVoters) * 100
		q.QuorumMet = q.TotalVoters*100 >= in.QuorumPercentage*in.EligibleVoters
	} else {
		q.QuorumMet = in.QuorumPercentage <= 0
	}

	switch in.Type {
	case gov.TypeDissolution:
		return tallyDissolution(q)
	case gov.TypeAddFounder:
		return tallyFounders(q, in.Ballots)
	}

	if !q.QuorumMet {
		return rejected(q, ReasonQuorumNotMet, fmt.Sprintf(
			"quorum not met: %.1f%% participation, %d%% required", q.Participation, in.QuorumPercentage))
	}
	if q.TotalVotes == 0 {
		return rejected(q, ReasonNoVotesCast, "no YES or NO votes were cast")
	}

	ratio := float64(q.Yes) / float64(q.TotalVotes) * 100
	var pass bool
	switch in.Method {
	case gov.Supermajority66:
		pass = q.Yes*100 >= 66*q.TotalVotes
	case gov.Supermajority75:
		pass = q.Yes*100 >= 75*q.TotalVotes
	case gov.UnanimousVoting:
		pass = q.No == 0 && q.Yes > 0
	default:
		pass = q.Yes*2 > q.TotalVotes
	}
	if !pass {
		return rejected(q, ReasonThresholdNotMet, fmt.Sprintf(
			"%.1f%% YES does not satisfy %s", ratio, methodOrDefault(in.Method)))
	}
	return approved(q, fmt.Sprintf("approved with %.1f%% YES", ratio))
}

func methodOrDefault(m gov.VotingMethod) gov.VotingMethod {
	if m == "" {
		return gov.SimpleMajority
	}
	return m
}

func tallyDissolution(q QuorumInfo) Outcome {
	if q.TotalVoters == 0 {
		return rejected(q, ReasonNoVotesCast, "no votes cast")
	}
	if q.No > 0 {
		return rejected(q, ReasonDissent, fmt.Sprintf("dissolution requires unanimity, %d member(s) voted NO", q.No))
	}
	return approved(q, "dissolution approved unanimously")
}

func tallyFounders(q QuorumInfo, ballots []Ballot) Outcome {
	var yes, no, voted int
	for _, b := range ballots {
		if b.Role != gov.RoleFounder {
			continue
		}
		voted++
		switch b.Value {
		case gov.VoteYes:
			yes++
		case gov.VoteNo:
			no++
		}
	}
	if voted == 0 {
		return rejected(q, ReasonNoFounderVotes, "no founder voted")
	}
	if no > 0 {
		return rejected(q, ReasonFounderDissent, fmt.Sprintf("%d founder(s) voted NO", no))
	}
	return approved(q, fmt.Sprintf("approved by %d founder(s)", yes))
}
