package gov

type (
	BandStatus     string
	Role           string
	MemberStatus   string
	DuesStatus     string
	VotingMethod   string
	ProposalType   string
	ExecutionType  string
	ProposalStatus string
	VoteValue      string
	ReviewAction   string
	ExecStatus     string
)

const (
	BandActive    BandStatus = "ACTIVE"
	BandDissolved BandStatus = "DISSOLVED"
)

// Roles ordered from most to least privileged.
const (
	RoleFounder      Role = "FOUNDER"
	RoleGovernor     Role = "GOVERNOR"
	RoleModerator    Role = "MODERATOR"
	RoleConductor    Role = "CONDUCTOR"
	RoleVotingMember Role = "VOTING_MEMBER"
	RoleObserver     Role = "OBSERVER"
)

var roleRank = map[Role]int{
	RoleFounder:      6,
	RoleGovernor:     5,
	RoleModerator:    4,
	RoleConductor:    3,
	RoleVotingMember: 2,
	RoleObserver:     1,
}

// Rank returns the privilege level of a role; unknown roles rank 0.
func (r Role) Rank() int { return roleRank[r] }

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return roleRank[r] > 0 }

const (
	MemberActive  MemberStatus = "ACTIVE"
	MemberPending MemberStatus = "PENDING"
	MemberLeft    MemberStatus = "LEFT"
	MemberBanned  MemberStatus = "BANNED"
)

const (
	DuesCurrent    DuesStatus = "CURRENT"
	DuesDelinquent DuesStatus = "DELINQUENT"
	DuesExempt     DuesStatus = "EXEMPT"
)

const (
	SimpleMajority  VotingMethod = "SIMPLE_MAJORITY"
	Supermajority66 VotingMethod = "SUPERMAJORITY_66"
	Supermajority75 VotingMethod = "SUPERMAJORITY_75"
	UnanimousVoting VotingMethod = "UNANIMOUS"
)

const (
	TypeGeneral     ProposalType = "GENERAL"
	TypeBudget      ProposalType = "BUDGET"
	TypeProject     ProposalType = "PROJECT"
	TypePolicy      ProposalType = "POLICY"
	TypeMembership  ProposalType = "MEMBERSHIP"
	TypeEvent       ProposalType = "EVENT"
	TypeDissolution ProposalType = "DISSOLUTION"
	TypeAddFounder  ProposalType = "ADD_FOUNDER"
)

// Valid reports whether t is a known proposal type.
func (t ProposalType) Valid() bool {
	switch t {
	case TypeGeneral, TypeBudget, TypeProject, TypePolicy, TypeMembership,
		TypeEvent, TypeDissolution, TypeAddFounder:
		return true
	}
	return false
}

const (
	ExecGovernance ExecutionType = "GOVERNANCE"
	ExecProject    ExecutionType = "PROJECT"
	ExecAction     ExecutionType = "ACTION"
	ExecResolution ExecutionType = "RESOLUTION"
)

// Valid reports whether e is a known execution type.
func (e ExecutionType) Valid() bool {
	switch e {
	case ExecGovernance, ExecProject, ExecAction, ExecResolution:
		return true
	}
	return false
}

// AllowsEffects reports whether proposals of this execution type may carry effects.
func (e ExecutionType) AllowsEffects() bool {
	return e == ExecGovernance || e == ExecAction
}

const (
	StatusDraft         ProposalStatus = "DRAFT"
	StatusPendingReview ProposalStatus = "PENDING_REVIEW"
	StatusOpen          ProposalStatus = "OPEN"
	StatusApproved      ProposalStatus = "APPROVED"
	StatusRejected      ProposalStatus = "REJECTED"
	StatusWithdrawn     ProposalStatus = "WITHDRAWN"
	StatusClosed        ProposalStatus = "CLOSED"
)

const (
	VoteYes     VoteValue = "YES"
	VoteNo      VoteValue = "NO"
	VoteAbstain VoteValue = "ABSTAIN"
)

// Valid reports whether v is a known vote value.
func (v VoteValue) Valid() bool {
	return v == VoteYes || v == VoteNo || v == VoteAbstain
}

const (
	ReviewApproved ReviewAction = "APPROVED"
	ReviewRejected ReviewAction = "REJECTED"
)

const (
	ExecSuccess ExecStatus = "SUCCESS"
	ExecFailed  ExecStatus = "FAILED"
)
