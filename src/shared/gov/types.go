package gov

import "time"

// Band is a self-organizing group and carries its governance configuration.
type Band struct {
	ID               uint64     `gorm:"primaryKey" json:"id"`
	Name             string     `gorm:"size:128;not null" json:"name"`
	Slug             string     `gorm:"size:128;uniqueIndex;not null" json:"slug"`
	Status           BandStatus `gorm:"size:16;not null;default:ACTIVE" json:"status"`
	DissolvedAt      *time.Time `json:"dissolvedAt,omitempty"`
	DiscordChannelID string     `gorm:"size:64" json:"-"`

	VotingMethod          VotingMethod `gorm:"size:32;not null;default:SIMPLE_MAJORITY" json:"votingMethod"`
	VotingPeriodDays      int          `gorm:"not null;default:7" json:"votingPeriodDays"`
	QuorumPercentage      int          `gorm:"not null;default:50" json:"quorumPercentage"`
	VotingRoles           []Role       `gorm:"serializer:json;type:text" json:"votingRoles"`
	ProposalRoles         []Role       `gorm:"serializer:json;type:text" json:"proposalRoles"`
	RequireProposalReview bool         `gorm:"not null;default:false" json:"requireProposalReview"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VotingPeriod is the length of the voting window for new or restarted votes.
func (b *Band) VotingPeriod() time.Duration {
	days := b.VotingPeriodDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// CanVote reports whether role is in the band's voting-eligible set.
func (b *Band) CanVote(role Role) bool {
	return containsRole(b.VotingRoles, role)
}

// CanPropose reports whether role may create proposals in this band.
func (b *Band) CanPropose(role Role) bool {
	return containsRole(b.ProposalRoles, role)
}

func containsRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Member links a user to a band with a role.
type Member struct {
	ID         uint64       `gorm:"primaryKey" json:"id"`
	BandID     uint64       `gorm:"uniqueIndex:idx_member_band_user,priority:1;not null" json:"bandId"`
	UserID     uint64       `gorm:"uniqueIndex:idx_member_band_user,priority:2;not null" json:"userId"`
	Role       Role         `gorm:"size:32;not null" json:"role"`
	Status     MemberStatus `gorm:"size:16;not null;default:ACTIVE" json:"status"`
	DuesStatus DuesStatus   `gorm:"size:16;not null;default:CURRENT" json:"duesStatus"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// Active reports whether the membership is currently active.
func (m *Member) Active() bool { return m.Status == MemberActive }

// Setting represents a configuration setting stored in the database
type Setting struct {
	ID     uint8  `gorm:"primaryKey"`
	Name   string `gorm:"size:32;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null"`
}
