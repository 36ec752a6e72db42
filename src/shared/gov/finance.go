package gov

import "time"

type (
	BucketType       string
	BucketVisibility string
	BucketPolicy     string
)

const (
	BucketOperating  BucketType = "OPERATING"
	BucketProject    BucketType = "PROJECT"
	BucketSavings    BucketType = "SAVINGS"
	BucketRestricted BucketType = "RESTRICTED"
)

const (
	VisibilityOfficers BucketVisibility = "OFFICERS_ONLY"
	VisibilityMembers  BucketVisibility = "MEMBERS"
)

const (
	// PolicyOfficerTier lets any officer-tier role manage the bucket.
	PolicyOfficerTier BucketPolicy = "OFFICER_TIER"
	// PolicyTreasurerOnly restricts management to the band's treasurers.
	PolicyTreasurerOnly BucketPolicy = "TREASURER_ONLY"
)

// Bucket is a named finance allocation within a band.
type Bucket struct {
	ID               uint64           `gorm:"primaryKey" json:"id"`
	BandID           uint64           `gorm:"uniqueIndex:idx_bucket_band_name,priority:1;not null" json:"bandId"`
	Name             string           `gorm:"uniqueIndex:idx_bucket_band_name,priority:2;size:128;not null" json:"name"`
	Type             BucketType       `gorm:"size:16;not null" json:"type"`
	Visibility       BucketVisibility `gorm:"size:16;not null" json:"visibility"`
	ManagementPolicy BucketPolicy     `gorm:"size:16;not null" json:"managementPolicy"`
	IsActive         bool             `gorm:"not null;default:true" json:"isActive"`
	CreatedByID      uint64           `gorm:"not null" json:"createdById"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Treasurer marks a member as one of the band's treasurers.
type Treasurer struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	BandID    uint64    `gorm:"uniqueIndex:idx_treasurer_band_user,priority:1;not null" json:"bandId"`
	UserID    uint64    `gorm:"uniqueIndex:idx_treasurer_band_user,priority:2;not null" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
