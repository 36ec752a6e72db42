// Package datatest opens throwaway in-memory databases for tests and seeds
// the bands and members most tests start from.
package datatest

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stake-plus/bandgov/src/shared/data"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated in-memory database private to t. A single
// connection keeps the database alive and serializes writers.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, data.Migrate(db))
	return db
}

// Band creates an active band. Unset governance settings get the usual
// defaults: simple majority, 7 days, 50% quorum, every role but OBSERVER
// votes and proposes, no review.
func Band(t testing.TB, db *gorm.DB, b gov.Band) *gov.Band {
	t.Helper()
	if b.Name == "" {
		b.Name = "The Band"
	}
	if b.Slug == "" {
		b.Slug = b.Name
	}
	if b.Status == "" {
		b.Status = gov.BandActive
	}
	if b.VotingMethod == "" {
		b.VotingMethod = gov.SimpleMajority
	}
	if b.VotingPeriodDays == 0 {
		b.VotingPeriodDays = 7
	}
	if b.QuorumPercentage == 0 {
		b.QuorumPercentage = 50
	}
	officers := []gov.Role{gov.RoleFounder, gov.RoleGovernor, gov.RoleModerator, gov.RoleConductor, gov.RoleVotingMember}
	if b.VotingRoles == nil {
		b.VotingRoles = officers
	}
	if b.ProposalRoles == nil {
		b.ProposalRoles = officers
	}
	require.NoError(t, db.Create(&b).Error)
	if b.RequireProposalReview {
		require.NoError(t, db.Model(&b).Update("require_proposal_review", true).Error)
	}
	return &b
}

// Member adds an active member in good standing.
func Member(t testing.TB, db *gorm.DB, bandID, userID uint64, role gov.Role) *gov.Member {
	t.Helper()
	m := gov.Member{
		BandID:     bandID,
		UserID:     userID,
		Role:       role,
		Status:     gov.MemberActive,
		DuesStatus: gov.DuesCurrent,
	}
	require.NoError(t, db.Create(&m).Error)
	return &m
}

// SetMember updates columns of an existing membership.
func SetMember(t testing.TB, db *gorm.DB, bandID, userID uint64, cols map[string]any) {
	t.Helper()
	require.NoError(t, db.Model(&gov.Member{}).
		Where("band_id = ? AND user_id = ?", bandID, userID).
		Updates(cols).Error)
}
