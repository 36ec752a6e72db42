// Package members provides the membership collaborators the decision engine
// depends on: role privileges, good standing and reviewer eligibility.
package members

import (
	"context"
	"errors"

	"github.com/stake-plus/bandgov/src/logging"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

var (
	ErrNotMember         = errors.New("not an active member of this band")
	ErrNotInGoodStanding = errors.New("membership dues are delinquent")
	ErrBandNotFound      = errors.New("band not found")
)

// Find returns the active membership of userID in bandID.
func Find(ctx context.Context, db *gorm.DB, bandID, userID uint64) (*gov.Member, error) {
	var m gov.Member
	err := db.WithContext(ctx).
		Where("band_id = ? AND user_id = ?", bandID, userID).
		First(&m).Error
	if logging.IsNotFound(err) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	if !m.Active() {
		return nil, ErrNotMember
	}
	return &m, nil
}

// Active lists the active members of a band.
func Active(ctx context.Context, db *gorm.DB, bandID uint64) ([]gov.Member, error) {
	var out []gov.Member
	err := db.WithContext(ctx).
		Where("band_id = ? AND status = ?", bandID, gov.MemberActive).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// Band loads a band by ID.
func Band(ctx context.Context, db *gorm.DB, bandID uint64) (*gov.Band, error) {
	var b gov.Band
	err := db.WithContext(ctx).First(&b, bandID).Error
	if logging.IsNotFound(err) {
		return nil, ErrBandNotFound
	}
	return &b, err
}

// CanClose reports whether role may close proposals it did not author.
func CanClose(role gov.Role) bool {
	return role == gov.RoleFounder || role == gov.RoleGovernor || role == gov.RoleModerator
}

// CanForceClose reports whether role may close a vote before its deadline.
func CanForceClose(role gov.Role) bool {
	return role == gov.RoleFounder
}

// IsReviewerRole reports whether role belongs to the review tier.
func IsReviewerRole(role gov.Role) bool {
	return role == gov.RoleFounder || role == gov.RoleGovernor || role == gov.RoleModerator
}
