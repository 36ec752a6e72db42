package finance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stake-plus/bandgov/src/governance/effects"
	"github.com/stake-plus/bandgov/src/logging"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

type treasurerPayload struct {
	UserID uint64 `json:"userId"`
}

const treasurerSchema = `{
  "type": "object",
  "required": ["userId"],
  "additionalProperties": false,
  "properties": {"userId": {"type": "integer", "minimum": 1}}
}`

func isTreasurer(ctx context.Context, db *gorm.DB, bandID, userID uint64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&gov.Treasurer{}).
		Where("band_id = ? AND user_id = ?", bandID, userID).Count(&n).Error
	return n > 0, err
}

type addTreasurer struct{}

func (addTreasurer) Type() string   { return AddTreasurer }
func (addTreasurer) Schema() string { return treasurerSchema }

func (addTreasurer) Validate(ctx context.Context, payload json.RawMessage, vctx *effects.ValidationContext) []string {
	p, err := effects.DecodePayload[treasurerPayload](payload)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", AddTreasurer, err)}
	}

	var m gov.Member
	err = vctx.DB.WithContext(ctx).
		Where("band_id = ? AND user_id = ?", vctx.BandID, p.UserID).First(&m).Error
	if logging.IsNotFound(err) {
		return []string{fmt.Sprintf("%s: user %d is not a member of this band", AddTreasurer, p.UserID)}
	}
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", AddTreasurer, err)}
	}

	var errs []string
	if !m.Active() {
		errs = append(errs, fmt.Sprintf("%s: user %d is not an active member", AddTreasurer, p.UserID))
	}
	if m.Role.Rank() < gov.RoleVotingMember.Rank() {
		errs = append(errs, fmt.Sprintf("%s: role %s cannot hold the treasurer position", AddTreasurer, m.Role))
	}
	already, err := isTreasurer(ctx, vctx.DB, vctx.BandID, p.UserID)
	if err != nil {
		return append(errs, fmt.Sprintf("%s: %v", AddTreasurer, err))
	}
	if already {
		errs = append(errs, fmt.Sprintf("%s: user %d is already a treasurer", AddTreasurer, p.UserID))
	}
	return errs
}

func (addTreasurer) Execute(ctx context.Context, payload json.RawMessage, ectx *effects.ExecutionContext) error {
	p, err := effects.DecodePayload[treasurerPayload](payload)
	if err != nil {
		return err
	}
	err = ectx.Tx.WithContext(ctx).Create(&gov.Treasurer{BandID: ectx.BandID, UserID: p.UserID}).Error
	if logging.IsDuplicate(err) {
		return fmt.Errorf("user %d is already a treasurer", p.UserID)
	}
	return err
}

type removeTreasurer struct{}

func (removeTreasurer) Type() string   { return RemoveTreasurer }
func (removeTreasurer) Schema() string { return treasurerSchema }

// Validate refuses to remove the last treasurer while any active bucket is
// restricted to treasurer management. During execution this reads policies
// set by earlier effects of the same proposal.
func (removeTreasurer) Validate(ctx context.Context, payload json.RawMessage, vctx *effects.ValidationContext) []string {
	p, err := effects.DecodePayload[treasurerPayload](payload)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", RemoveTreasurer, err)}
	}
	db := vctx.DB.WithContext(ctx)

	ok, err := isTreasurer(ctx, vctx.DB, vctx.BandID, p.UserID)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", RemoveTreasurer, err)}
	}
	if !ok {
		return []string{fmt.Sprintf("%s: user %d is not a treasurer", RemoveTreasurer, p.UserID)}
	}

	var treasurers, restricted int64
	if err := db.Model(&gov.Treasurer{}).Where("band_id = ?", vctx.BandID).Count(&treasurers).Error; err != nil {
		return []string{fmt.Sprintf("%s: %v", RemoveTreasurer, err)}
	}
	if err := db.Model(&gov.Bucket{}).
		Where("band_id = ? AND is_active = ? AND management_policy = ?", vctx.BandID, true, gov.PolicyTreasurerOnly).
		Count(&restricted).Error; err != nil {
		return []string{fmt.Sprintf("%s: %v", RemoveTreasurer, err)}
	}
	if treasurers <= 1 && restricted > 0 {
		return []string{fmt.Sprintf("%s: cannot remove the last treasurer while %d bucket(s) require treasurer management", RemoveTreasurer, restricted)}
	}
	return nil
}

func (removeTreasurer) Execute(ctx context.Context, payload json.RawMessage, ectx *effects.ExecutionContext) error {
	p, err := effects.DecodePayload[treasurerPayload](payload)
	if err != nil {
		return err
	}
	res := ectx.Tx.WithContext(ctx).
		Where("band_id = ? AND user_id = ?", ectx.BandID, p.UserID).
		Delete(&gov.Treasurer{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d is not a treasurer", p.UserID)
	}
	return nil
}
