// Package finance registers the finance-bucket governance effects.
package finance

import (
	"context"
	"fmt"

	"github.com/stake-plus/bandgov/src/governance/effects"
	"github.com/stake-plus/bandgov/src/logging"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

// Subtype is the execution subtype that whitelists the finance effects.
const Subtype = "FINANCE_BUCKET_GOVERNANCE_V1"

// Effect types.
const (
	CreateBucket              = "CREATE_BUCKET"
	SetBucketManagementPolicy = "SET_BUCKET_MANAGEMENT_POLICY"
	DeactivateBucket          = "DEACTIVATE_BUCKET"
	AddTreasurer              = "ADD_TREASURER"
	RemoveTreasurer           = "REMOVE_TREASURER"
)

// Register adds the finance handlers and the subtype whitelist to reg.
func Register(reg *effects.Registry) error {
	handlers := []effects.Handler{
		createBucket{},
		setManagementPolicy{},
		deactivateBucket{},
		addTreasurer{},
		removeTreasurer{},
	}
	types := make([]string, 0, len(handlers))
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return err
		}
		types = append(types, h.Type())
	}
	reg.RegisterSubtypeEffects(Subtype, types...)
	return nil
}

func loadActiveBand(ctx context.Context, db *gorm.DB, bandID uint64) (*gov.Band, error) {
	var band gov.Band
	if err := db.WithContext(ctx).First(&band, bandID).Error; err != nil {
		if logging.IsNotFound(err) {
			return nil, fmt.Errorf("band %d not found", bandID)
		}
		return nil, err
	}
	if band.Status != gov.BandActive {
		return nil, fmt.Errorf("band %d is not active", bandID)
	}
	return &band, nil
}

func loadBucket(ctx context.Context, db *gorm.DB, bandID, bucketID uint64) (*gov.Bucket, error) {
	var b gov.Bucket
	err := db.WithContext(ctx).Where("id = ? AND band_id = ?", bucketID, bandID).First(&b).Error
	if logging.IsNotFound(err) {
		return nil, fmt.Errorf("bucket %d not found in this band", bucketID)
	}
	return &b, err
}
