package members

import (
	"context"

	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

// Standing checks dues status from the member table.
type Standing struct {
	db *gorm.DB
}

// NewStanding returns a good-standing checker.
func NewStanding(db *gorm.DB) *Standing {
	return &Standing{db: db}
}

// RequireGoodStanding fails when the user is not an active member or their
// dues are delinquent.
func (s *Standing) RequireGoodStanding(ctx context.Context, bandID, userID uint64) error {
	m, err := Find(ctx, s.db, bandID, userID)
	if err != nil {
		return err
	}
	if m.DuesStatus == gov.DuesDelinquent {
		return ErrNotInGoodStanding
	}
	return nil
}
