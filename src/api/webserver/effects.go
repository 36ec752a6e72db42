package webserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/stake-plus/bandgov/src/governance/effects"
	"github.com/stake-plus/bandgov/src/governance/members"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

type Effects struct {
	db        *gorm.DB
	validator *effects.Validator
	logger    *log.Logger
}

func NewEffects(d Deps) Effects {
	return Effects{db: d.DB, validator: d.Validator, logger: d.Logger}
}

// Validate dry-runs effect validation so members can check a draft. Handler
// errors describe band internals, so callers must belong to the band.
func (e Effects) Validate(c *gin.Context) {
	var req struct {
		BandID           uint64          `json:"bandId" binding:"required"`
		ExecutionType    string          `json:"executionType" binding:"required,oneof=GOVERNANCE PROJECT ACTION RESOLUTION"`
		ExecutionSubtype string          `json:"executionSubtype" binding:"max=64"`
		Effects          json.RawMessage `json:"effects"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := members.Find(ctx, e.db, req.BandID, currentUser(c)); err != nil {
		if errors.Is(err, members.ErrNotMember) {
			c.JSON(http.StatusForbidden, gin.H{"err": err.Error()})
			return
		}
		respondErr(c, e.logger, err)
		return
	}

	res := e.validator.Validate(ctx, req.Effects, gov.ExecutionType(req.ExecutionType), req.ExecutionSubtype,
		effects.ValidationContext{BandID: req.BandID, DB: e.db.WithContext(ctx)})
	c.JSON(http.StatusOK, res)
}
