package webserver

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stake-plus/bandgov/src/governance/proposals"
	"github.com/stake-plus/bandgov/src/shared/gov"
)

type Votes struct {
	svc    *proposals.Service
	logger *log.Logger
	plain  *bluemonday.Policy
}

func NewVotes(d Deps) Votes {
	return Votes{svc: d.Service, logger: d.Logger, plain: bluemonday.StrictPolicy()}
}

func (v Votes) Cast(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Vote    string `json:"vote" binding:"required,oneof=YES NO ABSTAIN"`
		Comment string `json:"comment" binding:"max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	vote, err := v.svc.CastVote(c.Request.Context(), id, currentUser(c), proposals.VoteInput{
		Value:   gov.VoteValue(req.Vote),
		Comment: v.plain.Sanitize(req.Comment),
	})
	if err != nil {
		respondErr(c, v.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vote": vote})
}

func (v Votes) Summary(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	sum, err := v.svc.VoteSummary(c.Request.Context(), id)
	if err != nil {
		respondErr(c, v.logger, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
