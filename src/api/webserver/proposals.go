package webserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stake-plus/bandgov/src/governance/proposals"
	"github.com/stake-plus/bandgov/src/shared/gov"
)

type Proposals struct {
	svc        *proposals.Service
	dispatcher Dispatcher
	logger     *log.Logger
	body       *bluemonday.Policy
	plain      *bluemonday.Policy
}

func NewProposals(d Deps) Proposals {
	// Descriptions keep basic markdown-rendered formatting.
	body := bluemonday.StrictPolicy()
	body.AllowElements("p", "br", "strong", "em", "code", "pre", "blockquote")
	body.AllowElements("ul", "ol", "li")
	body.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	body.AllowAttrs("href").OnElements("a")
	body.RequireParseableURLs(true)
	body.AddTargetBlankToFullyQualifiedLinks(true)
	body.RequireNoFollowOnLinks(true)

	return Proposals{
		svc:        d.Service,
		dispatcher: d.Dispatcher,
		logger:     d.Logger,
		body:       body,
		plain:      bluemonday.StrictPolicy(),
	}
}

func (p Proposals) dispatch(events []proposals.Event) {
	if p.dispatcher != nil {
		p.dispatcher.DispatchAsync(events)
	}
}

func (p Proposals) Create(c *gin.Context) {
	bandID, ok := paramID(c, "bandId")
	if !ok {
		return
	}
	var req struct {
		Title            string          `json:"title" binding:"required,max=255"`
		Description      string          `json:"description" binding:"required,max=20000"`
		Type             string          `json:"type"`
		ExecutionType    string          `json:"executionType"`
		ExecutionSubtype string          `json:"executionSubtype" binding:"max=64"`
		Effects          json.RawMessage `json:"effects"`
		SubjectUserID    *uint64         `json:"subjectUserId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	prop, res, err := p.svc.Create(c.Request.Context(), proposals.CreateInput{
		BandID:           bandID,
		AuthorID:         currentUser(c),
		Title:            p.plain.Sanitize(req.Title),
		Description:      p.body.Sanitize(req.Description),
		Type:             gov.ProposalType(req.Type),
		ExecutionType:    gov.ExecutionType(req.ExecutionType),
		ExecutionSubtype: req.ExecutionSubtype,
		Effects:          req.Effects,
		SubjectUserID:    req.SubjectUserID,
	})
	if err != nil {
		if res != nil && !res.Valid {
			c.JSON(http.StatusBadRequest, gin.H{
				"err":      "effects failed validation",
				"errors":   res.Errors,
				"warnings": res.Warnings,
			})
			return
		}
		respondErr(c, p.logger, err)
		return
	}

	out := gin.H{"proposal": prop}
	if res != nil && len(res.Warnings) > 0 {
		out["warnings"] = res.Warnings
	}
	c.JSON(http.StatusCreated, out)
}

func (p Proposals) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	prop, err := p.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, p.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": prop})
}

func (p Proposals) Edit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Title       *string         `json:"title" binding:"omitempty,max=255"`
		Description *string         `json:"description" binding:"omitempty,max=20000"`
		Effects     json.RawMessage `json:"effects"`
		Reason      string          `json:"reason" binding:"max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	in := proposals.EditInput{Effects: req.Effects, Reason: p.plain.Sanitize(req.Reason)}
	if req.Title != nil {
		t := p.plain.Sanitize(*req.Title)
		in.Title = &t
	}
	if req.Description != nil {
		d := p.body.Sanitize(*req.Description)
		in.Description = &d
	}

	tr, err := p.svc.Edit(c.Request.Context(), id, currentUser(c), in)
	if err != nil {
		respondErr(c, p.logger, err)
		return
	}
	p.dispatch(tr.Events)
	c.JSON(http.StatusOK, gin.H{"proposal": tr.Proposal})
}

func (p Proposals) Submit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tr, err := p.svc.Submit(c.Request.Context(), id, currentUser(c))
	if err != nil {
		respondErr(c, p.logger, err)
		return
	}
	p.dispatch(tr.Events)
	c.JSON(http.StatusOK, gin.H{"proposal": tr.Proposal})
}

func (p Proposals) Withdraw(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tr, err := p.svc.Withdraw(c.Request.Context(), id, currentUser(c))
	if err != nil {
		respondErr(c, p.logger, err)
		return
	}
	p.dispatch(tr.Events)
	c.JSON(http.StatusOK, gin.H{"proposal": tr.Proposal})
}

func (p Proposals) Review(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Approve *bool  `json:"approve" binding:"required"`
		Reason  string `json:"reason" binding:"max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	tr, err := p.svc.Review(c.Request.Context(), id, currentUser(c), proposals.ReviewInput{
		Approve: *req.Approve,
		Reason:  p.plain.Sanitize(req.Reason),
	})
	if err != nil {
		respondErr(c, p.logger, err)
		return
	}
	p.dispatch(tr.Events)
	c.JSON(http.StatusOK, gin.H{"proposal": tr.Proposal})
}

func (p Proposals) Close(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ForceClose bool `json:"forceClose"`
	}
	// The body is optional.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	res, err := p.svc.Close(c.Request.Context(), id, currentUser(c), proposals.CloseOptions{ForceClose: req.ForceClose})
	if err != nil {
		respondErr(c, p.logger, err)
		return
	}
	p.dispatch(res.Events)
	c.JSON(http.StatusOK, res)
}

func (p Proposals) AdminClose(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required,max=255"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	tr, err := p.svc.AdminClose(c.Request.Context(), id, currentUser(c), p.plain.Sanitize(req.Reason))
	if err != nil {
		respondErr(c, p.logger, err)
		return
	}
	p.dispatch(tr.Events)
	c.JSON(http.StatusOK, gin.H{"proposal": tr.Proposal})
}
