package effects

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stake-plus/bandgov/src/governance/metrics"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

// ExecutionResult reports one execution attempt. On failure nothing was
// committed, so EffectsExecuted is empty and FailedEffect names the culprit.
type ExecutionResult struct {
	Success         bool         `json:"success"`
	EffectsExecuted []gov.Effect `json:"effectsExecuted"`
	Error           string       `json:"error,omitempty"`
	FailedEffect    string       `json:"failedEffect,omitempty"`
}

// Executor applies approved effects atomically.
type Executor struct {
	db       *gorm.DB
	registry *Registry
	logger   *log.Logger
	now      func() time.Time
}

// NewExecutor returns an executor writing through db.
func NewExecutor(db *gorm.DB, registry *Registry, logger *log.Logger) *Executor {
	return &Executor{db: db, registry: registry, logger: logger, now: time.Now}
}

// SortEffects returns a copy of list ordered by Order ascending; ties keep
// their declared position.
func SortEffects(list []gov.Effect) []gov.Effect {
	out := append([]gov.Effect(nil), list...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortKey() < out[j].SortKey() })
	return out
}

// Execute runs every effect inside one transaction. Each handler re-validates
// against the live transaction before executing, because band state may have
// changed since the proposal was created. Any failure rolls back all effects.
// Callers outside tests should use ExecuteAndLog.
func (e *Executor) Execute(ctx context.Context, list []gov.Effect, ectx ExecutionContext) ExecutionResult {
	sorted := SortEffects(list)
	var (
		executed []gov.Effect
		failed   string
	)

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, eff := range sorted {
			if err := e.apply(ctx, tx, eff, ectx); err != nil {
				failed = eff.Type
				return err
			}
			executed = append(executed, eff)
		}
		return nil
	})

	if err != nil {
		e.logger.Warn("effects rolled back",
			"proposal", ectx.ProposalID, "failed", failed, "ranBeforeFailure", len(executed), "err", err)
		return ExecutionResult{
			Success:         false,
			EffectsExecuted: []gov.Effect{},
			Error:           err.Error(),
			FailedEffect:    failed,
		}
	}
	if executed == nil {
		executed = []gov.Effect{}
	}
	return ExecutionResult{Success: true, EffectsExecuted: executed}
}

func (e *Executor) apply(ctx context.Context, tx *gorm.DB, eff gov.Effect, ectx ExecutionContext) error {
	vctx := &ValidationContext{BandID: ectx.BandID, DB: tx}
	if errs := e.registry.checkPayload(ctx, eff.Type, eff.Payload, vctx); len(errs) > 0 {
		return fmt.Errorf("effect %s no longer valid: %s", eff.Type, strings.Join(errs, "; "))
	}

	run := ectx
	run.Tx = tx
	if err := e.registry.execute(ctx, eff, &run); err != nil {
		return fmt.Errorf("effect %s failed: %w", eff.Type, err)
	}
	return nil
}

// ExecuteAndLog is the only path by which stored effects reach the data
// store. It re-checks the stored shape, executes, writes exactly one
// ExecutionLog and stamps the proposal with the outcome.
func (e *Executor) ExecuteAndLog(ctx context.Context, p *gov.Proposal, executedByID uint64) ExecutionResult {
	var res ExecutionResult
	if msg := checkStored(p.Effects); msg != "" {
		res = ExecutionResult{Success: false, EffectsExecuted: []gov.Effect{}, Error: msg}
	} else {
		res = e.Execute(ctx, p.Effects, ExecutionContext{
			BandID:       p.BandID,
			ProposalID:   p.ID,
			ExecutedByID: executedByID,
		})
	}

	entry := gov.ExecutionLog{
		ProposalID:       p.ID,
		Subtype:          p.ExecutionSubtype,
		EffectsSubmitted: p.Effects,
		EffectsExecuted:  res.EffectsExecuted,
		EffectsDigest:    Digest(p.Effects),
		Status:           gov.ExecSuccess,
		Error:            res.Error,
		ExecutedByID:     executedByID,
	}
	if !res.Success {
		entry.Status = gov.ExecFailed
	}

	db := e.db.WithContext(ctx)
	if err := db.Create(&entry).Error; err != nil {
		e.logger.Error("execution log write failed", "proposal", p.ID, "err", err)
	}

	now := e.now()
	updates := map[string]any{}
	if res.Success {
		p.EffectsExecutedAt = &now
		p.ExecutionError = ""
		updates["effects_executed_at"] = now
		updates["execution_error"] = ""
	} else {
		p.ExecutionError = res.Error
		updates["execution_error"] = res.Error
	}
	if err := db.Model(&gov.Proposal{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		e.logger.Error("stamping execution outcome failed", "proposal", p.ID, "err", err)
	}

	metrics.ObserveExecution(res.Success)
	return res
}

func checkStored(list []gov.Effect) string {
	for i, eff := range list {
		payload := bytes.TrimSpace(eff.Payload)
		if eff.Type == "" || len(payload) == 0 || payload[0] != '{' {
			return fmt.Sprintf("stored effect %d is malformed", i)
		}
	}
	return ""
}
