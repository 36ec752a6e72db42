package effects

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

// ValidationResult is the outcome of validating a proposal's effects.
// Warnings never block.
type ValidationResult struct {
	Valid    bool         `json:"valid"`
	Errors   []string     `json:"errors"`
	Warnings []string     `json:"warnings"`
	Effects  []gov.Effect `json:"-"`
}

func (r *ValidationResult) fail(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Validator checks declared effects against execution type, subtype
// whitelist and per-handler business rules. With a DB in the validation
// context the handlers are also dry-run in order, so effects may depend on
// the ones before them.
type Validator struct {
	registry *Registry
}

// NewValidator returns a validator backed by registry.
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks raw effects JSON. A nil, empty or "null" raw value means no
// effects were supplied. It never returns a Go error; problems are reported
// in the result.
func (v *Validator) Validate(ctx context.Context, raw json.RawMessage, execType gov.ExecutionType, subtype string, vctx ValidationContext) ValidationResult {
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}
	present := isPresent(raw)

	if !execType.AllowsEffects() {
		if present {
			res.fail(fmt.Sprintf("effects are only allowed for %s and %s proposals, not %s",
				gov.ExecGovernance, gov.ExecAction, execType))
		}
		res.Valid = len(res.Errors) == 0
		return res
	}

	if !present {
		if execType == gov.ExecGovernance {
			res.fail("GOVERNANCE proposals require at least one effect")
		}
		res.Valid = len(res.Errors) == 0
		return res
	}

	if errs := validateAgainst(envelope, raw); len(errs) > 0 {
		res.fail("effects must be an array of {type: string, payload: object} entries")
		return res
	}

	var list []gov.Effect
	if err := json.Unmarshal(raw, &list); err != nil {
		res.fail("effects must be an array of {type: string, payload: object} entries")
		return res
	}

	if len(list) == 0 {
		if execType == gov.ExecGovernance {
			res.fail("GOVERNANCE proposals require at least one effect")
		}
		res.Valid = len(res.Errors) == 0
		return res
	}
	res.Effects = list

	switch allowedTypes, known := v.registry.AllowedEffectsForSubtype(subtype); {
	case subtype == "":
		res.Warnings = append(res.Warnings, "no execution subtype set; effect types are not whitelisted and will be checked at execution")
	case !known:
		res.Warnings = append(res.Warnings, fmt.Sprintf("unknown execution subtype %q; full validation is deferred to execution", subtype))
	default:
		for _, e := range list {
			if !whitelisted(allowedTypes, e.Type) {
				res.fail(fmt.Sprintf("effect type %q is not allowed for subtype %q", e.Type, subtype))
			}
		}
	}

	if vctx.DB == nil {
		for _, e := range list {
			res.Errors = append(res.Errors, v.registry.checkPayload(ctx, e.Type, e.Payload, &vctx)...)
		}
	} else {
		res.Errors = append(res.Errors, v.dryRun(ctx, list, vctx)...)
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// errDryRun rolls back the validation transaction.
var errDryRun = errors.New("effects dry run")

// dryRun checks and applies effects in execution order inside a transaction
// that is always rolled back, so each effect is validated against the writes
// of the ones ordered before it.
func (v *Validator) dryRun(ctx context.Context, list []gov.Effect, vctx ValidationContext) []string {
	var errs []string
	err := vctx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txctx := ValidationContext{BandID: vctx.BandID, DB: tx}
		for _, eff := range SortEffects(list) {
			if msgs := v.registry.checkPayload(ctx, eff.Type, eff.Payload, &txctx); len(msgs) > 0 {
				errs = append(errs, msgs...)
				continue
			}
			ectx := &ExecutionContext{BandID: vctx.BandID, Tx: tx}
			if err := v.registry.execute(ctx, eff, ectx); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %s", eff.Type, err))
			}
		}
		return errDryRun
	})
	if err != nil && !errors.Is(err, errDryRun) {
		errs = append(errs, fmt.Sprintf("effects could not be checked: %s", err))
	}
	return errs
}

// ValidateEffects validates already decoded effects, such as those stored on
// a proposal being resubmitted.
func (v *Validator) ValidateEffects(ctx context.Context, list []gov.Effect, execType gov.ExecutionType, subtype string, vctx ValidationContext) ValidationResult {
	if list == nil {
		return v.Validate(ctx, nil, execType, subtype, vctx)
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return ValidationResult{
			Errors:   []string{"effects could not be encoded"},
			Warnings: []string{},
		}
	}
	return v.Validate(ctx, raw, execType, subtype, vctx)
}

func isPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
