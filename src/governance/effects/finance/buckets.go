package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stake-plus/bandgov/src/governance/effects"
	"github.com/stake-plus/bandgov/src/logging"
	"github.com/stake-plus/bandgov/src/shared/gov"
)

type createBucketPayload struct {
	Name             string               `json:"name"`
	Type             gov.BucketType       `json:"type"`
	Visibility       gov.BucketVisibility `json:"visibility"`
	ManagementPolicy gov.BucketPolicy     `json:"managementPolicy,omitempty"`
}

type createBucket struct{}

func (createBucket) Type() string { return CreateBucket }

func (createBucket) Schema() string {
	return `{
  "type": "object",
  "required": ["name", "type", "visibility"],
  "additionalProperties": false,
  "properties": {
    "name":             {"type": "string", "minLength": 1, "maxLength": 128},
    "type":             {"enum": ["OPERATING", "PROJECT", "SAVINGS", "RESTRICTED"]},
    "visibility":       {"enum": ["OFFICERS_ONLY", "MEMBERS"]},
    "managementPolicy": {"enum": ["OFFICER_TIER", "TREASURER_ONLY"]}
  }
}`
}

func (createBucket) Validate(ctx context.Context, payload json.RawMessage, vctx *effects.ValidationContext) []string {
	p, err := effects.DecodePayload[createBucketPayload](payload)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", CreateBucket, err)}
	}
	if _, err := loadActiveBand(ctx, vctx.DB, vctx.BandID); err != nil {
		return []string{fmt.Sprintf("%s: %v", CreateBucket, err)}
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return []string{CreateBucket + ": bucket name is required"}
	}
	var n int64
	if err := vctx.DB.WithContext(ctx).Model(&gov.Bucket{}).
		Where("band_id = ? AND name = ?", vctx.BandID, name).Count(&n).Error; err != nil {
		return []string{fmt.Sprintf("%s: %v", CreateBucket, err)}
	}
	if n > 0 {
		return []string{fmt.Sprintf("%s: a bucket named %q already exists", CreateBucket, name)}
	}
	return nil
}

func (createBucket) Execute(ctx context.Context, payload json.RawMessage, ectx *effects.ExecutionContext) error {
	p, err := effects.DecodePayload[createBucketPayload](payload)
	if err != nil {
		return err
	}
	policy := p.ManagementPolicy
	if policy == "" {
		policy = gov.PolicyOfficerTier
	}
	name := strings.TrimSpace(p.Name)
	err = ectx.Tx.WithContext(ctx).Create(&gov.Bucket{
		BandID:           ectx.BandID,
		Name:             name,
		Type:             p.Type,
		Visibility:       p.Visibility,
		ManagementPolicy: policy,
		IsActive:         true,
		CreatedByID:      ectx.ExecutedByID,
	}).Error
	if logging.IsDuplicate(err) {
		return fmt.Errorf("a bucket named %q already exists", name)
	}
	return err
}

type bucketPolicyPayload struct {
	BucketID uint64           `json:"bucketId"`
	Policy   gov.BucketPolicy `json:"policy"`
}

type setManagementPolicy struct{}

func (setManagementPolicy) Type() string { return SetBucketManagementPolicy }

func (setManagementPolicy) Schema() string {
	return `{
  "type": "object",
  "required": ["bucketId", "policy"],
  "additionalProperties": false,
  "properties": {
    "bucketId": {"type": "integer", "minimum": 1},
    "policy":   {"enum": ["OFFICER_TIER", "TREASURER_ONLY"]}
  }
}`
}

func (setManagementPolicy) Validate(ctx context.Context, payload json.RawMessage, vctx *effects.ValidationContext) []string {
	p, err := effects.DecodePayload[bucketPolicyPayload](payload)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", SetBucketManagementPolicy, err)}
	}
	b, err := loadBucket(ctx, vctx.DB, vctx.BandID, p.BucketID)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", SetBucketManagementPolicy, err)}
	}
	if !b.IsActive {
		return []string{fmt.Sprintf("%s: bucket %d is inactive", SetBucketManagementPolicy, b.ID)}
	}
	return nil
}

func (setManagementPolicy) Execute(ctx context.Context, payload json.RawMessage, ectx *effects.ExecutionContext) error {
	p, err := effects.DecodePayload[bucketPolicyPayload](payload)
	if err != nil {
		return err
	}
	return ectx.Tx.WithContext(ctx).Model(&gov.Bucket{}).
		Where("id = ? AND band_id = ?", p.BucketID, ectx.BandID).
		Update("management_policy", p.Policy).Error
}

type bucketRefPayload struct {
	BucketID uint64 `json:"bucketId"`
}

type deactivateBucket struct{}

func (deactivateBucket) Type() string { return DeactivateBucket }

func (deactivateBucket) Schema() string {
	return `{
  "type": "object",
  "required": ["bucketId"],
  "additionalProperties": false,
  "properties": {"bucketId": {"type": "integer", "minimum": 1}}
}`
}

func (deactivateBucket) Validate(ctx context.Context, payload json.RawMessage, vctx *effects.ValidationContext) []string {
	p, err := effects.DecodePayload[bucketRefPayload](payload)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", DeactivateBucket, err)}
	}
	b, err := loadBucket(ctx, vctx.DB, vctx.BandID, p.BucketID)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", DeactivateBucket, err)}
	}
	if !b.IsActive {
		return []string{fmt.Sprintf("%s: bucket %d is already inactive", DeactivateBucket, b.ID)}
	}
	return nil
}

func (deactivateBucket) Execute(ctx context.Context, payload json.RawMessage, ectx *effects.ExecutionContext) error {
	p, err := effects.DecodePayload[bucketRefPayload](payload)
	if err != nil {
		return err
	}
	return ectx.Tx.WithContext(ctx).Model(&gov.Bucket{}).
		Where("id = ? AND band_id = ?", p.BucketID, ectx.BandID).
		Update("is_active", false).Error
}
