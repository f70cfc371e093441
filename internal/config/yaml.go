package config

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.yaml.in/yaml/v3"

	"github.com/tierwatch/tierwatch/internal/pkg/types"
)

// rawConfig mirrors the top-level YAML document shape from spec.md §6
// before semantic validation and conversion into Config.
type rawConfig struct {
	Programs         map[string]rawProgramSpec `yaml:"programs"`
	Notifications    NotificationsConfig       `yaml:"notifications"`
	ExplorerURL      string                    `yaml:"explorer_url"`
	MessageTemplates map[string]string         `yaml:"message_templates"`

	// UsdThresholds is accepted and parsed for forward compatibility but
	// never read — see SPEC_FULL.md §12.1 (open question decision).
	UsdThresholds yaml.Node `yaml:"usd_thresholds"`
}

type rawProgramSpec struct {
	ProgramID    string                        `yaml:"program_id"`
	Instructions map[string]rawInstructionRule `yaml:"instructions"`
}

// rawInstructionRule accepts exactly one of the three asset-bucket keys.
// Populating more than one, or none, is a ConfigError.
type rawInstructionRule struct {
	StakePools map[string]rawThresholdList `yaml:"stake_pools"`
	LSTs       map[string]rawThresholdList `yaml:"lsts"`
	VRTs       map[string]rawThresholdList `yaml:"vrts"`
}

type rawThresholdList struct {
	Thresholds []rawThreshold `yaml:"thresholds"`
}

type rawThreshold struct {
	Value        yaml.Node       `yaml:"value"`
	Notification rawNotification `yaml:"notification"`
}

type rawNotification struct {
	Description  string   `yaml:"description"`
	Destinations []string `yaml:"destinations"`
}

// toInstructionRule converts a parsed rawInstructionRule into the public
// InstructionRule, enforcing that exactly one asset-bucket key was set and
// that it matches the bucket expected for (alias, instructionName).
func (r rawInstructionRule) toInstructionRule(alias, instructionName string) (InstructionRule, error) {
	expected, err := expectedBucket(alias, instructionName)
	if err != nil {
		return InstructionRule{}, err
	}

	present := map[AssetBucket]map[string]rawThresholdList{}
	if r.StakePools != nil {
		present[BucketStakePools] = r.StakePools
	}
	if r.LSTs != nil {
		present[BucketLSTs] = r.LSTs
	}
	if r.VRTs != nil {
		present[BucketVRTs] = r.VRTs
	}

	if len(present) == 0 {
		return InstructionRule{}, fmt.Errorf("%w: instruction %q.%q has no asset-bucket block (expected %s)",
			ErrConfig, alias, instructionName, expected)
	}
	if len(present) > 1 {
		return InstructionRule{}, fmt.Errorf("%w: instruction %q.%q has more than one asset-bucket block",
			ErrConfig, alias, instructionName)
	}

	bucket, raw := soleEntry(present)
	if bucket != expected {
		return InstructionRule{}, fmt.Errorf("%w: instruction %q.%q is keyed under %s, expected %s",
			ErrConfig, alias, instructionName, bucket, expected)
	}

	thresholds := make(map[string]ThresholdList, len(raw))
	for assetKey, rawList := range raw {
		list, err := rawList.toThresholdList()
		if err != nil {
			return InstructionRule{}, fmt.Errorf("%w: asset %q: %w", ErrConfig, assetKey, err)
		}
		thresholds[assetKey] = list
	}

	return InstructionRule{Bucket: bucket, Thresholds: thresholds}, nil
}

func soleEntry[K comparable, V any](m map[K]V) (K, V) {
	for k, v := range m {
		return k, v
	}
	var zk K
	var zv V
	return zk, zv
}

func (r rawThresholdList) toThresholdList() (ThresholdList, error) {
	list := make(ThresholdList, 0, len(r.Thresholds))
	for i, rt := range r.Thresholds {
		threshold, err := rt.toThreshold()
		if err != nil {
			return nil, fmt.Errorf("threshold[%d]: %w", i, err)
		}
		list = append(list, threshold)
	}
	return list, nil
}

func (rt rawThreshold) toThreshold() (Threshold, error) {
	value, err := decimal.NewFromString(rt.Value.Value)
	if err != nil {
		return Threshold{}, fmt.Errorf("%w: invalid threshold value %q: %w", ErrConfig, rt.Value.Value, err)
	}

	if value.IsNegative() {
		return Threshold{}, fmt.Errorf("%w: threshold value %s must not be negative", ErrConfig, value)
	}

	destinations := types.NewSet[DestinationId]()
	for _, d := range rt.Notification.Destinations {
		id := DestinationId(d)
		if !id.valid() {
			return Threshold{}, fmt.Errorf("%w: unknown destination %q", ErrConfig, d)
		}
		destinations.Add(id)
	}

	return Threshold{
		Value: value,
		Notification: Notification{
			Description:  rt.Notification.Description,
			Destinations: destinations,
		},
	}, nil
}
