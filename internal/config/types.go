// Package config loads and validates the YAML policy document that drives
// the decode/classify/policy/notify pipeline: program specs, per-instruction
// threshold rules, notification destination credentials, and message
// templates.
package config

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/tierwatch/tierwatch/internal/pkg/types"
)

// DestinationId identifies one of the enumerated outbound notification
// channels. The loader rejects any value outside this set.
type DestinationId string

const (
	DestinationSlack    DestinationId = "slack"
	DestinationDiscord  DestinationId = "discord"
	DestinationTelegram DestinationId = "telegram"
	DestinationTwitter  DestinationId = "twitter"
)

// knownDestinations is the full set of DestinationId values the loader
// accepts in a threshold's destination list.
var knownDestinations = map[DestinationId]struct{}{
	DestinationSlack:    {},
	DestinationDiscord:  {},
	DestinationTelegram: {},
	DestinationTwitter:  {},
}

func (d DestinationId) valid() bool {
	_, ok := knownDestinations[d]
	return ok
}

// AssetBucket identifies which of the three asset-keyed sections
// (stake_pools, lsts, vrts) an InstructionRule was configured under.
type AssetBucket int

const (
	BucketUnknown AssetBucket = iota
	BucketStakePools
	BucketLSTs
	BucketVRTs
)

func (b AssetBucket) String() string {
	switch b {
	case BucketStakePools:
		return "stake_pools"
	case BucketLSTs:
		return "lsts"
	case BucketVRTs:
		return "vrts"
	default:
		return "unknown"
	}
}

// Notification is the description/destinations payload attached to a
// Threshold. Destinations are deduplicated at load time per spec.md §9
// ("behavior when the same destination appears twice ... this spec requires
// set-deduplication within one threshold").
type Notification struct {
	Description  string
	Destinations types.Set[DestinationId]
}

// Threshold is one tier in a ThresholdList: an amount (in human units) and
// the notification fired for every event whose amount is >= this value.
type Threshold struct {
	Value        decimal.Decimal
	Notification Notification
}

// ThresholdList is an ordered sequence of Threshold entries, preserved in
// the order they appear in the YAML document (ascending by convention, but
// the engine never assumes that — it scans the full list on every event).
type ThresholdList []Threshold

// InstructionRule maps asset keys (base58 addresses, meaning depends on the
// bucket — see AssetBucket) to their configured ThresholdList.
type InstructionRule struct {
	Bucket     AssetBucket
	Thresholds map[string]ThresholdList // key: base58 asset address
}

// ProgramSpec is one entry under Config.Programs: the on-chain program
// identity plus the set of instructions this deployment monitors for it.
type ProgramSpec struct {
	ProgramID    solana.PublicKey
	Instructions map[string]InstructionRule // key: instruction name, snake_case
}

// SlackConfig holds Slack webhook destination credentials.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// DiscordConfig holds Discord webhook destination credentials.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// TelegramConfig holds Telegram bot destination credentials.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// TwitterConfig holds OAuth1 credentials for posting to Twitter/X.
type TwitterConfig struct {
	BearerToken       string `yaml:"twitter_bearer_token"`
	APIKey            string `yaml:"twitter_api_key"`
	APISecret         string `yaml:"twitter_api_secret"`
	AccessToken       string `yaml:"twitter_access_token"`
	AccessTokenSecret string `yaml:"twitter_access_token_secret"`
}

// NotificationsConfig holds credentials for every destination kind. A
// destination's fields may be empty strings; that is only an error once a
// configured Threshold actually tries to send through it (spec.md §3
// invariants — absence is a runtime send-time error, not a config-load
// error).
type NotificationsConfig struct {
	Slack    SlackConfig    `yaml:"slack"`
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
	Twitter  TwitterConfig  `yaml:"twitter"`
}

// Config is the fully parsed, validated, immutable policy document.
type Config struct {
	Programs         map[string]ProgramSpec
	Notifications    NotificationsConfig
	ExplorerURL      string
	MessageTemplates map[string]string
}

// Template returns the message template for destination, falling back to
// the mandatory "default" template when no per-destination override exists.
func (c Config) Template(destination DestinationId) string {
	if tpl, ok := c.MessageTemplates[string(destination)]; ok {
		return tpl
	}
	return c.MessageTemplates["default"]
}

// recognizedProgramAliases are the only program aliases spec.md defines.
var recognizedProgramAliases = map[string]struct{}{
	"spl_stake_pool": {},
	"jito_vault":     {},
}

// instructionBuckets pins each recognized instruction name, under each
// program alias, to the asset-bucket kind its rule block must use. This is
// the "config-driven polymorphism" check from spec.md §9: it lets the
// loader reject malformed mixtures (e.g. a deposit_sol rule keyed under
// stake_pools) at parse time instead of at evaluation time.
var instructionBuckets = map[string]map[string]AssetBucket{
	"spl_stake_pool": {
		"increase_validator_stake":             BucketStakePools,
		"decrease_validator_stake_with_reserve": BucketStakePools,
		"deposit_stake":                        BucketLSTs,
		"withdraw_stake":                       BucketLSTs,
		"deposit_sol":                          BucketLSTs,
		"withdraw_sol":                         BucketLSTs,
	},
	"jito_vault": {
		"mint_to":            BucketVRTs,
		"enqueue_withdrawal": BucketVRTs,
	},
}

func expectedBucket(alias, instruction string) (AssetBucket, error) {
	instructions, ok := instructionBuckets[alias]
	if !ok {
		return BucketUnknown, fmt.Errorf("%w: unrecognized program alias %q", ErrConfig, alias)
	}

	bucket, ok := instructions[instruction]
	if !ok {
		return BucketUnknown, fmt.Errorf("%w: unrecognized instruction %q for program %q", ErrConfig, instruction, alias)
	}

	return bucket, nil
}
