package pipeline

import (
	"fmt"

	"github.com/tessera-labs/weave/pkg/consolidate"
	"github.com/tessera-labs/weave/pkg/validate"

	"github.com/go-playground/validator"
)

// Coding approach, controlling whether the model may invent codes or must
// stay inside a pre-supplied codebook.
const (
	ApproachOpen   = "open"
	ApproachClosed = "closed"
	ApproachMixed  = "mixed"
)

// Validation level, mapped onto the validation engine's policies.
const (
	LevelMinimal  = "minimal"
	LevelStandard = "standard"
	LevelRigorous = "rigorous"
)

// Config is the per-run pipeline configuration.
type Config struct {
	ProjectID string `json:"project_id" validate:"required"`

	// MinimumConfidence is the floor below which items are rejected during
	// validation, raising the flag-review tier when it exceeds the default.
	MinimumConfidence float64 `json:"minimum_confidence" validate:"gte=0,lte=1"`

	ValidationLevel string `json:"validation_level" validate:"oneof=minimal standard rigorous"`
	CodingApproach  string `json:"coding_approach" validate:"oneof=open closed mixed"`

	ConsolidationThreshold float64 `json:"consolidation_threshold" validate:"gte=0,lte=1"`
	MinimumCodeFrequency   int     `json:"minimum_code_frequency" validate:"gte=0"`
	MaxTaxonomyDepth       int     `json:"max_taxonomy_depth" validate:"gte=0,lte=10"`

	MaxConcurrentInterviews int  `json:"max_concurrent_interviews" validate:"gte=0,lte=64"`
	UseLLMSpeakerDetection  bool `json:"use_llm_speaker_detection"`

	Thresholds validate.Thresholds `json:"thresholds"`
}

// DefaultConfig returns a runnable configuration for the given project.
func DefaultConfig(projectID string) Config {
	return Config{
		ProjectID:               projectID,
		MinimumConfidence:       0.3,
		ValidationLevel:         LevelStandard,
		CodingApproach:          ApproachMixed,
		ConsolidationThreshold:  consolidate.DefaultThreshold,
		MinimumCodeFrequency:    1,
		MaxTaxonomyDepth:        3,
		MaxConcurrentInterviews: 3,
		Thresholds:              validate.DefaultThresholds(),
	}
}

var configValidator = validator.New()

// Check validates the configuration, including the strict ordering of the
// confidence tiers. It is called at construction time so a misconfigured
// run fails before any LLM call is made.
func (c Config) Check() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	if err := c.Thresholds.Check(); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	return nil
}

// withDefaults fills the numeric knobs whose zero values pass validation.
// ValidationLevel, CodingApproach and Thresholds need no defaults here:
// Check has already rejected their zero values.
func (c Config) withDefaults() Config {
	if c.ConsolidationThreshold <= 0 {
		c.ConsolidationThreshold = consolidate.DefaultThreshold
	}
	if c.MaxTaxonomyDepth <= 0 {
		c.MaxTaxonomyDepth = 3
	}
	if c.MaxConcurrentInterviews <= 0 {
		c.MaxConcurrentInterviews = 3
	}
	// The rejection floor is the flag-review tier; a configured minimum
	// confidence raises it. When the floor reaches the auto-approve tier
	// that tier moves up with it, leaving no flagged band: everything
	// below the floor is rejected, everything at or above it approved.
	if c.MinimumConfidence > c.Thresholds.FlagReview {
		c.Thresholds.FlagReview = c.MinimumConfidence
		if c.Thresholds.AutoApprove < c.Thresholds.FlagReview {
			c.Thresholds.AutoApprove = c.Thresholds.FlagReview
		}
	}
	return c
}

func (c Config) matchMode() consolidate.MatchMode {
	switch c.CodingApproach {
	case ApproachClosed:
		return consolidate.MatchClosed
	case ApproachOpen:
		return consolidate.MatchOpen
	default:
		return consolidate.MatchHybrid
	}
}

func (c Config) validationOptions() validate.Options {
	opts := validate.Options{Thresholds: c.Thresholds}
	switch c.ValidationLevel {
	case LevelStandard:
		opts.RequireEvidence = true
	case LevelRigorous:
		opts.RequireEvidence = true
		opts.AutoRejectUnknown = c.CodingApproach == ApproachClosed
	}
	return opts
}
