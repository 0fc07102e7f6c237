package validate

import (
	"fmt"

	"github.com/tessera-labs/weave/pkg/coding"
	"github.com/tessera-labs/weave/pkg/logger"
)

// Thresholds are the confidence tiers driving review classification.
// They must be strictly ordered: AutoApprove > FlagReview > RequireValidation.
type Thresholds struct {
	AutoApprove       float64 `json:"confidence_auto_approve" validate:"gt=0,lte=1"`
	FlagReview        float64 `json:"confidence_flag_review" validate:"gte=0,lte=1"`
	RequireValidation float64 `json:"confidence_require_validation" validate:"gte=0,lte=1"`
}

// DefaultThresholds returns the standard review tiers.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AutoApprove:       0.8,
		FlagReview:        0.5,
		RequireValidation: 0.3,
	}
}

// Check verifies the tier ordering. Misordered thresholds would silently
// approve everything or reject everything, so this fails configuration
// loading rather than the run.
func (t Thresholds) Check() error {
	if !(t.AutoApprove > t.FlagReview && t.FlagReview > t.RequireValidation) {
		return fmt.Errorf(
			"confidence thresholds must be strictly ordered auto_approve > flag_review > require_validation, got %.2f / %.2f / %.2f",
			t.AutoApprove, t.FlagReview, t.RequireValidation)
	}
	return nil
}

// Options configures a validation pass.
type Options struct {
	Thresholds Thresholds
	// RequireEvidence blocks auto-approval of items with zero supporting
	// quotes regardless of confidence.
	RequireEvidence bool
	// AutoRejectUnknown rejects entities typed outside the standard
	// vocabulary outright. Only honored in closed coding mode.
	AutoRejectUnknown bool
}

// classify maps a confidence score to a review status.
func classify(t Thresholds, confidence float64) coding.ReviewStatus {
	switch {
	case confidence >= t.AutoApprove:
		return coding.StatusAutoApproved
	case confidence >= t.FlagReview:
		return coding.StatusFlaggedForReview
	default:
		return coding.StatusRejected
	}
}

// Entities annotates each entity with a review status and returns the
// accepted set. Rejected entities are excluded from the returned slice;
// flagged entities are kept but marked for downstream review.
func Entities(entities []coding.Entity, opts Options) (accepted []coding.Entity, rejected []coding.Entity) {
	for _, e := range entities {
		status := classify(opts.Thresholds, e.Confidence)

		if opts.AutoRejectUnknown && !coding.IsStandardEntityType(e.Type) {
			logger.Debug("[Validate] Rejecting entity with non-standard type", "entity", e.Name, "type", e.Type)
			status = coding.StatusRejected
		}
		if opts.RequireEvidence && len(e.QuoteIDs) == 0 && status == coding.StatusAutoApproved {
			status = coding.StatusFlaggedForReview
		}

		e.Status = status
		if status == coding.StatusRejected {
			rejected = append(rejected, e)
			continue
		}
		accepted = append(accepted, e)
	}
	return accepted, rejected
}

// Codes annotates each code with a review status and returns the
// accepted set.
func Codes(codes []coding.Code, opts Options) (accepted []coding.Code, rejected []coding.Code) {
	for _, c := range codes {
		status := classify(opts.Thresholds, c.Confidence)

		if opts.RequireEvidence && len(c.QuoteIDs) == 0 && status == coding.StatusAutoApproved {
			status = coding.StatusFlaggedForReview
		}

		c.Status = status
		if status == coding.StatusRejected {
			rejected = append(rejected, c)
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted, rejected
}

// Relationships annotates each relationship with a review status and
// returns the accepted set. Relationships whose endpoints were rejected
// are rejected too, so no edge ever references an unpersisted node.
func Relationships(
	relationships []coding.Relationship,
	rejectedEntityIDs map[string]bool,
	opts Options,
) (accepted []coding.Relationship, rejected []coding.Relationship) {
	for _, r := range relationships {
		status := classify(opts.Thresholds, r.Confidence)

		if rejectedEntityIDs[r.SourceID] || rejectedEntityIDs[r.TargetID] {
			logger.Debug("[Validate] Rejecting relationship with rejected endpoint", "label", r.Label)
			status = coding.StatusRejected
		}
		if opts.RequireEvidence && r.QuoteID == "" && status == coding.StatusAutoApproved {
			status = coding.StatusFlaggedForReview
		}

		r.Status = status
		if status == coding.StatusRejected {
			rejected = append(rejected, r)
			continue
		}
		accepted = append(accepted, r)
	}
	return accepted, rejected
}
