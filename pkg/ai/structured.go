package ai

import (
	"context"
	"time"

	"github.com/tessera-labs/weave/internal/util"
	"github.com/tessera-labs/weave/pkg/logger"
)

// StructuredCallOptions configures GenerateStructured.
type StructuredCallOptions struct {
	// MaxAttempts bounds retries of transient provider errors.
	MaxAttempts int
	// CallTimeout is applied per attempt. Exceeding it counts as a
	// transient failure, not a fatal error for the whole run.
	CallTimeout time.Duration
	// Backoff controls the delay schedule between transient retries.
	Backoff util.BackoffOptions
	// Generate options forwarded to the client.
	Options []GenerateOption
}

const defaultCallTimeout = 2 * time.Minute

// GenerateStructured issues a schema-constrained extraction call with the
// retry policy of the pipeline: transient provider errors are retried with
// exponential backoff up to MaxAttempts; a schema violation is retried
// exactly once with a corrective re-prompt, then surfaced as the failure.
func GenerateStructured(
	ctx context.Context,
	client CodingAIClient,
	name string,
	description string,
	prompt string,
	out any,
	opts StructuredCallOptions,
) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}

	callOnce := func(ctx context.Context, p string) error {
		callCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
		defer cancel()
		return client.GenerateCompletionWithFormat(callCtx, name, description, p, out, opts.Options...)
	}

	attempt := func(ctx context.Context) error {
		err := callOnce(ctx, prompt)
		if err == nil {
			return nil
		}
		if !IsSchemaViolation(err) {
			return err
		}

		logger.Debug("[AI] Schema violation, issuing corrective re-prompt", "call", name)
		corrected := prompt + CorrectiveSuffix
		retryErr := callOnce(ctx, corrected)
		if retryErr == nil {
			return nil
		}
		if IsSchemaViolation(retryErr) {
			return retryErr
		}
		return retryErr
	}

	return util.RetryWithBackoff(ctx, opts.MaxAttempts, opts.Backoff, func(err error) bool {
		// Schema violations already got their single corrective retry
		// inside attempt; only transient provider errors loop here.
		return IsTransient(err)
	}, attempt)
}
