package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/poiesic/quarry/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// statusCodePattern matches the status line langchaingo puts in front of
// provider error messages.
var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// classifyError maps a transport error onto the ai error taxonomy.
// The returned error is built from scratch: provider messages can quote the
// submitted key (masked or not), so none of err's text is carried over.
func classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: call timed out", ai.ErrProviderUnavailable)
	}

	if errors.Is(err, openai.ErrEmptyResponse) {
		return ai.ErrEmptyResponse
	}

	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return classifyStatus(code)
	}

	var llmErr *llms.Error
	if errors.As(err, &llmErr) {
		switch llmErr.Code {
		case llms.ErrCodeAuthentication:
			return fmt.Errorf("%w: authentication failed", ai.ErrCredentialRejected)
		case llms.ErrCodeTimeout, llms.ErrCodeCanceled:
			return fmt.Errorf("%w: call timed out", ai.ErrProviderUnavailable)
		default:
			return fmt.Errorf("%w: %s", ai.ErrProviderUnavailable, llmErr.Code)
		}
	}

	return fmt.Errorf("%w: request failed", ai.ErrProviderUnavailable)
}

// classifyStatus maps a non-200 HTTP status to the taxonomy.
func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ai.ErrCredentialRejected, code)
	default:
		return fmt.Errorf("%w: status %d", ai.ErrProviderUnavailable, code)
	}
}
