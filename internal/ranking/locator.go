package ranking

import (
	"context"
	"errors"
	"log"
)

// AttemptFunc runs the scorer with one candidate executable
type AttemptFunc func(ctx context.Context, executable string) (*InvocationResult, error)

// Located is the outcome of a locator run that reached an installed executable
type Located struct {
	Executable string
	Result     *InvocationResult
	// Tried is every candidate attempted, in order, including Executable
	Tried []string
}

// Locate tries candidates strictly in order. A candidate that cannot be started because it
// is absent or not executable falls through to the next one. Any other outcome, success or
// failure, ends the search: a scorer that ran and broke is reported, not masked by retrying
// an alternate.
func Locate(ctx context.Context, candidates []string, attempt AttemptFunc) (*Located, error) {
	tried := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		tried = append(tried, candidate)

		result, err := attempt(ctx, candidate)
		var missing *missingExecutableError
		if errors.As(err, &missing) {
			log.Printf(`{"level":"debug","message":"Candidate executable unavailable","candidate":"%s","error":"%v"}`, candidate, missing.err)
			continue
		}

		return &Located{Executable: candidate, Result: result, Tried: tried}, err
	}

	return nil, &Error{
		Kind:       KindExecutableNotFound,
		Message:    "no scorer executable found",
		Candidates: tried,
	}
}
