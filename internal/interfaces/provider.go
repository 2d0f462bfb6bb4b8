package interfaces

import "context"

// SearchProvider submits one natural-language prompt to an external search
// backend and returns its free-text answer. Implementations enforce their
// own per-call timeout and rate limiting; a timed-out call surfaces as an
// ordinary error.
type SearchProvider interface {
	Search(ctx context.Context, prompt string) (string, error)
	Name() string
}
