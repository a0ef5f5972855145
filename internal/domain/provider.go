package domain

import "context"

// Completer produces a text completion for an ordered list of role-tagged
// messages. Implementations apply their own bounded retry with backoff; an
// error return means retries are exhausted, so callers can distinguish a
// provider failure from a genuine model answer.
type Completer interface {
	Name() string
	Complete(ctx context.Context, messages []Message) (string, error)
}
