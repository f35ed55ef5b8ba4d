package ai

import "context"

// Client sends one prompt pair to a text-completion provider and returns the reply text.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
