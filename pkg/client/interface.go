// Package client defines the backends that write ad copy.
package client

import (
	"context"
)

// TextClient completes a prompt with a language model.
type TextClient interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Func adapts a plain function to TextClient.
type Func func(ctx context.Context, model, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, model, prompt string) (string, error) {
	return f(ctx, model, prompt)
}
