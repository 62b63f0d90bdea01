package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"docuchat/internal/model"
)

var (
	ErrNoCandidates        = errors.New("no model candidates configured")
	ErrAllCandidatesFailed = errors.New("all model candidates failed")
)

type Generator interface {
	Generate(ctx context.Context, modelName string, req *model.ModelRequest) (string, error)
}

// ModelInvoker walks an ordered list of model identifiers and returns the
// first successful result. Each identifier is tried exactly once; the call
// fails only when every candidate has failed, surfacing the last error.
type ModelInvoker struct {
	generator      Generator
	candidates     []string
	perCallTimeout time.Duration
}

func NewModelInvoker(generator Generator, candidates []string, perCallTimeout time.Duration) *ModelInvoker {
	if perCallTimeout <= 0 {
		perCallTimeout = 90 * time.Second
	}
	return &ModelInvoker{
		generator:      generator,
		candidates:     candidates,
		perCallTimeout: perCallTimeout,
	}
}

// Generate returns the answer text and the identifier that produced it.
func (inv *ModelInvoker) Generate(ctx context.Context, req *model.ModelRequest) (string, string, error) {
	if len(inv.candidates) == 0 {
		return "", "", ErrNoCandidates
	}

	var lastErr error
	for _, candidate := range inv.candidates {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, inv.perCallTimeout)
		text, err := inv.generator.Generate(callCtx, candidate, req)
		cancel()
		if err == nil {
			return text, candidate, nil
		}

		lastErr = err
		logrus.WithField("model", candidate).WithError(err).Warn("model candidate failed, trying next")
	}

	return "", "", fmt.Errorf("%w: %v", ErrAllCandidatesFailed, lastErr)
}
