package sinks

import (
	"context"

	"github.com/pixrelay/pixrelay/internal/lifecycle"
	"github.com/pixrelay/pixrelay/internal/models"
)

// Sink is an external, write-only consumer of lifecycle events. A sink whose
// credentials are absent reports Enabled() == false and is skipped without
// being treated as an error.
type Sink interface {
	Name() string
	Enabled() bool
	Handles(stage lifecycle.Stage) bool
	Deliver(ctx context.Context, stage lifecycle.Stage, event *models.PaymentEvent) error
}

// SinkFailure records one isolated delivery failure.
type SinkFailure struct {
	Sink string
	Err  error
}

// DispatchReport summarizes one fan-out: how many sinks were attempted,
// delivered, skipped as disabled or out of stage, and which ones failed.
type DispatchReport struct {
	Attempted int
	Delivered int
	Skipped   int
	Failures  []SinkFailure
}
