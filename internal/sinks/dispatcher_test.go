package sinks

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pixrelay/pixrelay/internal/lifecycle"
	"github.com/pixrelay/pixrelay/internal/logging"
	"github.com/pixrelay/pixrelay/internal/models"
)

type fakeSink struct {
	name     string
	enabled  bool
	stages   []lifecycle.Stage
	err      error
	delay    time.Duration
	calls    atomic.Int32
	lastSeen atomic.Pointer[models.PaymentEvent]
}

func (s *fakeSink) Name() string  { return s.name }
func (s *fakeSink) Enabled() bool { return s.enabled }

func (s *fakeSink) Handles(stage lifecycle.Stage) bool {
	for _, st := range s.stages {
		if st == stage {
			return true
		}
	}
	return false
}

func (s *fakeSink) Deliver(ctx context.Context, stage lifecycle.Stage, event *models.PaymentEvent) error {
	s.calls.Add(1)
	s.lastSeen.Store(event)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func testLogger() *logging.Logger {
	return logging.New(slog.LevelError, "text")
}

func allStages() []lifecycle.Stage {
	return []lifecycle.Stage{lifecycle.StageCreated, lifecycle.StageConfirmed}
}

func testEvent() *models.PaymentEvent {
	return &models.PaymentEvent{
		EventType:     "transaction.processed",
		Status:        "paid",
		TransactionID: "tx-1",
		Amount:        1000,
		Tracking:      models.TrackingRecord{UTM: models.UTM{Source: "fb"}},
	}
}

func TestDispatcher_FailureIsolation(t *testing.T) {
	failing := &fakeSink{name: "notification", enabled: true, stages: allStages(), err: errors.New("boom")}
	attribution := &fakeSink{name: "attribution", enabled: true, stages: allStages()}
	ads := &fakeSink{name: "adconversion", enabled: true, stages: []lifecycle.Stage{lifecycle.StageConfirmed}}

	d := NewDispatcher([]Sink{failing, attribution, ads}, nil, testLogger(), time.Second)
	report := d.Dispatch(context.Background(), lifecycle.StageConfirmed, testEvent())

	// The failing sink must not prevent the others from being attempted.
	assert.Equal(t, int32(1), failing.calls.Load())
	assert.Equal(t, int32(1), attribution.calls.Load())
	assert.Equal(t, int32(1), ads.calls.Load())

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 2, report.Delivered)
	assert.Len(t, report.Failures, 1)
	assert.Equal(t, "notification", report.Failures[0].Sink)
}

func TestDispatcher_DisabledSinkSkippedSilently(t *testing.T) {
	disabled := &fakeSink{name: "adconversion", enabled: false, stages: allStages()}
	active := &fakeSink{name: "notification", enabled: true, stages: allStages()}

	d := NewDispatcher([]Sink{disabled, active}, nil, testLogger(), time.Second)
	report := d.Dispatch(context.Background(), lifecycle.StageCreated, testEvent())

	assert.Equal(t, int32(0), disabled.calls.Load())
	assert.Equal(t, int32(1), active.calls.Load())
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Failures)
}

func TestDispatcher_StageRouting(t *testing.T) {
	notification := &fakeSink{name: "notification", enabled: true, stages: allStages()}
	ads := &fakeSink{name: "adconversion", enabled: true, stages: []lifecycle.Stage{lifecycle.StageConfirmed}}

	d := NewDispatcher([]Sink{notification, ads}, nil, testLogger(), time.Second)

	d.Dispatch(context.Background(), lifecycle.StageCreated, testEvent())
	assert.Equal(t, int32(1), notification.calls.Load())
	assert.Equal(t, int32(0), ads.calls.Load(), "conversion sink only fires on confirmed payments")

	d.Dispatch(context.Background(), lifecycle.StageConfirmed, testEvent())
	assert.Equal(t, int32(2), notification.calls.Load())
	assert.Equal(t, int32(1), ads.calls.Load())
}

func TestDispatcher_UnhandledStageDispatchesNothing(t *testing.T) {
	sink := &fakeSink{name: "notification", enabled: true, stages: allStages()}

	d := NewDispatcher([]Sink{sink}, nil, testLogger(), time.Second)
	report := d.Dispatch(context.Background(), lifecycle.StageUnhandled, testEvent())

	assert.Equal(t, int32(0), sink.calls.Load())
	assert.Equal(t, 0, report.Attempted)
}

func TestDispatcher_TimeoutIsIsolatedFailure(t *testing.T) {
	slow := &fakeSink{name: "attribution", enabled: true, stages: allStages(), delay: time.Second}
	fast := &fakeSink{name: "notification", enabled: true, stages: allStages()}

	d := NewDispatcher([]Sink{slow, fast}, nil, testLogger(), 20*time.Millisecond)
	report := d.Dispatch(context.Background(), lifecycle.StageConfirmed, testEvent())

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Delivered)
	assert.Len(t, report.Failures, 1)
	assert.Equal(t, "attribution", report.Failures[0].Sink)
}

func TestDispatcher_EventCarriesReconciledTracking(t *testing.T) {
	sink := &fakeSink{name: "attribution", enabled: true, stages: allStages()}

	d := NewDispatcher([]Sink{sink}, nil, testLogger(), time.Second)
	d.Dispatch(context.Background(), lifecycle.StageConfirmed, testEvent())

	seen := sink.lastSeen.Load()
	assert.Equal(t, "fb", seen.Tracking.UTM.Source)
}
