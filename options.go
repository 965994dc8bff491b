// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"errors"
	"runtime"
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger         *logiface.Logger[logiface.Event]
	clock          func() time.Time
	yield          func()
	name           string
	spinThreshold  time.Duration
	metricsEnabled bool
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (x *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return x.applyLoopFunc(opts)
}

// WithName sets a diagnostic name for the loop, attached as a context field
// to every log event, and exposed via Loop.Name.
func WithName(name string) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.name = name
		return nil
	}}
}

// WithLogger sets the structured logger used by the loop. A nil logger
// (also the default) disables logging; logiface builders are nil-safe.
//
// Implementation-specific loggers can be generified via
// [logiface.Logger.Logger].
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithClock replaces the monotonic clock used for trigger-time arithmetic.
// Defaults to [time.Now], which carries a monotonic reading. Intended for
// tests that need deterministic time.
func WithClock(now func() time.Time) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if now == nil {
			return errors.New(`runloop: nil clock`)
		}
		opts.clock = now
		return nil
	}}
}

// WithYield replaces the cooperative yield used once per cycle and on every
// busy-wait spin. Defaults to [runtime.Gosched]. Intended for tests that
// need to observe or pace the busy-wait path.
func WithYield(yield func()) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if yield == nil {
			return errors.New(`runloop: nil yield`)
		}
		opts.yield = yield
		return nil
	}}
}

// WithSpinThreshold sets the remaining-time boundary below which the loop
// busy-waits instead of performing a bounded wait. Defaults to
// DefaultSpinThreshold. Zero disables busy-waiting entirely.
func WithSpinThreshold(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d < 0 {
			return errors.New(`runloop: negative spin threshold`)
		}
		opts.spinThreshold = d
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Loop.
// When enabled, counters can be accessed via Loop.Metrics.
func WithMetrics(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		clock:         time.Now,
		yield:         runtime.Gosched,
		spinThreshold: DefaultSpinThreshold,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
