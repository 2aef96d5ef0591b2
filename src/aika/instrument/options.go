// Copyright (c) 2016 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package instrument bundles the ambient logging, metrics, tracing, and
// clock dependencies every core component takes, the way m3db/m3x's
// instrument.Options bundles a *zap.Logger and a tally.Scope.
package instrument

import (
	"github.com/m3db/m3x/clock"
	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// Options bundles the dependencies passed to every core component's
// constructor. The zero value is usable: it no-ops logging, reports
// metrics to a no-op scope, and runs the clock off time.Now.
type Options interface {
	// SetLogger sets the logger.
	SetLogger(value *zap.Logger) Options
	// Logger returns the logger.
	Logger() *zap.Logger

	// SetMetricsScope sets the metrics scope.
	SetMetricsScope(value tally.Scope) Options
	// MetricsScope returns the metrics scope.
	MetricsScope() tally.Scope

	// SetTracer sets the tracer.
	SetTracer(value opentracing.Tracer) Options
	// Tracer returns the tracer.
	Tracer() opentracing.Tracer

	// SetClockOptions sets the clock options.
	SetClockOptions(value clock.Options) Options
	// ClockOptions returns the clock options.
	ClockOptions() clock.Options
}

type options struct {
	logger  *zap.Logger
	scope   tally.Scope
	tracer  opentracing.Tracer
	clockOp clock.Options
}

// NewOptions returns a new Options with no-op defaults.
func NewOptions() Options {
	return &options{
		logger:  zap.NewNop(),
		scope:   tally.NoopScope,
		tracer:  opentracing.NoopTracer{},
		clockOp: clock.NewOptions(),
	}
}

func (o *options) SetLogger(value *zap.Logger) Options {
	opts := *o
	opts.logger = value
	return &opts
}

func (o *options) Logger() *zap.Logger { return o.logger }

func (o *options) SetMetricsScope(value tally.Scope) Options {
	opts := *o
	opts.scope = value
	return &opts
}

func (o *options) MetricsScope() tally.Scope { return o.scope }

func (o *options) SetTracer(value opentracing.Tracer) Options {
	opts := *o
	opts.tracer = value
	return &opts
}

func (o *options) Tracer() opentracing.Tracer { return o.tracer }

func (o *options) SetClockOptions(value clock.Options) Options {
	opts := *o
	opts.clockOp = value
	return &opts
}

func (o *options) ClockOptions() clock.Options { return o.clockOp }
