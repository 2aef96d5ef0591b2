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

// Package config holds the ambient, YAML-loadable defaults a hosting
// application seeds the core with at startup: default filter
// configurations per data type and subscription/pipeline tuning knobs.
// Loading from a file, watching for changes, and wiring a CLI remain the
// hosting application's job; this package only parses and validates.
package config

import (
	"time"

	validator "gopkg.in/validator.v2"
	yaml "gopkg.in/yaml.v2"

	"github.com/lulzzz/aika/src/aika/filter"
)

// PipelineConfig holds per-tag executor settings for the WritePipeline. The
// pipeline package does not read it: its executors use a fixed job queue
// capacity of 64.
type PipelineConfig struct {
	JobQueueCapacity int `yaml:"jobQueueCapacity" validate:"min=1"`
}

// SubscriptionConfig holds SubscriptionHub settings. The subscription
// package does not read it: NewHub always uses DefaultMailboxCapacity and
// DefaultMaxConsecutiveFailures.
type SubscriptionConfig struct {
	MailboxCapacity        int `yaml:"mailboxCapacity" validate:"min=1"`
	MaxConsecutiveFailures int `yaml:"maxConsecutiveFailures" validate:"min=1"`
}

// TagDefaults is the default FilterConfig pair applied to newly created
// tags of a given data type absent explicit overrides.
type TagDefaults struct {
	Exception   filter.Config `yaml:"exception"`
	Compression filter.Config `yaml:"compression"`
}

// Defaults is the root ambient configuration document.
type Defaults struct {
	Pipeline     PipelineConfig      `yaml:"pipeline"`
	Subscription SubscriptionConfig  `yaml:"subscription"`
	Numeric      TagDefaults         `yaml:"numericDefaults"`
	Discrete     TagDefaults         `yaml:"discreteDefaults"`
}

// DefaultConfig returns the built-in defaults used when no YAML document is
// supplied.
func DefaultConfig() Defaults {
	return Defaults{
		Pipeline: PipelineConfig{JobQueueCapacity: 64},
		Subscription: SubscriptionConfig{
			MailboxCapacity:        256,
			MaxConsecutiveFailures: 5,
		},
		Numeric: TagDefaults{
			Exception:   filter.Config{Enabled: true, DeviationKind: filter.Absolute, Limit: 0, Window: time.Hour},
			Compression: filter.Config{Enabled: true, DeviationKind: filter.Absolute, Limit: 0, Window: time.Hour},
		},
		Discrete: TagDefaults{
			Exception:   filter.Config{Enabled: true, Window: time.Hour},
			Compression: filter.Config{Enabled: true, Window: time.Hour},
		},
	}
}

// Load parses and validates a YAML document into Defaults, starting from
// DefaultConfig so an omitted section keeps its built-in value.
func Load(data []byte) (Defaults, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Defaults{}, err
	}
	if err := validator.Validate(cfg); err != nil {
		return Defaults{}, err
	}
	return cfg, nil
}
