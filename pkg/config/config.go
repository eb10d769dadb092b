/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config defines the reconciler's flag/environment-driven
// configuration surface.
package config

import (
	"flag"
	"time"

	"github.com/awslabs/operatorpkg/env"
	"github.com/go-playground/validator/v10"
)

// Config is the process-wide configuration for cmd/controller.
type Config struct {
	ReconciliationDelay   time.Duration `validate:"required,min=1s"`
	ReconciliationTimeout time.Duration `validate:"required,gtfield=ReconciliationDelay"`
	ReconciliationWorkers int           `validate:"required,min=1"`
	MetricsPort           int           `validate:"required,min=1,max=65535"`
	HealthProbePort       int           `validate:"required,min=1,max=65535"`
	LogLevel              string        `validate:"required,oneof=debug info error"`
}

const (
	defaultReconciliationDelay   = 30 * time.Second
	defaultReconciliationWorkers = 20
	defaultMetricsPort           = 8080
	defaultHealthProbePort       = 8081
	defaultLogLevel              = "info"
)

// Parse registers this package's flags on fs (use flag.CommandLine for the
// process's default flag set) with environment-variable defaults, then
// parses args. It does not validate; call Validate separately once flags are
// parsed, matching the fail-fast-at-startup idiom the rest of this codebase
// carries forward from its teacher.
//
// ReconciliationTimeout defaults to 10x the resolved ReconciliationDelay, so
// an operator who overrides the delay without also setting the timeout still
// gets a timeout proportional to what they're actually running with; its
// flag/env default is left unset (zero) and resolved after ReconciliationDelay
// is known.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	c := &Config{}
	fs.DurationVar(&c.ReconciliationDelay, "reconciliation-delay",
		env.WithDefaultDuration("RECONCILIATION_DELAY", defaultReconciliationDelay),
		"Minimum interval between the start of consecutive reconciliation ticks")
	fs.DurationVar(&c.ReconciliationTimeout, "reconciliation-timeout",
		env.WithDefaultDuration("RECONCILIATION_TIMEOUT", 0),
		"Upper bound on the wall-clock duration of a single reconciliation tick (default: 10x reconciliation-delay)")
	fs.IntVar(&c.ReconciliationWorkers, "reconciliation-workers",
		env.WithDefaultInt("RECONCILIATION_WORKERS", defaultReconciliationWorkers),
		"Bounded worker pool size for per-association fan-out within a tick")
	fs.IntVar(&c.MetricsPort, "metrics-port",
		env.WithDefaultInt("METRICS_PORT", defaultMetricsPort),
		"The port the metrics endpoint binds to")
	fs.IntVar(&c.HealthProbePort, "health-probe-port",
		env.WithDefaultInt("HEALTH_PROBE_PORT", defaultHealthProbePort),
		"The port the health probe endpoint binds to")
	fs.StringVar(&c.LogLevel, "log-level",
		env.WithDefaultString("LOG_LEVEL", defaultLogLevel),
		"Logging verbosity: debug, info, or error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if c.ReconciliationTimeout == 0 {
		c.ReconciliationTimeout = 10 * c.ReconciliationDelay
	}
	return c, nil
}

// Validate applies struct-tag validation to c.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
