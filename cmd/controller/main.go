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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/aws/lb-target-reconciler/pkg/config"
	"github.com/aws/lb-target-reconciler/pkg/connector/elbv2"
	"github.com/aws/lb-target-reconciler/pkg/cooldown"
	fakejobops "github.com/aws/lb-target-reconciler/pkg/jobops/fake"
	"github.com/aws/lb-target-reconciler/pkg/reconciler"
	"github.com/aws/lb-target-reconciler/pkg/store"
)

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		panic(fmt.Sprintf("parsing configuration: %s", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("validating configuration: %s", err))
	}

	logger := zapr.NewLogger(newZapLogger(cfg.LogLevel))
	log.SetLogger(logger)
	ctx := log.IntoContext(context.Background(), logger)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		panic(fmt.Sprintf("loading AWS configuration: %s", err))
	}

	conn := elbv2.New(elasticloadbalancingv2.NewFromConfig(awsCfg))
	// JobOperations and the association store are the two collaborator
	// interfaces a real deployment is expected to supply its own
	// implementation of, behind the same interfaces exercised here; the
	// in-memory store and fake job operations are the reference
	// implementations this repository ships.
	jobOps := fakejobops.New()
	associationStore := store.NewMemory()
	cooldownTracker := cooldown.New(clock.RealClock{})

	r := reconciler.New(
		associationStore,
		conn,
		jobOps,
		cooldownTracker,
		clock.RealClock{},
		cfg.ReconciliationDelay,
		cfg.ReconciliationTimeout,
		cfg.ReconciliationWorkers,
	)

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Metrics:                metricsserver.Options{BindAddress: fmt.Sprintf(":%d", cfg.MetricsPort)},
		HealthProbeBindAddress: fmt.Sprintf(":%d", cfg.HealthProbePort),
	})
	if err != nil {
		panic(fmt.Sprintf("constructing manager: %s", err))
	}
	if err := mgr.Add(r); err != nil {
		panic(fmt.Sprintf("registering reconciler with manager: %s", err))
	}

	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		panic(fmt.Sprintf("running manager: %s", err))
	}
}

func newZapLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapLogger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("constructing logger: %s", err))
	}
	return zapLogger
}
