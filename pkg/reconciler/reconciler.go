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

// Package reconciler is the loop driver: it schedules ticks on an injected
// clock, fans out per-association work with bounded concurrency, applies the
// phase engine's decisions, and publishes transitions on the event stream.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
	"github.com/aws/lb-target-reconciler/pkg/connector"
	"github.com/aws/lb-target-reconciler/pkg/cooldown"
	"github.com/aws/lb-target-reconciler/pkg/engine"
	"github.com/aws/lb-target-reconciler/pkg/events"
	"github.com/aws/lb-target-reconciler/pkg/jobops"
	lbmetrics "github.com/aws/lb-target-reconciler/pkg/metrics"
	"github.com/aws/lb-target-reconciler/pkg/snapshot"
	"github.com/aws/lb-target-reconciler/pkg/store"
)

// Reconciler is the loop driver described in the design's §4.3. It
// implements manager.Runnable so it can be registered with a
// controller-runtime Manager alongside any other long-running component.
type Reconciler struct {
	store     store.AssociationStore
	connector connector.Connector
	jobOps    jobops.JobOperations
	cooldown  *cooldown.Tracker
	clk       clock.Clock

	delay   time.Duration
	timeout time.Duration
	workers int64

	stream *events.Stream
	sem    *semaphore.Weighted

	inFlight sync.Map // v1alpha1.AssociationKey -> struct{}

	ticks        int64
	ticksMu      sync.Mutex
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

var _ manager.Runnable = (*Reconciler)(nil)

// New constructs a Reconciler. delay is the minimum interval between tick
// starts; timeout bounds a single tick's wall-clock duration; workers bounds
// per-tick association fan-out concurrency.
func New(
	s store.AssociationStore,
	c connector.Connector,
	j jobops.JobOperations,
	cd *cooldown.Tracker,
	clk clock.Clock,
	delay, timeout time.Duration,
	workers int,
) *Reconciler {
	return &Reconciler{
		store:      s,
		connector:  c,
		jobOps:     j,
		cooldown:   cd,
		clk:        clk,
		delay:      delay,
		timeout:    timeout,
		workers:    int64(workers),
		stream:     events.NewStream(),
		sem:        semaphore.NewWeighted(int64(workers)),
		shutdownCh: make(chan struct{}),
	}
}

// Events subscribes to the reconciler's event stream.
func (r *Reconciler) Events() <-chan v1alpha1.TargetTransition {
	return r.stream.Subscribe()
}

// ActivateCooldownFor is the reactive path's sole entrypoint into the
// reconciler: it suppresses reconciliation emission for target until
// duration elapses.
func (r *Reconciler) ActivateCooldownFor(target v1alpha1.TargetIdentifier, duration time.Duration) {
	r.cooldown.Activate(target, duration)
}

// Shutdown stops the tick loop, cancels the context of a tick in progress,
// and closes the event stream. It is safe to call more than once; only the
// first call has effect.
func (r *Reconciler) Shutdown() {
	r.shutdownOnce.Do(func() {
		close(r.shutdownCh)
		r.stream.Close()
	})
}

// TicksCompleted returns the number of ticks that have returned so far,
// including ticks that ended early because associations could not be
// listed. Exposed for tests.
func (r *Reconciler) TicksCompleted() int64 {
	r.ticksMu.Lock()
	defer r.ticksMu.Unlock()
	return r.ticks
}

// Start runs the tick loop until ctx is cancelled or Shutdown is called.
func (r *Reconciler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.shutdownCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := r.clk.NewTicker(r.delay)
	defer ticker.Stop()
	defer r.Shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.shutdownCh:
			return nil
		case <-ticker.C():
			r.tick(ctx)
		}
	}
}

// tick runs exactly one reconciliation pass over every stored association.
func (r *Reconciler) tick(ctx context.Context) {
	tickID := uuid.NewString()
	logger := log.FromContext(ctx).WithValues("tick-id", tickID)
	ctx = log.IntoContext(ctx, logger)

	start := r.clk.Now()
	tickCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		r.ticksMu.Lock()
		r.ticks++
		r.ticksMu.Unlock()
	}()
	lbmetrics.TicksTotal.Inc(map[string]string{})

	assocs, err := r.store.GetAssociations(tickCtx)
	if err != nil {
		logger.Error(err, "listing associations")
		lbmetrics.ErrorsTotal.Inc(map[string]string{lbmetrics.KindLabel: "store-read-failure"})
		return
	}

	cloudViews := r.fetchCloudViews(tickCtx, assocs)

	var wg sync.WaitGroup
	for _, assoc := range assocs {
		key := assoc.Key()
		if _, alreadyRunning := r.inFlight.LoadOrStore(key, struct{}{}); alreadyRunning {
			continue
		}

		if err := r.sem.Acquire(tickCtx, 1); err != nil {
			// Tick timed out waiting for a worker slot; abandon remaining
			// dispatch for this tick and retry everything next tick.
			r.inFlight.Delete(key)
			break
		}

		wg.Add(1)
		cloudView := cloudViews[assoc.LoadBalancerId]
		go func(assoc v1alpha1.Association, view v1alpha1.LoadBalancerView, viewErr error) {
			defer wg.Done()
			defer r.sem.Release(1)
			defer r.inFlight.Delete(key)
			r.reconcileAssociation(tickCtx, assoc, view, viewErr)
		}(assoc, cloudView.view, cloudView.err)
	}
	wg.Wait()

	lbmetrics.TickDurationSeconds.Observe(r.clk.Now().Sub(start).Seconds(), map[string]string{})
}

// fetchCloudViews makes exactly one connector call per distinct lbId
// referenced by assocs, shared across every association that references it.
func (r *Reconciler) fetchCloudViews(ctx context.Context, assocs []v1alpha1.Association) map[v1alpha1.LoadBalancerId]cloudViewResult {
	lbIds := lo.Uniq(lo.Map(assocs, func(a v1alpha1.Association, _ int) v1alpha1.LoadBalancerId { return a.LoadBalancerId }))

	results := make(map[v1alpha1.LoadBalancerId]cloudViewResult, len(lbIds))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, lbId := range lbIds {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(lbId v1alpha1.LoadBalancerId) {
			defer wg.Done()
			defer r.sem.Release(1)
			view, err := r.connector.GetLoadBalancer(ctx, lbId)
			mu.Lock()
			results[lbId] = cloudViewResult{view: view, err: err}
			mu.Unlock()
		}(lbId)
	}
	wg.Wait()
	return results
}

type cloudViewResult struct {
	view v1alpha1.LoadBalancerView
	err  error
}

// reconcileAssociation gathers one association's snapshot, runs the phase
// engine, and applies its decision. Errors are logged and counted; they
// never propagate back to tick, which must not let one association's
// failure affect any other.
func (r *Reconciler) reconcileAssociation(ctx context.Context, assoc v1alpha1.Association, view v1alpha1.LoadBalancerView, viewErr error) {
	logger := log.FromContext(ctx).WithValues("job-id", assoc.JobId, "load-balancer-id", assoc.LoadBalancerId)

	snap, err := snapshot.Gather(ctx, assoc, r.store, view, viewErr, r.jobOps)
	if err != nil {
		logger.Error(err, "gathering snapshot")
		lbmetrics.ErrorsTotal.Inc(map[string]string{lbmetrics.KindLabel: "snapshot-gather-failure"})
		return
	}

	decision := engine.Evaluate(snap, r.cooldown)
	r.apply(ctx, assoc, decision)
}

// apply commits one association's Decision: target mutations, association
// state changes, and event-stream publication, in that order so a crash
// between steps is safely recomputed next tick. A failing mutation aborts
// every mutation after it and suppresses transition publication entirely -
// in particular, RemoveAssociation must never run after a failed
// RemoveTargets, or the association row would be swept while a target
// record referencing it survives, orphaning that record forever.
func (r *Reconciler) apply(ctx context.Context, assoc v1alpha1.Association, decision engine.Decision) {
	logger := log.FromContext(ctx).WithValues("job-id", assoc.JobId, "load-balancer-id", assoc.LoadBalancerId)

	if len(decision.PutTargets) > 0 {
		if err := r.store.PutTargets(ctx, decision.PutTargets); err != nil {
			r.logApplyFailure(logger, err)
			return
		}
	}
	if len(decision.RemoveTargets) > 0 {
		if err := r.store.RemoveTargets(ctx, decision.RemoveTargets); err != nil {
			r.logApplyFailure(logger, err)
			return
		}
	}
	if decision.AssociationState != nil {
		if err := r.store.PutAssociation(ctx, assoc.JobId, assoc.LoadBalancerId, *decision.AssociationState); err != nil {
			r.logApplyFailure(logger, err)
			return
		}
	}
	if decision.RemoveAssociation {
		if err := r.store.RemoveAssociation(ctx, assoc.JobId, assoc.LoadBalancerId); err != nil {
			r.logApplyFailure(logger, err)
			return
		}
	}

	for _, t := range decision.Transitions {
		r.stream.Publish(t)
		lbmetrics.TransitionsEmittedTotal.Inc(map[string]string{
			lbmetrics.ReasonLabel: string(t.Reason),
			lbmetrics.StateLabel:  string(t.DesiredState),
		})
	}
}

func (r *Reconciler) logApplyFailure(logger logr.Logger, err error) {
	logger.Error(err, "applying phase engine decision")
	lbmetrics.ErrorsTotal.Inc(map[string]string{lbmetrics.KindLabel: "store-write-failure"})
}
