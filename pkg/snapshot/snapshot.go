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

// Package snapshot gathers the one immutable, per-association view the phase
// engine evaluates. Gather is the per-association impure step before the
// engine runs: it reads job operations and the target store, and takes the
// connector result the loop driver already fetched for the load balancer.
package snapshot

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
	"github.com/aws/lb-target-reconciler/pkg/connector"
	"github.com/aws/lb-target-reconciler/pkg/jobops"
	"github.com/aws/lb-target-reconciler/pkg/store"
)

// Snapshot is the per-association input to the phase engine. TasksAbsent and
// CloudAbsent mark a failed collaborator call this tick; TasksRunning is then
// nil and CloudView the zero value. TasksAbsent is also set, together with
// Orphan, when the job is not found.
type Snapshot struct {
	Association v1alpha1.Association

	TasksRunning []v1alpha1.Task
	TasksAbsent  bool

	CloudView   v1alpha1.LoadBalancerView
	CloudAbsent bool

	// Orphan is true when the job no longer exists or the cloud reports the
	// load balancer as Removed.
	Orphan bool

	Stored []v1alpha1.TargetRecord
}

// Gather builds a Snapshot for one association. cloudView is the already-fetched
// (and per-tick memoized, since many associations can share one lbId) connector
// result for the association's load balancer; callers are expected to fetch it
// once per distinct lbId per tick rather than once per association.
func Gather(
	ctx context.Context,
	assoc v1alpha1.Association,
	targetStore store.AssociationStore,
	cloudView v1alpha1.LoadBalancerView,
	cloudErr error,
	jobOps jobops.JobOperations,
) (Snapshot, error) {
	logger := log.FromContext(ctx).WithValues("job-id", assoc.JobId, "load-balancer-id", assoc.LoadBalancerId)

	stored, err := targetStore.GetTargets(ctx, assoc.LoadBalancerId)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Association: assoc,
		Stored:      stored,
	}

	if cloudErr != nil {
		snap.CloudAbsent = true
		logger.V(1).Info("connector read failed, treating cloud view as absent this tick", "error", cloudErr)
	} else {
		snap.CloudView = cloudView
		if cloudView.CloudState == v1alpha1.Removed {
			snap.Orphan = true
		}
	}

	tasks, err := jobOps.GetTasks(ctx, assoc.JobId)
	switch {
	case err == nil:
		snap.TasksRunning = tasks
	case errors.Is(err, jobops.ErrJobNotFound):
		snap.TasksAbsent = true
		snap.Orphan = true
	default:
		snap.TasksAbsent = true
		logger.V(1).Info("job operations read failed, treating tasks as absent this tick", "error", err)
	}

	return snap, nil
}

// RunningIPs returns the set of ips currently backing the snapshot's running tasks.
func (s Snapshot) RunningIPs() map[v1alpha1.IPAddress]struct{} {
	return lo.SliceToMap(s.TasksRunning, func(t v1alpha1.Task) (v1alpha1.IPAddress, struct{}) {
		return t.IPAddress, struct{}{}
	})
}

// RunningTaskIDs returns the set of task ids the snapshot's running tasks belong to.
func (s Snapshot) RunningTaskIDs() map[v1alpha1.TaskId]struct{} {
	return lo.SliceToMap(s.TasksRunning, func(t v1alpha1.Task) (v1alpha1.TaskId, struct{}) {
		return t.TaskId, struct{}{}
	})
}
