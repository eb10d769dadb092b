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

// Package engine is the phase engine: a pure function from a Snapshot to the
// store mutations and transitions it implies. It performs no I/O, holds no
// clock, and does no logging - every decision is deterministic given its
// inputs, so the loop driver can retry a tick from scratch without fear of
// double-counting.
package engine

import (
	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
	"github.com/aws/lb-target-reconciler/pkg/snapshot"
)

// CooldownChecker reports whether a target is currently within its
// suppression window. *cooldown.Tracker satisfies this.
type CooldownChecker interface {
	IsActive(target v1alpha1.TargetIdentifier) bool
}

// Decision is everything the loop driver must apply on the engine's behalf:
// transitions to publish on the event stream, and store mutations.
// AssociationState, if non-nil, requests PutAssociation with the new state.
// RemoveAssociation requests RemoveAssociation once store mutations are applied.
type Decision struct {
	Transitions []v1alpha1.TargetTransition

	PutTargets    []v1alpha1.TargetRecord
	RemoveTargets []v1alpha1.TargetIdentifier

	AssociationState  *v1alpha1.AssociationState
	RemoveAssociation bool
}

// Evaluate turns one association's Snapshot into a Decision. It never mutates
// snap; all of its reasoning is pure.
func Evaluate(snap snapshot.Snapshot, cooldown CooldownChecker) Decision {
	if snap.Orphan && snap.Association.State == v1alpha1.Associated {
		state := v1alpha1.Dissociated
		return Decision{AssociationState: &state}
	}

	switch snap.Association.State {
	case v1alpha1.Associated:
		if snap.TasksAbsent || snap.CloudAbsent {
			// Absent snapshot: job operations or the connector did not give
			// us a reliable view this tick. Emit nothing and let the next
			// tick retry from scratch.
			return Decision{}
		}
		return evaluateAssociated(snap, cooldown)
	case v1alpha1.Dissociated:
		return evaluateDissociated(snap, cooldown)
	default:
		return Decision{}
	}
}

// evaluateAssociated implements the decision table of rules 1-6 for an
// association in the Associated state with both the task list and the cloud
// view present. Rules are evaluated in order and each TargetIdentifier is
// touched by at most one.
func evaluateAssociated(snap snapshot.Snapshot, cooldown CooldownChecker) Decision {
	var d Decision

	lbId := snap.Association.LoadBalancerId
	registeredIps := snap.CloudView.RegisteredIPs
	runningTaskIds := snap.RunningTaskIDs()
	handled := map[v1alpha1.TargetIdentifier]bool{}

	// Rule 1: register every running task whose ip is missing from the cloud.
	for _, task := range snap.TasksRunning {
		target := v1alpha1.TargetIdentifier{LoadBalancerId: lbId, TaskId: task.TaskId, IPAddress: task.IPAddress}
		if _, ok := registeredIps[task.IPAddress]; ok {
			continue
		}
		handled[target] = true
		if cooldown.IsActive(target) {
			continue
		}
		d.Transitions = append(d.Transitions, v1alpha1.TargetTransition{
			Identifier:   target,
			DesiredState: v1alpha1.Registered,
			Priority:     v1alpha1.Low,
			Reason:       v1alpha1.MissingInLb,
		})
	}

	// Rules 2-5 walk the stored targets for this load balancer.
	for _, rec := range snap.Stored {
		target := rec.Identifier
		if handled[target] {
			continue
		}
		_, ipRegistered := registeredIps[target.IPAddress]
		_, taskRunning := runningTaskIds[target.TaskId]

		switch rec.State {
		case v1alpha1.Registered:
			switch {
			case ipRegistered && !taskRunning:
				// Rule 2: we registered it, the task is gone, the cloud still has it.
				handled[target] = true
				if cooldown.IsActive(target) {
					continue
				}
				d.Transitions = append(d.Transitions, v1alpha1.TargetTransition{
					Identifier:   target,
					DesiredState: v1alpha1.Deregistered,
					Priority:     v1alpha1.Low,
					Reason:       v1alpha1.ExtraInLb,
				})
			case !ipRegistered && !taskRunning:
				// Rule 4: store says Registered but neither the cloud nor the
				// task list backs that up. Repair the store to match reality.
				handled[target] = true
				if cooldown.IsActive(target) {
					continue
				}
				d.Transitions = append(d.Transitions, v1alpha1.TargetTransition{
					Identifier:   target,
					DesiredState: v1alpha1.Deregistered,
					Priority:     v1alpha1.Low,
					Reason:       v1alpha1.InconsistentStore,
				})
				d.PutTargets = append(d.PutTargets, v1alpha1.TargetRecord{Identifier: target, State: v1alpha1.Deregistered})
			}
			// ipRegistered && taskRunning: steady state, nothing to do.
		case v1alpha1.Deregistered:
			if ipRegistered {
				// Rule 3: we already asked to deregister this, cloud hasn't caught up.
				handled[target] = true
				if cooldown.IsActive(target) {
					continue
				}
				d.Transitions = append(d.Transitions, v1alpha1.TargetTransition{
					Identifier:   target,
					DesiredState: v1alpha1.Deregistered,
					Priority:     v1alpha1.Low,
					Reason:       v1alpha1.ExtraInLb,
				})
				continue
			}
			// Rule 5: deregistered and gone from the cloud - sweep the record.
			handled[target] = true
			d.RemoveTargets = append(d.RemoveTargets, target)
		}
	}

	// Rule 6 (ips present in the cloud but absent from the store) requires no
	// code: we simply never generate a transition or mutation for them.
	return d
}

// evaluateDissociated implements the mark -> deregister -> sweep targets ->
// sweep association sequence for an association already in Dissociated.
func evaluateDissociated(snap snapshot.Snapshot, cooldown CooldownChecker) Decision {
	var d Decision

	registeredIps := snap.CloudView.RegisteredIPs
	cloudMissing := snap.CloudAbsent || snap.CloudView.CloudState == v1alpha1.Removed

	remaining := make(map[v1alpha1.TargetIdentifier]v1alpha1.TargetState, len(snap.Stored))
	for _, rec := range snap.Stored {
		remaining[rec.Identifier] = rec.State
	}

	// Step 1: deregister everything still marked Registered.
	for _, rec := range snap.Stored {
		if rec.State != v1alpha1.Registered {
			continue
		}
		if cooldown.IsActive(rec.Identifier) {
			continue
		}
		d.Transitions = append(d.Transitions, v1alpha1.TargetTransition{
			Identifier:   rec.Identifier,
			DesiredState: v1alpha1.Deregistered,
			Priority:     v1alpha1.Low,
			Reason:       v1alpha1.OrphanCleanup,
		})
		d.PutTargets = append(d.PutTargets, v1alpha1.TargetRecord{Identifier: rec.Identifier, State: v1alpha1.Deregistered})
		remaining[rec.Identifier] = v1alpha1.Deregistered
	}

	// Step 2: sweep every Deregistered record the cloud no longer carries.
	for id, state := range remaining {
		if state != v1alpha1.Deregistered {
			continue
		}
		_, ipRegistered := registeredIps[id.IPAddress]
		if cloudMissing || !ipRegistered {
			d.RemoveTargets = append(d.RemoveTargets, id)
			delete(remaining, id)
		}
	}

	// Step 3: once no targets remain for this load balancer, the association
	// itself can be removed.
	if len(remaining) == 0 {
		d.RemoveAssociation = true
	}

	return d
}
