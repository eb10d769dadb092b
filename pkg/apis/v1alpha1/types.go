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

// Package v1alpha1 defines the shared data model for the load balancer reconciler:
// identifiers, association/target state machines, and the transition record emitted
// to the downstream batching engine.
package v1alpha1

import "fmt"

// LoadBalancerId identifies a cloud load balancer.
type LoadBalancerId string

// JobId identifies a job in the job manager.
type JobId string

// TaskId identifies a single running task of a job.
type TaskId string

// IPAddress is the dotted-quad container IP of a task.
type IPAddress string

// AssociationState is the lifecycle state of a (job, load balancer) association.
type AssociationState string

const (
	Associated  AssociationState = "Associated"
	Dissociated AssociationState = "Dissociated"
)

// Association is the relationship between a job and a load balancer.
type Association struct {
	JobId          JobId
	LoadBalancerId LoadBalancerId
	State          AssociationState
}

// Key returns the association's primary key.
func (a Association) Key() AssociationKey {
	return AssociationKey{JobId: a.JobId, LoadBalancerId: a.LoadBalancerId}
}

// AssociationKey is the primary key of an Association record.
type AssociationKey struct {
	JobId          JobId
	LoadBalancerId LoadBalancerId
}

func (k AssociationKey) String() string {
	return fmt.Sprintf("%s/%s", k.JobId, k.LoadBalancerId)
}

// TargetState reflects what the reconciler last requested for a target, not
// necessarily what the cloud load balancer has applied yet.
type TargetState string

const (
	Registered   TargetState = "Registered"
	Deregistered TargetState = "Deregistered"
)

// TargetIdentifier is the three-part key of a target: both the task id and the
// ip are significant, since a later task can reuse an ip and a task can in
// principle map to a different ip across restarts. Never collapse these two
// by ip alone.
type TargetIdentifier struct {
	LoadBalancerId LoadBalancerId
	TaskId         TaskId
	IPAddress      IPAddress
}

func (t TargetIdentifier) String() string {
	return fmt.Sprintf("%s/%s/%s", t.LoadBalancerId, t.TaskId, t.IPAddress)
}

// TargetRecord is a target's persisted identifier and state.
type TargetRecord struct {
	Identifier TargetIdentifier
	State      TargetState
}

// Priority orders a transition against the reactive path's higher-priority
// emissions; the reconciler only ever emits Low.
type Priority string

const (
	Low  Priority = "Low"
	High Priority = "High"
)

// TransitionReason tags why the phase engine emitted a transition.
type TransitionReason string

const (
	MissingInLb       TransitionReason = "MissingInLb"
	ExtraInLb         TransitionReason = "ExtraInLb"
	InconsistentStore TransitionReason = "InconsistentStore"
	OrphanCleanup     TransitionReason = "OrphanCleanup"
)

// TargetTransition is the record emitted to the downstream batching/registration engine.
type TargetTransition struct {
	Identifier    TargetIdentifier
	DesiredState  TargetState
	Priority      Priority
	Reason        TransitionReason
}

// CloudState is the external load balancer's observed lifecycle state.
type CloudState string

const (
	Active  CloudState = "Active"
	Removed CloudState = "Removed"
)

// LoadBalancerView is the connector's read of current cloud load balancer membership.
type LoadBalancerView struct {
	LoadBalancerId LoadBalancerId
	CloudState     CloudState
	RegisteredIPs  map[IPAddress]struct{}
}

// Task is a single running task of a job, as reported by job operations.
type Task struct {
	TaskId    TaskId
	IPAddress IPAddress
}

// Job is the minimal job-manager view needed to detect orphaned associations.
type Job struct {
	JobId JobId
}
