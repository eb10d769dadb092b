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

// Package store defines the persistence contract for associations and
// targets. The reactive path (out of scope) and the reconciler both write
// through an implementation of this interface; writes are upsert-by-key and
// idempotent, and every method must present a coherent snapshot of the data
// it returns for that one call.
package store

import (
	"context"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
)

// AssociationStore persists (job, load-balancer, association-state) tuples
// and per-(load-balancer,task,ip) target states.
type AssociationStore interface {
	PutAssociation(ctx context.Context, jobId v1alpha1.JobId, lbId v1alpha1.LoadBalancerId, state v1alpha1.AssociationState) error
	GetAssociations(ctx context.Context) ([]v1alpha1.Association, error)
	GetAssociatedLoadBalancersForJob(ctx context.Context, jobId v1alpha1.JobId) ([]v1alpha1.LoadBalancerId, error)
	RemoveAssociation(ctx context.Context, jobId v1alpha1.JobId, lbId v1alpha1.LoadBalancerId) error

	PutTargets(ctx context.Context, records []v1alpha1.TargetRecord) error
	GetTargets(ctx context.Context, lbId v1alpha1.LoadBalancerId) ([]v1alpha1.TargetRecord, error)
	RemoveTargets(ctx context.Context, identifiers []v1alpha1.TargetIdentifier) error
}
