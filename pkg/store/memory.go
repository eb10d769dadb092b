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

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
)

// Memory is a goroutine-safe, fully in-memory reference AssociationStore. It
// is the reference implementation behind the interface a durable store would
// implement; production deployments are expected to supply their own backend
// (etcd, a relational table, object storage, ...) behind the same interface.
type Memory struct {
	mu sync.RWMutex

	associations map[v1alpha1.AssociationKey]v1alpha1.AssociationState
	targets      map[v1alpha1.TargetIdentifier]v1alpha1.TargetState
}

func NewMemory() *Memory {
	return &Memory{
		associations: map[v1alpha1.AssociationKey]v1alpha1.AssociationState{},
		targets:      map[v1alpha1.TargetIdentifier]v1alpha1.TargetState{},
	}
}

var _ AssociationStore = (*Memory)(nil)

func (m *Memory) PutAssociation(_ context.Context, jobId v1alpha1.JobId, lbId v1alpha1.LoadBalancerId, state v1alpha1.AssociationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.associations[v1alpha1.AssociationKey{JobId: jobId, LoadBalancerId: lbId}] = state
	return nil
}

func (m *Memory) GetAssociations(_ context.Context) ([]v1alpha1.Association, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]v1alpha1.Association, 0, len(m.associations))
	for k, state := range m.associations {
		out = append(out, v1alpha1.Association{JobId: k.JobId, LoadBalancerId: k.LoadBalancerId, State: state})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JobId != out[j].JobId {
			return out[i].JobId < out[j].JobId
		}
		return out[i].LoadBalancerId < out[j].LoadBalancerId
	})
	return out, nil
}

func (m *Memory) GetAssociatedLoadBalancersForJob(_ context.Context, jobId v1alpha1.JobId) ([]v1alpha1.LoadBalancerId, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []v1alpha1.LoadBalancerId
	for k, state := range m.associations {
		if k.JobId == jobId && state == v1alpha1.Associated {
			out = append(out, k.LoadBalancerId)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *Memory) RemoveAssociation(_ context.Context, jobId v1alpha1.JobId, lbId v1alpha1.LoadBalancerId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.associations, v1alpha1.AssociationKey{JobId: jobId, LoadBalancerId: lbId})
	return nil
}

func (m *Memory) PutTargets(_ context.Context, records []v1alpha1.TargetRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.targets[r.Identifier] = r.State
	}
	return nil
}

func (m *Memory) GetTargets(_ context.Context, lbId v1alpha1.LoadBalancerId) ([]v1alpha1.TargetRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []v1alpha1.TargetRecord
	for id, state := range m.targets {
		if id.LoadBalancerId == lbId {
			out = append(out, v1alpha1.TargetRecord{Identifier: id, State: state})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Identifier.TaskId != out[j].Identifier.TaskId {
			return out[i].Identifier.TaskId < out[j].Identifier.TaskId
		}
		return out[i].Identifier.IPAddress < out[j].Identifier.IPAddress
	})
	return out, nil
}

func (m *Memory) RemoveTargets(_ context.Context, identifiers []v1alpha1.TargetIdentifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range identifiers {
		delete(m.targets, id)
	}
	return nil
}
