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

// Package fake provides an in-memory connector.Connector for tests.
package fake

import (
	"context"
	"sync"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
)

// Connector is a goroutine-safe, fully in-memory connector.Connector.
type Connector struct {
	mu sync.RWMutex

	views map[v1alpha1.LoadBalancerId]v1alpha1.LoadBalancerView
	errs  map[v1alpha1.LoadBalancerId]error
}

func New() *Connector {
	return &Connector{
		views: map[v1alpha1.LoadBalancerId]v1alpha1.LoadBalancerView{},
		errs:  map[v1alpha1.LoadBalancerId]error{},
	}
}

// SetView sets the registered IPs and cloud state returned for lbId.
func (c *Connector) SetView(lbId v1alpha1.LoadBalancerId, state v1alpha1.CloudState, ips ...v1alpha1.IPAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := make(map[v1alpha1.IPAddress]struct{}, len(ips))
	for _, ip := range ips {
		set[ip] = struct{}{}
	}
	c.views[lbId] = v1alpha1.LoadBalancerView{LoadBalancerId: lbId, CloudState: state, RegisteredIPs: set}
}

// SetErr forces GetLoadBalancer(lbId) to return err on every call until cleared
// by SetErr(lbId, nil).
func (c *Connector) SetErr(lbId v1alpha1.LoadBalancerId, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.errs, lbId)
		return
	}
	c.errs[lbId] = err
}

func (c *Connector) GetLoadBalancer(_ context.Context, lbId v1alpha1.LoadBalancerId) (v1alpha1.LoadBalancerView, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err, ok := c.errs[lbId]; ok {
		return v1alpha1.LoadBalancerView{}, err
	}
	view, ok := c.views[lbId]
	if !ok {
		return v1alpha1.LoadBalancerView{LoadBalancerId: lbId, CloudState: v1alpha1.Removed}, nil
	}
	// defensive copy so callers mutating the returned map never corrupt fake state.
	ips := make(map[v1alpha1.IPAddress]struct{}, len(view.RegisteredIPs))
	for ip := range view.RegisteredIPs {
		ips[ip] = struct{}{}
	}
	view.RegisteredIPs = ips
	return view, nil
}
