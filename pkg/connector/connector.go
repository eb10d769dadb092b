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

// Package connector defines the reconciler's read path into the cloud load
// balancer. Failures are always scoped to a single LoadBalancerId.
package connector

import (
	"context"
	"errors"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
)

// ErrLoadBalancerNotFound signals the cloud no longer has any record of the
// load balancer. snapshot.Gather handles it like any other connector error
// (the cloud view is absent for that tick); the connectors in this repository
// report a missing load balancer as a view with CloudState Removed instead of
// returning this error.
var ErrLoadBalancerNotFound = errors.New("connector: load balancer not found")

// Connector reads current load balancer membership from the cloud. The
// reconciler never writes through this interface - registration/deregistration
// is requested via the emitted TargetTransition stream and applied by the
// out-of-scope downstream batching engine.
type Connector interface {
	GetLoadBalancer(ctx context.Context, lbId v1alpha1.LoadBalancerId) (v1alpha1.LoadBalancerView, error)
}
