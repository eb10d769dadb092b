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

// Package cooldown tracks, per target, a short exclusion window during which
// the phase engine will not emit a reconciliation transition - giving a prior
// reactive update time to take effect before the reconciler second-guesses it.
package cooldown

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"k8s.io/utils/clock"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
)

// cleanupInterval only governs how often go-cache's background janitor runs.
// Entries are stored without a go-cache expiration, so the janitor never
// removes them; expiry is judged against the injected clock in IsActive,
// which also deletes the entries it finds expired.
const cleanupInterval = 10 * time.Minute

// Tracker maps TargetIdentifier to an expiration deadline. Activate calls are
// commutative: the later deadline always wins, because Activate never
// replaces a stored deadline with an earlier one.
type Tracker struct {
	clock    clock.PassiveClock
	deadline *gocache.Cache
}

func New(clk clock.PassiveClock) *Tracker {
	return &Tracker{
		clock: clk,
		// go-cache's own expiration is disabled here; real expiry
		// decisions are made by IsActive comparing against the injected
		// clock, so tests using a fake clock see deterministic expiry.
		deadline: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Activate sets target's cooldown deadline to now+duration, unless a later
// deadline is already stored for target.
func (t *Tracker) Activate(target v1alpha1.TargetIdentifier, duration time.Duration) {
	key := target.String()
	deadline := t.clock.Now().Add(duration)
	if v, ok := t.deadline.Get(key); ok && v.(time.Time).After(deadline) {
		return
	}
	t.deadline.Set(key, deadline, gocache.NoExpiration)
}

// IsActive returns true iff target has a stored deadline strictly after now.
// Expired entries are pruned opportunistically on this lookup.
func (t *Tracker) IsActive(target v1alpha1.TargetIdentifier) bool {
	v, ok := t.deadline.Get(target.String())
	if !ok {
		return false
	}
	deadline := v.(time.Time)
	if !t.clock.Now().Before(deadline) {
		t.deadline.Delete(target.String())
		return false
	}
	return true
}
