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

package cooldown_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
	"github.com/aws/lb-target-reconciler/pkg/cooldown"
)

func TestCooldown(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cooldown")
}

var _ = Describe("Tracker", func() {
	var fakeClock *clocktesting.FakePassiveClock
	var tracker *cooldown.Tracker
	var target v1alpha1.TargetIdentifier

	BeforeEach(func() {
		fakeClock = clocktesting.NewFakePassiveClock(time.Now())
		tracker = cooldown.New(fakeClock)
		target = v1alpha1.TargetIdentifier{LoadBalancerId: "lb-1", TaskId: "task-1", IPAddress: "1.1.1.1"}
	})

	It("is inactive before Activate is ever called", func() {
		Expect(tracker.IsActive(target)).To(BeFalse())
	})

	It("is active immediately after Activate", func() {
		tracker.Activate(target, time.Minute)
		Expect(tracker.IsActive(target)).To(BeTrue())
	})

	It("is active before the deadline and inactive after it", func() {
		tracker.Activate(target, time.Minute)
		fakeClock.SetTime(fakeClock.Now().Add(59 * time.Second))
		Expect(tracker.IsActive(target)).To(BeTrue())

		fakeClock.SetTime(fakeClock.Now().Add(2 * time.Second))
		Expect(tracker.IsActive(target)).To(BeFalse())
	})

	It("keeps the latest deadline across repeated Activate calls", func() {
		tracker.Activate(target, time.Minute)
		tracker.Activate(target, 5*time.Minute)

		fakeClock.SetTime(fakeClock.Now().Add(2 * time.Minute))
		Expect(tracker.IsActive(target)).To(BeTrue())
	})

	It("tracks targets independently", func() {
		other := v1alpha1.TargetIdentifier{LoadBalancerId: "lb-1", TaskId: "task-2", IPAddress: "2.2.2.2"}
		tracker.Activate(target, time.Minute)
		Expect(tracker.IsActive(target)).To(BeTrue())
		Expect(tracker.IsActive(other)).To(BeFalse())
	})
})
