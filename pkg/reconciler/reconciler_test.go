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

package reconciler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
	fakeconnector "github.com/aws/lb-target-reconciler/pkg/connector/fake"
	"github.com/aws/lb-target-reconciler/pkg/cooldown"
	fakejobops "github.com/aws/lb-target-reconciler/pkg/jobops/fake"
	"github.com/aws/lb-target-reconciler/pkg/reconciler"
	"github.com/aws/lb-target-reconciler/pkg/store"
)

// failingStore wraps *store.Memory to force RemoveTargets to fail while
// tracking whether RemoveAssociation was ever invoked afterward.
type failingStore struct {
	*store.Memory
	removeTargetsErr        error
	removeAssociationCalled atomic.Bool
}

func (f *failingStore) RemoveTargets(ctx context.Context, ids []v1alpha1.TargetIdentifier) error {
	if f.removeTargetsErr != nil {
		return f.removeTargetsErr
	}
	return f.Memory.RemoveTargets(ctx, ids)
}

func (f *failingStore) RemoveAssociation(ctx context.Context, jobId v1alpha1.JobId, lbId v1alpha1.LoadBalancerId) error {
	f.removeAssociationCalled.Store(true)
	return f.Memory.RemoveAssociation(ctx, jobId, lbId)
}

func TestReconciler(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Reconciler")
}

var _ = Describe("Reconciler", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		s         *store.Memory
		conn      *fakeconnector.Connector
		jobOps    *fakejobops.JobOperations
		fakeClock *clocktesting.FakeClock
		cd        *cooldown.Tracker
		r         *reconciler.Reconciler
		start     time.Time
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		s = store.NewMemory()
		conn = fakeconnector.New()
		jobOps = fakejobops.New()
		start = time.Now()
		fakeClock = clocktesting.NewFakeClock(start)
		cd = cooldown.New(fakeClock)
		r = reconciler.New(s, conn, jobOps, cd, fakeClock, time.Second, 10*time.Second, 4)
	})

	AfterEach(func() {
		r.Shutdown()
		cancel()
	})

	It("registers a missing task on the first tick after start", func() {
		Expect(s.PutAssociation(ctx, "job-1", "lb-1", v1alpha1.Associated)).To(Succeed())
		jobOps.SetTasks("job-1", v1alpha1.Task{TaskId: "t1", IPAddress: "1.1.1.1"})
		conn.SetView("lb-1", v1alpha1.Active)

		events := r.Events()
		go func() { _ = r.Start(ctx) }()

		Eventually(func() bool { return fakeClock.HasWaiters() }).Should(BeTrue())
		fakeClock.Step(time.Second)

		var got v1alpha1.TargetTransition
		Eventually(events, 2*time.Second).Should(Receive(&got))
		Expect(got.Identifier.TaskId).To(Equal(v1alpha1.TaskId("t1")))
		Expect(got.DesiredState).To(Equal(v1alpha1.Registered))
		Expect(got.Reason).To(Equal(v1alpha1.MissingInLb))
	})

	It("isolates a connector failure on one load balancer from another association's progress", func() {
		Expect(s.PutAssociation(ctx, "job-1", "lb-broken", v1alpha1.Associated)).To(Succeed())
		Expect(s.PutAssociation(ctx, "job-2", "lb-ok", v1alpha1.Associated)).To(Succeed())
		jobOps.SetTasks("job-1", v1alpha1.Task{TaskId: "t1", IPAddress: "1.1.1.1"})
		jobOps.SetTasks("job-2", v1alpha1.Task{TaskId: "t2", IPAddress: "2.2.2.2"})
		conn.SetErr("lb-broken", context.DeadlineExceeded)
		conn.SetView("lb-ok", v1alpha1.Active)

		events := r.Events()
		go func() { _ = r.Start(ctx) }()

		Eventually(func() bool { return fakeClock.HasWaiters() }).Should(BeTrue())
		fakeClock.Step(time.Second)

		var got v1alpha1.TargetTransition
		Eventually(events, 2*time.Second).Should(Receive(&got))
		Expect(got.Identifier.TaskId).To(Equal(v1alpha1.TaskId("t2")))
	})

	It("never removes an association when its preceding target sweep fails to write", func() {
		fs := &failingStore{Memory: store.NewMemory(), removeTargetsErr: errors.New("write failed")}
		Expect(fs.PutAssociation(ctx, "job-1", "lb-1", v1alpha1.Dissociated)).To(Succeed())
		Expect(fs.PutTargets(ctx, []v1alpha1.TargetRecord{
			{Identifier: v1alpha1.TargetIdentifier{LoadBalancerId: "lb-1", TaskId: "t1", IPAddress: "1.1.1.1"}, State: v1alpha1.Deregistered},
		})).To(Succeed())
		conn.SetView("lb-1", v1alpha1.Active) // no IPs registered: the stored target is eligible for sweep

		r2 := reconciler.New(fs, conn, jobOps, cd, fakeClock, time.Second, 10*time.Second, 4)
		defer r2.Shutdown()

		go func() { _ = r2.Start(ctx) }()
		Eventually(func() bool { return fakeClock.HasWaiters() }).Should(BeTrue())
		fakeClock.Step(time.Second)

		Eventually(r2.TicksCompleted).Should(BeNumerically(">=", int64(1)))
		Consistently(fs.removeAssociationCalled.Load).Should(BeFalse())

		assocs, err := fs.GetAssociations(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(assocs).To(HaveLen(1))
	})

	It("stops the tick loop on Shutdown", func() {
		go func() { _ = r.Start(ctx) }()
		Eventually(func() bool { return fakeClock.HasWaiters() }).Should(BeTrue())
		r.Shutdown()

		events := r.Events()
		Eventually(events).Should(BeClosed())
	})
})
