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

package store_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
	"github.com/aws/lb-target-reconciler/pkg/store"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store")
}

var _ = Describe("Memory", func() {
	var ctx context.Context
	var s *store.Memory

	BeforeEach(func() {
		ctx = context.Background()
		s = store.NewMemory()
	})

	It("round-trips associations by key", func() {
		Expect(s.PutAssociation(ctx, "job-1", "lb-1", v1alpha1.Associated)).To(Succeed())
		assocs, err := s.GetAssociations(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(assocs).To(ConsistOf(v1alpha1.Association{JobId: "job-1", LoadBalancerId: "lb-1", State: v1alpha1.Associated}))
	})

	It("upserts associations idempotently", func() {
		Expect(s.PutAssociation(ctx, "job-1", "lb-1", v1alpha1.Associated)).To(Succeed())
		Expect(s.PutAssociation(ctx, "job-1", "lb-1", v1alpha1.Dissociated)).To(Succeed())
		assocs, _ := s.GetAssociations(ctx)
		Expect(assocs).To(HaveLen(1))
		Expect(assocs[0].State).To(Equal(v1alpha1.Dissociated))
	})

	It("removes associations", func() {
		Expect(s.PutAssociation(ctx, "job-1", "lb-1", v1alpha1.Associated)).To(Succeed())
		Expect(s.RemoveAssociation(ctx, "job-1", "lb-1")).To(Succeed())
		assocs, _ := s.GetAssociations(ctx)
		Expect(assocs).To(BeEmpty())
	})

	It("returns only associated load balancers for a job", func() {
		Expect(s.PutAssociation(ctx, "job-1", "lb-1", v1alpha1.Associated)).To(Succeed())
		Expect(s.PutAssociation(ctx, "job-1", "lb-2", v1alpha1.Dissociated)).To(Succeed())
		lbs, err := s.GetAssociatedLoadBalancersForJob(ctx, "job-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(lbs).To(ConsistOf(v1alpha1.LoadBalancerId("lb-1")))
	})

	It("distinguishes targets by the full (lb,task,ip) key even when ips collide", func() {
		older := v1alpha1.TargetIdentifier{LoadBalancerId: "lb-1", TaskId: "dead-task", IPAddress: "1.1.1.1"}
		newer := v1alpha1.TargetIdentifier{LoadBalancerId: "lb-1", TaskId: "live-task", IPAddress: "1.1.1.1"}
		Expect(s.PutTargets(ctx, []v1alpha1.TargetRecord{
			{Identifier: older, State: v1alpha1.Deregistered},
			{Identifier: newer, State: v1alpha1.Registered},
		})).To(Succeed())

		targets, err := s.GetTargets(ctx, "lb-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(targets).To(ConsistOf(
			v1alpha1.TargetRecord{Identifier: older, State: v1alpha1.Deregistered},
			v1alpha1.TargetRecord{Identifier: newer, State: v1alpha1.Registered},
		))
	})

	It("scopes GetTargets to the requested load balancer", func() {
		Expect(s.PutTargets(ctx, []v1alpha1.TargetRecord{
			{Identifier: v1alpha1.TargetIdentifier{LoadBalancerId: "lb-1", TaskId: "t1", IPAddress: "1.1.1.1"}, State: v1alpha1.Registered},
			{Identifier: v1alpha1.TargetIdentifier{LoadBalancerId: "lb-2", TaskId: "t2", IPAddress: "2.2.2.2"}, State: v1alpha1.Registered},
		})).To(Succeed())

		targets, _ := s.GetTargets(ctx, "lb-1")
		Expect(targets).To(HaveLen(1))
		Expect(targets[0].Identifier.LoadBalancerId).To(Equal(v1alpha1.LoadBalancerId("lb-1")))
	})

	It("removes targets", func() {
		id := v1alpha1.TargetIdentifier{LoadBalancerId: "lb-1", TaskId: "t1", IPAddress: "1.1.1.1"}
		Expect(s.PutTargets(ctx, []v1alpha1.TargetRecord{{Identifier: id, State: v1alpha1.Registered}})).To(Succeed())
		Expect(s.RemoveTargets(ctx, []v1alpha1.TargetIdentifier{id})).To(Succeed())
		targets, _ := s.GetTargets(ctx, "lb-1")
		Expect(targets).To(BeEmpty())
	})
})
