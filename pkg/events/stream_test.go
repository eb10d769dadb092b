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

package events_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
	"github.com/aws/lb-target-reconciler/pkg/events"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events")
}

var _ = Describe("Stream", func() {
	var s *events.Stream
	var transition v1alpha1.TargetTransition

	BeforeEach(func() {
		s = events.NewStream()
		transition = v1alpha1.TargetTransition{
			Identifier:   v1alpha1.TargetIdentifier{LoadBalancerId: "lb-1", TaskId: "t1", IPAddress: "1.1.1.1"},
			DesiredState: v1alpha1.Registered,
			Priority:     v1alpha1.Low,
			Reason:       v1alpha1.MissingInLb,
		}
	})

	It("delivers a published transition to a subscriber", func() {
		ch := s.Subscribe()
		s.Publish(transition)
		Eventually(ch).Should(Receive(Equal(transition)))
	})

	It("fans a single publish out to every subscriber", func() {
		a := s.Subscribe()
		b := s.Subscribe()
		s.Publish(transition)
		Eventually(a).Should(Receive(Equal(transition)))
		Eventually(b).Should(Receive(Equal(transition)))
	})

	It("does not deliver events published before subscription", func() {
		s.Publish(transition)
		ch := s.Subscribe()
		Consistently(ch, 50*time.Millisecond).ShouldNot(Receive())
	})

	It("does not block the publisher when a subscriber is not draining", func() {
		_ = s.Subscribe()
		done := make(chan struct{})
		go func() {
			for i := 0; i < 1000; i++ {
				s.Publish(transition)
			}
			close(done)
		}()
		Eventually(done, time.Second).Should(BeClosed())
	})

	It("closes every subscriber channel on Close", func() {
		ch := s.Subscribe()
		s.Close()
		Eventually(ch).Should(BeClosed())
	})

	It("closes new subscribers immediately once already closed", func() {
		s.Close()
		ch := s.Subscribe()
		Eventually(ch).Should(BeClosed())
	})

	It("tolerates a second Close call", func() {
		s.Close()
		Expect(func() { s.Close() }).NotTo(Panic())
	})
})
