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

// Package events implements the broadcast of TargetTransition records from
// the reconciliation loop to the external batching/registration engine.
package events

import (
	"sync"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
)

// Stream is a multi-producer, multi-consumer broadcaster of TargetTransition.
// Publish never blocks the calling (reconciliation) goroutine: each
// subscriber owns a growable queue drained by its own dispatch goroutine, so
// a slow or stalled consumer cannot back up a tick. Subscribing late sees
// only subsequently published events. A Stream is safe for concurrent use.
type Stream struct {
	mu          sync.Mutex
	subscribers []*subscriber
	closed      bool
}

type subscriber struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []v1alpha1.TargetTransition
	closed bool
	out    chan v1alpha1.TargetTransition
}

// NewStream constructs an empty Stream with no subscribers.
func NewStream() *Stream {
	return &Stream{}
}

// Subscribe returns a channel of subsequently published transitions. The
// channel is closed when the Stream is closed.
func (s *Stream) Subscribe() <-chan v1alpha1.TargetTransition {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscriber{out: make(chan v1alpha1.TargetTransition)}
	sub.cond = sync.NewCond(&sub.mu)
	if s.closed {
		close(sub.out)
		return sub.out
	}
	s.subscribers = append(s.subscribers, sub)
	go sub.dispatch()
	return sub.out
}

// Publish fans t out to every current subscriber. It never blocks on a slow
// reader and is a no-op once the Stream has been closed.
func (s *Stream) Publish(t v1alpha1.TargetTransition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, sub := range s.subscribers {
		sub.push(t)
	}
}

// Close drains and closes every subscriber channel. Close is idempotent.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, sub := range s.subscribers {
		sub.closeQueue()
	}
}

func (sub *subscriber) push(t v1alpha1.TargetTransition) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.queue = append(sub.queue, t)
	sub.cond.Signal()
}

func (sub *subscriber) closeQueue() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.closed = true
	sub.cond.Signal()
}

// dispatch drains sub's queue onto its output channel. The blocking send to
// out happens on this goroutine, never on the publisher's.
func (sub *subscriber) dispatch() {
	for {
		sub.mu.Lock()
		for len(sub.queue) == 0 && !sub.closed {
			sub.cond.Wait()
		}
		if len(sub.queue) == 0 && sub.closed {
			sub.mu.Unlock()
			close(sub.out)
			return
		}
		item := sub.queue[0]
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()
		sub.out <- item
	}
}
