/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package pubsub provides small fan-out subscription sets. A SubscriptionSet
// delivers each notification to every live subscriber in the order Notify
// is called; cancelling a subscription closes its sink channel.
package pubsub

import (
	"sync"
)

// Subscription is one subscriber's membership in a SubscriptionSet. Its
// sink channel stays open until Cancel. Delivery and cancellation exclude
// each other, so the sink is never written after it has been closed.
type Subscription[NotificationT any] struct {
	owner *SubscriptionSet[NotificationT]

	// lock guards sink; a nil sink marks the subscription cancelled.
	lock sync.Mutex
	sink chan<- NotificationT
}

// Cancel removes the subscription from its set and closes the sink channel.
// Cancel is idempotent.
func (s *Subscription[NotificationT]) Cancel() {
	s.lock.Lock()
	sink := s.sink
	s.sink = nil
	s.lock.Unlock()

	if sink == nil {
		return
	}

	s.owner.remove(s)
	close(sink)
}

// Cancelled reports whether the subscription has been cancelled.
func (s *Subscription[NotificationT]) Cancelled() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.sink == nil
}

// deliver sends one notification to the sink, blocking until the subscriber
// receives it. Subscribers must drain their sink promptly. Delivery to a
// cancelled subscription is a no-op.
func (s *Subscription[NotificationT]) deliver(n NotificationT) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.sink == nil {
		return
	}

	s.sink <- n
}
