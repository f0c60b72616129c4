/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package pubsub

import (
	"sync"

	"github.com/usvc-dev/dapwire/pkg/maps"
)

// SubscriptionSet manages a set of subscriptions that share the same source
// of notifications. The owner pushes notifications via Notify; every live
// subscription receives each notification, in Notify call order.
type SubscriptionSet[NotificationT any] struct {
	// Membership is keyed by the subscription itself.
	subscriptions map[*Subscription[NotificationT]]struct{}

	mutex sync.Mutex
}

func NewSubscriptionSet[NotificationT any]() *SubscriptionSet[NotificationT] {
	return &SubscriptionSet[NotificationT]{
		subscriptions: make(map[*Subscription[NotificationT]]struct{}),
	}
}

func (ss *SubscriptionSet[NotificationT]) Subscribe(sink chan<- NotificationT) *Subscription[NotificationT] {
	sub := &Subscription[NotificationT]{owner: ss, sink: sink}

	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	ss.subscriptions[sub] = struct{}{}
	return sub
}

// Notify delivers n to every subscription that is live at the time of the
// call. Delivery happens outside the set lock, so a slow subscriber never
// blocks Subscribe or Cancel on other subscriptions.
func (ss *SubscriptionSet[NotificationT]) Notify(n NotificationT) {
	ss.mutex.Lock()
	currentSubs := maps.Keys(ss.subscriptions)
	ss.mutex.Unlock()

	for _, sub := range currentSubs {
		sub.deliver(n)
	}
}

// Len returns the number of live subscriptions.
func (ss *SubscriptionSet[NotificationT]) Len() int {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	return len(ss.subscriptions)
}

func (ss *SubscriptionSet[NotificationT]) CancelAll() {
	ss.mutex.Lock()
	currentSubs := maps.Keys(ss.subscriptions)
	clear(ss.subscriptions)
	ss.mutex.Unlock()

	for _, sub := range currentSubs {
		sub.Cancel()
	}
}

func (ss *SubscriptionSet[NotificationT]) remove(sub *Subscription[NotificationT]) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	delete(ss.subscriptions, sub) // No-op if the subscription is already gone.
}
