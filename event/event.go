// Copyright 2026 LinkDAO
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventQueueSize = 20
)

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

type subscriber struct {
	ch     chan Event
	closed bool
}

// EventBus delivers domain events (stake opened, vote cast, proposal state
// change, execution dispatched) to in-process subscribers. Publish blocks
// on each subscriber channel, preserving event ordering per subscriber.
type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]*subscriber
	metrics     *eventMetrics
	lastSubId   EventSubscriberId
	logger      *slog.Logger
	mu          sync.RWMutex
}

func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]*subscriber),
		logger:      logger,
	}
	if promRegistry != nil {
		e.initMetrics(promRegistry)
	}
	return e
}

// Subscribe allows a consumer to receive events of a particular type via a channel
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub := &subscriber{
		ch: make(chan Event, EventQueueSize),
	}
	subId := e.lastSubId + 1
	e.lastSubId = subId
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(map[EventSubscriberId]*subscriber)
	}
	e.subscribers[eventType][subId] = sub
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
	}
	return subId, sub.ch
}

// SubscribeFunc allows a consumer to receive events of a particular type via a callback function
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	subId, evtCh := e.Subscribe(eventType)
	go func(evtCh <-chan Event, handlerFunc EventHandlerFunc) {
		for {
			evt, ok := <-evtCh
			if !ok {
				return
			}
			handlerFunc(evt)
		}
	}(evtCh, handlerFunc)
	return subId
}

// Unsubscribe stops delivery of events for a particular type for an existing subscriber
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	evtTypeSubs, ok := e.subscribers[eventType]
	if !ok {
		return
	}
	sub, ok := evtTypeSubs[subId]
	if !ok {
		return
	}
	delete(evtTypeSubs, subId)
	if len(evtTypeSubs) == 0 {
		delete(e.subscribers, eventType)
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(string(eventType)).Dec()
	}
}

// Publish allows a producer to send an event of a particular type to all subscribers
func (e *EventBus) Publish(eventType EventType, evt Event) {
	// Gather subscriber channels inside the read lock to avoid map races
	e.mu.RLock()
	subs := e.subscribers[eventType]
	chans := make([]chan Event, 0, len(subs))
	for _, sub := range subs {
		if !sub.closed {
			chans = append(chans, sub.ch)
		}
	}
	e.mu.RUnlock()
	for _, ch := range chans {
		ch <- evt
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

// Stop closes all subscriber channels and clears the subscribers map.
// This ensures that SubscribeFunc goroutines exit cleanly during shutdown.
func (e *EventBus) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, evtTypeSubs := range e.subscribers {
		for _, sub := range evtTypeSubs {
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
		}
	}
	e.subscribers = make(map[EventType]map[EventSubscriberId]*subscriber)
	if e.metrics != nil {
		e.metrics.subscribers.Reset()
	}
}
