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
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testEventType EventType = "test.event"

func TestSubscribePublish(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := NewEventBus(prometheus.NewRegistry(), nil)
	defer bus.Stop()

	subId, ch := bus.Subscribe(testEventType)
	bus.Publish(testEventType, NewEvent(testEventType, "payload"))

	select {
	case evt := <-ch:
		assert.Equal(t, testEventType, evt.Type)
		assert.Equal(t, "payload", evt.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	bus.Unsubscribe(testEventType, subId)
}

func TestSubscribeFunc(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := NewEventBus(nil, nil)

	var mu sync.Mutex
	var received []Event
	done := make(chan struct{})
	bus.SubscribeFunc(testEventType, func(evt Event) {
		mu.Lock()
		received = append(received, evt)
		if len(received) == 2 {
			close(done)
		}
		mu.Unlock()
	})

	bus.Publish(testEventType, NewEvent(testEventType, 1))
	bus.Publish(testEventType, NewEvent(testEventType, 2))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handler")
	}
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, 1, received[0].Data)
	assert.Equal(t, 2, received[1].Data)
}

func TestPublishNoSubscribers(t *testing.T) {
	bus := NewEventBus(nil, nil)
	defer bus.Stop()
	// Publishing with no subscribers must not block or panic
	bus.Publish(testEventType, NewEvent(testEventType, nil))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := NewEventBus(nil, nil)
	defer bus.Stop()

	subId, ch := bus.Subscribe(testEventType)
	bus.Unsubscribe(testEventType, subId)

	_, ok := <-ch
	assert.False(t, ok)
	// Publishing after unsubscribe must not block on the closed channel
	bus.Publish(testEventType, NewEvent(testEventType, nil))
}
