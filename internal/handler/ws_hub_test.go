package handler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

func newTestConn(id string) *WSConn {
	return &WSConn{
		conn: nil, // no real connection for hub tests
		id:   id,
		send: make(chan []byte, 256),
	}
}

func recv(t *testing.T, c *WSConn) WSEvent {
	t.Helper()
	select {
	case msg := <-c.send:
		var event WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return event
	case <-time.After(time.Second):
		t.Fatalf("%s did not receive an event", c.id)
	}
	return WSEvent{}
}

type countingObserver struct {
	mu                  sync.Mutex
	connected, departed int
}

func (o *countingObserver) SpectatorConnected() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connected++
}

func (o *countingObserver) SpectatorDisconnected() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.departed++
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	obs := &countingObserver{}
	hub.SetObserver(obs)
	c := newTestConn("conn-1")

	hub.Register(c)
	if hub.ConnectionCount() != 1 {
		t.Errorf("expected 1 connection, got %d", hub.ConnectionCount())
	}

	hub.Unregister(c)
	hub.Unregister(c) // second call is a no-op
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections, got %d", hub.ConnectionCount())
	}
	if obs.connected != 1 || obs.departed != 1 {
		t.Errorf("observer saw %d connects, %d disconnects", obs.connected, obs.departed)
	}
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub()
	c := newTestConn("conn-1")
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Subscribe(c, "match-1")
	if hub.MatchSubscriberCount("match-1") != 1 {
		t.Errorf("expected 1 subscriber, got %d", hub.MatchSubscriberCount("match-1"))
	}

	hub.Unsubscribe(c, "match-1")
	if hub.MatchSubscriberCount("match-1") != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.MatchSubscriberCount("match-1"))
	}
}

func TestHubBroadcastMatchEvent(t *testing.T) {
	hub := NewHub()
	c1 := newTestConn("conn-1")
	c2 := newTestConn("conn-2")
	c3 := newTestConn("conn-3") // not subscribed

	for _, c := range []*WSConn{c1, c2, c3} {
		hub.Register(c)
		defer hub.Unregister(c)
	}
	hub.Subscribe(c1, "match-1")
	hub.Subscribe(c2, "match-1")

	hub.BroadcastMatchEvent("match-1", "construct_captured", map[string]string{"construct": "n01", "to": "red"})

	for _, c := range []*WSConn{c1, c2} {
		event := recv(t, c)
		if event.Type != "construct_captured" || event.MatchID != "match-1" {
			t.Errorf("unexpected event %+v", event)
		}
	}

	select {
	case <-c3.send:
		t.Error("conn-3 should not have received broadcast")
	default:
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	c := &WSConn{id: "slow", send: make(chan []byte, 1)}
	hub.Register(c)
	defer hub.Unregister(c)
	hub.Subscribe(c, "m")

	hub.BroadcastMatchEvent("m", "match_tick", nil)
	hub.BroadcastMatchEvent("m", "match_tick", nil) // must not block

	if len(c.send) != 1 {
		t.Errorf("expected 1 queued message, got %d", len(c.send))
	}
}

func TestHubUnregisterCleansUpSubscriptions(t *testing.T) {
	hub := NewHub()
	c := newTestConn("conn-1")
	hub.Register(c)
	hub.Subscribe(c, "match-1")
	hub.Subscribe(c, "match-2")

	hub.Unregister(c)

	if hub.MatchSubscriberCount("match-1") != 0 || hub.MatchSubscriberCount("match-2") != 0 {
		t.Errorf("expected no subscribers after unregister")
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newTestConn("conn")
			hub.Register(c)
			hub.Subscribe(c, "match-1")
			hub.BroadcastToMatch("match-1", WSEvent{Type: "test", MatchID: "match-1"})
			hub.Unsubscribe(c, "match-1")
			hub.Unregister(c)
		}()
	}

	wg.Wait()
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections after concurrent test, got %d", hub.ConnectionCount())
	}
}

type stubSnapshots map[string]*conquest.Snapshot

func (s stubSnapshots) Snapshot(_ context.Context, id string) (*conquest.Snapshot, error) {
	if snap, ok := s[id]; ok {
		return snap, nil
	}
	return nil, errors.New("not found")
}

func TestSubscribeSendsSnapshot(t *testing.T) {
	hub := NewHub()
	h := NewWSHandler(hub, nil, stubSnapshots{"m1": {Time: 3, Phase: conquest.PhasePlaying}})
	c := newTestConn("conn-1")
	hub.Register(c)
	defer hub.Unregister(c)

	h.handleMessage(c, []byte(`{"action":"subscribe","match_id":"m1"}`))
	if hub.MatchSubscriberCount("m1") != 1 {
		t.Fatal("subscribe did not register")
	}
	event := recv(t, c)
	if event.Type != EventMatchSnapshot || event.MatchID != "m1" {
		t.Errorf("expected snapshot event, got %+v", event)
	}

	h.handleMessage(c, []byte(`{"action":"subscribe","match_id":"unknown"}`))
	if hub.MatchSubscriberCount("unknown") != 1 {
		t.Error("unknown matches may still be subscribed to")
	}
	select {
	case <-c.send:
		t.Error("no snapshot should be sent for an unknown match")
	default:
	}

	h.handleMessage(c, []byte(`{"action":"unsubscribe","match_id":"m1"}`))
	h.handleMessage(c, []byte(`not json`))
	if hub.MatchSubscriberCount("m1") != 0 {
		t.Error("unsubscribe did not remove the connection")
	}
}
