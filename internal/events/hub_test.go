package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWS struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (f *fakeWS) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeWS) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeWS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	require.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_BroadcastFiltersByPlayer(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	everyone := &fakeWS{}
	alice := &fakeWS{}
	hub.register <- &Client{conn: everyone}
	aliceClient := &Client{conn: alice, player: "alice"}
	hub.register <- aliceClient

	assert.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Publish(ctx, New("play", 1, at).With("player", "alice")))
	require.NoError(t, hub.Publish(ctx, New("play", 2, at).With("player", "bob")))
	require.NoError(t, hub.Publish(ctx, New("fund_house", 3, at)))

	assert.Eventually(t, func() bool { return everyone.count() == 3 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return alice.count() == 1 }, time.Second, 5*time.Millisecond)

	var msg struct {
		Type string `json:"type"`
		Data Event  `json:"data"`
	}
	alice.mu.Lock()
	require.NoError(t, json.Unmarshal(alice.messages[0], &msg))
	alice.mu.Unlock()
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, uint64(1), msg.Data.Height)

	hub.Unregister(aliceClient)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	alice.mu.Lock()
	assert.True(t, alice.closed)
	alice.mu.Unlock()
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	hub := NewHub()

	for i := 0; i < 100; i++ {
		require.NoError(t, hub.Publish(context.Background(), New("play", uint64(i), at)))
	}

	done := make(chan struct{})
	go func() {
		_ = hub.Publish(context.Background(), New("play", 101, at))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Publish blocked on a full channel")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	conn := &fakeWS{}
	hub.register <- &Client{conn: conn}
	cancel()
	<-stopped

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.True(t, conn.closed)
	assert.Equal(t, 0, hub.ClientCount())
}
