package eventbus

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/keyclash/internal/keybinds"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishRoutesByTopic(t *testing.T) {
	bus := New()
	defer bus.Close()

	rules := bus.Subscribe(TopicRulesChanged)
	all := bus.Subscribe()

	bus.Publish(TopicShortcutsUpdated, ShortcutsUpdated{Owner: "com.tinyspeck.slackmacgap", Count: 12})
	bus.Publish(TopicRulesChanged, RulesChanged{Owner: "Slack", Count: 1})

	ev := receive(t, rules)
	assert.Equal(t, TopicRulesChanged, ev.Topic)
	assert.Equal(t, RulesChanged{Owner: "Slack", Count: 1}, ev.Payload)
	assert.NotEmpty(t, ev.ID)

	assert.Equal(t, TopicShortcutsUpdated, receive(t, all).Topic)
	assert.Equal(t, TopicRulesChanged, receive(t, all).Topic)
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := New()
	defer bus.Close()

	sub := bus.SubscribeBuffered(1, TopicGestureDetected)
	for i := 0; i < 10; i++ {
		bus.PublishGesture(keybinds.ModCommand, time.Now())
	}

	stats := bus.Stats()
	assert.Equal(t, uint64(10), stats.Published)
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, uint64(9), stats.Dropped)

	ev := receive(t, sub)
	assert.Equal(t, "⌘", ev.Payload.(GestureDetected).Modifier)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	defer bus.Close()

	sub := bus.Subscribe()
	bus.Unsubscribe(sub)
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Stats().Subscribers)

	// Publishing with no subscribers is fine
	bus.Publish(TopicConflictFound, ConflictFound{})
	bus.Unsubscribe(sub)
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)

	bus.Publish(TopicRulesChanged, RulesChanged{})
	assert.Equal(t, uint64(0), bus.Stats().Published)

	late := bus.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok)
	bus.Close()
}

func TestBridgeStreamsEvents(t *testing.T) {
	bus := New()
	defer bus.Close()

	server := httptest.NewServer(NewBridge(bus))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?topic=rules.changed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return bus.Stats().Subscribers == 1 }, time.Second, 10*time.Millisecond)

	bus.Publish(TopicShortcutsUpdated, ShortcutsUpdated{Owner: "ignored"})
	bus.Publish(TopicRulesChanged, RulesChanged{Owner: "Slack", Count: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame struct {
		Topic   Topic        `json:"topic"`
		Payload RulesChanged `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, TopicRulesChanged, frame.Topic)
	assert.Equal(t, RulesChanged{Owner: "Slack", Count: 2}, frame.Payload)
}
