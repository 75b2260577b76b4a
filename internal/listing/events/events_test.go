package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

type recordingPublisher struct{ got []Event }

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.got = append(p.got, e)
	return nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("down") }

// go test -v --run TestNewEvent
func TestNewEvent(t *testing.T) {
	a := New(TypeSymbolCreated, "ABCUSDT")
	b := New(TypeSymbolCreated, "ABCUSDT")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.UTC, a.At.Location())
}

// go test -v --run TestKafkaPublisher
func TestKafkaPublisher(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w, topic: "listing.events", logger: zap.NewNop()}

	e := New(TypeOrderPlaced, "ABCUSDT")
	e.OrderID = "C02__1"
	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ABCUSDT", string(msg.Key))
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, "order.placed", string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, "C02__1", decoded.OrderID)

	w.err = errors.New("broker unavailable")
	assert.Error(t, p.Publish(context.Background(), e))
}

// go test -v --run TestMulti
func TestMulti(t *testing.T) {
	rec := &recordingPublisher{}
	m := Multi{failingPublisher{}, nil, rec, Nop{}}

	err := m.Publish(context.Background(), New(TypeSymbolListed, "ABCUSDT"))
	assert.Error(t, err)
	assert.Len(t, rec.got, 1, "a failing publisher must not starve the rest")
}

// go test -v --run TestHubBroadcast
func TestHubBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	e := New(TypeSymbolFinished, "ABCUSDT")
	require.NoError(t, hub.Publish(context.Background(), e))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, TypeSymbolFinished, got.Type)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
