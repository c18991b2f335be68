package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func countEvent(msgs []string, name string) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m, "\nevent: "+name+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	require.Equal(t, 0, b.ClientCount())

	ch := b.Subscribe()
	require.Equal(t, 1, b.ClientCount())

	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.ClientCount())
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "note.created", Data: noteData{ID: 7, Title: "Seven"}})

	select {
	case msg := <-ch:
		s := string(msg)
		assert.True(t, strings.HasPrefix(s, "id: 1\nevent: note.created\n"), s)
		assert.Contains(t, s, `"id":7`)
		assert.Contains(t, s, `"title":"Seven"`)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishNoteEvent_GraphThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent(NoteEvent{Kind: NoteCreated, NoteID: 1, Title: "A", LinksChanged: true})
	b.PublishNoteEvent(NoteEvent{Kind: NoteUpdated, NoteID: 2, Title: "B", LinksChanged: true})

	msgs := drain(ch)
	assert.Equal(t, 1, countEvent(msgs, "note.created"))
	assert.Equal(t, 1, countEvent(msgs, "note.updated"))
	assert.Equal(t, 1, countEvent(msgs, "graph.updated"), "second graph event is throttled")
}

func TestPublishNoteEvent_NoGraphWithoutLinkChange(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent(NoteEvent{Kind: NoteUpdated, NoteID: 3, Title: "C"})
	b.PublishNoteEvent(NoteEvent{Kind: NoteLinked, NoteID: 3, LinksChanged: true})

	msgs := drain(ch)
	require.Len(t, msgs, 2)
	assert.Equal(t, "id: 1\nevent: note.updated\ndata: {\"id\":3,\"title\":\"C\"}\n\n", msgs[0])
	assert.Equal(t, "id: 2\nevent: graph.updated\ndata: {\"id\":3}\n\n", msgs[1])
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, b.ClientCount(), "handler should subscribe")

	b.PublishNoteEvent(NoteEvent{Kind: NoteDeleted, NoteID: 9})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event: note.deleted")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, b.ClientCount(), "client not cleaned up after disconnect")
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	b.heartbeat = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	b.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), ": keepalive\n\n")
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Subscriber buffer holds 64; the rest must be dropped, not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: noteData{ID: int64(i)}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	require.Equal(t, 1, b.ClientCount())

	b.Close()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected subscriber channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	assert.Equal(t, 0, b.ClientCount())

	b.Publish(Event{Type: "note.updated", Data: noteData{ID: 1}})
	b.PublishNoteEvent(NoteEvent{Kind: NoteUpdated, NoteID: 1})
	b.Close()
}
