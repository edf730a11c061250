package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(opts ...HubOption) *Hub {
	return NewHub(slog.New(slog.DiscardHandler), opts...)
}

func drain(sub *Subscriber) []*Event {
	var out []*Event
	for {
		select {
		case evt := <-sub.C():
			out = append(out, evt)
		default:
			return out
		}
	}
}

func TestHub_RoomScoping(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	alice := hub.Subscribe("alice", UserRoom("alice"))
	bob := hub.Subscribe("bob", UserRoom("bob"), RoomTechnicians)

	hub.Publish(UserRoom("alice"), "repair_accepted", "for alice")
	hub.Publish(RoomTechnicians, "incoming_repair", "for technicians")

	aliceEvents := drain(alice)
	require.Len(t, aliceEvents, 1)
	assert.Equal(t, "repair_accepted", aliceEvents[0].Name)
	assert.Equal(t, UserRoom("alice"), aliceEvents[0].Room)

	bobEvents := drain(bob)
	require.Len(t, bobEvents, 1)
	assert.Equal(t, "incoming_repair", bobEvents[0].Name)
}

func TestHub_PublishToEmptyRoom(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	// No subscribers, nothing to deliver, nothing to block on.
	hub.Publish(RepairRoom("r-1"), "repair_updated", nil)

	published, dropped := hub.Stats()
	assert.Zero(t, published)
	assert.Zero(t, dropped)
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := newTestHub(WithBufferSize(2))
	defer hub.Close()

	sub := hub.Subscribe("slow", RepairRoom("r-1"))

	for i := 0; i < 5; i++ {
		hub.Publish(RepairRoom("r-1"), "repair_updated", i)
	}

	events := drain(sub)
	assert.Len(t, events, 2)

	published, dropped := hub.Stats()
	assert.Equal(t, int64(2), published)
	assert.Equal(t, int64(3), dropped)
}

func TestHub_JoinAndLeave(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	sub := hub.Subscribe("conn-1", UserRoom("u-1"))
	hub.Join(RepairRoom("r-1"), sub)
	assert.ElementsMatch(t, []string{UserRoom("u-1"), RepairRoom("r-1")}, sub.Rooms())

	hub.Publish(RepairRoom("r-1"), "repair_updated", nil)
	assert.Len(t, drain(sub), 1)

	hub.Leave(RepairRoom("r-1"), "conn-1")
	hub.Publish(RepairRoom("r-1"), "repair_updated", nil)
	assert.Empty(t, drain(sub))

	// The emptied room is gone.
	assert.Equal(t, 1, hub.RoomCount())
}

func TestHub_RemoveClosesSubscriber(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	sub := hub.Subscribe("conn-1", UserRoom("u-1"), RoomTechnicians)
	hub.Remove("conn-1")

	_, open := <-sub.C()
	assert.False(t, open)
	assert.Equal(t, 0, hub.RoomCount())

	// Publishing after removal delivers nowhere.
	hub.Publish(UserRoom("u-1"), "repair_accepted", nil)

	// Removing again is harmless.
	hub.Remove("conn-1")
}

func TestHub_CloseClosesAllSubscribers(t *testing.T) {
	hub := newTestHub()

	a := hub.Subscribe("a", RoomTechnicians)
	b := hub.Subscribe("b", RoomTechnicians)

	hub.Close()

	_, openA := <-a.C()
	_, openB := <-b.C()
	assert.False(t, openA)
	assert.False(t, openB)
	assert.Equal(t, 0, hub.RoomCount())
}

// A publish racing a disconnect must degrade to a dropped event, never
// a send on a closed channel.
func TestHub_ConcurrentPublishAndRemove(t *testing.T) {
	hub := newTestHub(WithBufferSize(1))
	defer hub.Close()

	const subscribers = 64
	for i := 0; i < subscribers; i++ {
		hub.Subscribe(fmt.Sprintf("conn-%d", i), RoomTechnicians)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			hub.Publish(RoomTechnicians, "incoming_repair", i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < subscribers; i++ {
			hub.Remove(fmt.Sprintf("conn-%d", i))
		}
	}()
	wg.Wait()

	assert.Equal(t, 0, hub.SubscriberCount(RoomTechnicians))
}

func TestSubscriber_SendAfterClose(t *testing.T) {
	sub := newSubscriber("x", 1)
	sub.Close()
	assert.False(t, sub.send(&Event{}))
	sub.Close()
}
