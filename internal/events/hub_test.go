package events_test

import (
	"sync"
	"testing"
	"time"

	"skysort/internal/events"
	"skysort/internal/logging"
)

func collect(t *testing.T, ch <-chan events.Event, want int) []events.Event {
	t.Helper()
	var got []events.Event
	timeout := time.After(2 * time.Second)
	for len(got) < want {
		select {
		case event, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, event)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(got), want)
		}
	}
	return got
}

func TestHubDeliversInOrder(t *testing.T) {
	hub := events.NewHub(logging.NewNop())
	defer hub.Close()

	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(events.BatchStarted{BatchID: 1, TotalFiles: 3})
	hub.Publish(events.FileAnalyzed{BatchID: 1, Filename: "a.mp4", Dominant: "freefall"})
	hub.Publish(events.BatchCompleted{BatchID: 1, Total: 3})

	got := collect(t, ch, 3)
	if _, ok := got[0].(events.BatchStarted); !ok {
		t.Fatalf("first event = %T", got[0])
	}
	if file, ok := got[1].(events.FileAnalyzed); !ok || file.Filename != "a.mp4" {
		t.Fatalf("second event = %#v", got[1])
	}
	if _, ok := got[2].(events.BatchCompleted); !ok {
		t.Fatalf("third event = %T", got[2])
	}
}

func TestHubFansOutToAllSubscribers(t *testing.T) {
	hub := events.NewHub(logging.NewNop())
	defer hub.Close()

	first, cancelFirst := hub.Subscribe()
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe()
	defer cancelSecond()

	hub.Publish(events.FileFailed{BatchID: 7, Filename: "b.mp4"})

	for _, ch := range []<-chan events.Event{first, second} {
		got := collect(t, ch, 1)
		failed, ok := got[0].(events.FileFailed)
		if !ok || failed.BatchID != 7 {
			t.Fatalf("event = %#v", got[0])
		}
	}
}

func TestHubCloseDrainsQueuedEvents(t *testing.T) {
	hub := events.NewHub(logging.NewNop())
	ch, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < 10; i++ {
		hub.Publish(events.FileAnalyzed{BatchID: int64(i)})
	}
	hub.Close()

	if got := collect(t, ch, 10); len(got) != 10 {
		t.Fatalf("delivered %d events, want 10", len(got))
	}
}

func TestHubPublishAfterCloseIsSafe(t *testing.T) {
	hub := events.NewHub(logging.NewNop())
	hub.Close()

	// Must not panic or block.
	hub.Publish(events.AnalysisError{FolderPath: "/tmp/card"})

	ch, cancel := hub.Subscribe()
	defer cancel()
	if _, ok := <-ch; ok {
		t.Fatal("subscription after close should be closed immediately")
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := events.NewHub(logging.NewNop())
	defer hub.Close()

	ch, cancel := hub.Subscribe()
	cancel()
	cancel() // second call is a no-op

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	hub.Publish(events.BatchStarted{BatchID: 1})
}

func TestHubSubscribeCancelDuringDelivery(t *testing.T) {
	hub := events.NewHub(logging.NewNop())
	defer hub.Close()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					hub.Publish(events.FileAnalyzed{BatchID: 1})
				}
			}
		}()
	}

	// Churn subscriptions while the publishers flood the hub. Cancelling
	// mid-delivery must never panic the consumer goroutine.
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_, cancel := hub.Subscribe()
				cancel()
			}
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	time.Sleep(50 * time.Millisecond)
	close(done)
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("subscribe/cancel churn did not finish")
	}
}

func TestHubConcurrentPublishers(t *testing.T) {
	hub := events.NewHub(logging.NewNop())
	ch, cancel := hub.Subscribe()
	defer cancel()

	const publishers = 4
	const perPublisher = 10
	for p := 0; p < publishers; p++ {
		go func(p int) {
			for i := 0; i < perPublisher; i++ {
				hub.Publish(events.FileAnalyzed{BatchID: int64(p)})
			}
		}(p)
	}

	got := collect(t, ch, publishers*perPublisher)
	hub.Close()
	if len(got) != publishers*perPublisher {
		t.Fatalf("delivered %d events", len(got))
	}
}
