package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/willemschots/cardhub/internal/events"
)

type payload struct {
	CardID string `json:"cardId"`
}

func Test_Memory_Publish(t *testing.T) {
	t.Run("ok, events are kept in order", func(t *testing.T) {
		m := events.NewMemory()

		for _, subj := range []string{"cardhub.cards.created", "cardhub.cards.deleted"} {
			err := m.Publish(context.Background(), subj, payload{CardID: "abc"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		got := m.Events()
		if len(got) != 2 || got[0].Subject != "cardhub.cards.created" || got[1].Subject != "cardhub.cards.deleted" {
			t.Fatalf("unexpected events: %+v", got)
		}

		var p payload
		err := json.Unmarshal(got[0].Data, &p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if p.CardID != "abc" {
			t.Errorf("got card id %q", p.CardID)
		}
	})

	t.Run("fail, value can not be encoded", func(t *testing.T) {
		m := events.NewMemory()

		err := m.Publish(context.Background(), "cardhub.cards.created", make(chan int))
		if err == nil {
			t.Fatalf("expected error, got nil")
		}

		if len(m.Events()) != 0 {
			t.Errorf("expected no events")
		}
	})
}

// Test_JetStream_Publish needs a NATS server with JetStream enabled,
// for example: docker run -p 4222:4222 nats -js
func Test_JetStream_Publish(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}

	p, err := events.Connect(url, nats.Timeout(5*time.Second))
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(p.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.Publish(ctx, "cardhub.test.published", payload{CardID: "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func Test_JetStream_Subscribe(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}

	js, err := events.Connect(url, nats.Timeout(5*time.Second))
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(js.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	subject := "cardhub.test.subscribed"
	received := make(chan string, 2)
	calls := 0
	sub, err := js.Subscribe(ctx, subject, "test-"+strconv.FormatInt(time.Now().UnixNano(), 10), func(_ context.Context, data []byte) error {
		calls++
		received <- string(data)
		if calls == 1 {
			return errors.New("first delivery fails")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer sub.Close()

	err = js.Publish(ctx, subject, payload{CardID: "abc"})
	if err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	// A failed message is delivered again.
	for range 2 {
		select {
		case got := <-received:
			if got != `{"cardId":"abc"}` {
				t.Errorf("unexpected data %s", got)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for delivery")
		}
	}
}
