package natsutil

import (
	"context"
	"testing"
	"time"

	"github.com/WessleyAI/partselect-assistant/pkg/natsutil/natstest"
	"github.com/nats-io/nats.go"
)

func TestNATS_PubSub(t *testing.T) {
	nc := natstest.Connect(t)

	type reload struct {
		Reason string `json:"reason"`
	}

	ch := make(chan reload, 1)
	sub, err := Subscribe(nc, "test.catalog.reload", func(ctx context.Context, m reload) {
		ch <- m
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "test.catalog.reload", reload{Reason: "seed"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Reason != "seed" {
			t.Fatalf("expected 'seed', got %q", got.Reason)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNATS_MalformedReported(t *testing.T) {
	nc := natstest.Connect(t)

	errs := make(chan error, 1)
	sub, err := Subscribe(nc, "test.malformed", func(ctx context.Context, m struct{}) {
		t.Error("handler must not run for malformed payloads")
	}, func(err error) { errs <- err })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := nc.Publish("test.malformed", []byte("{bad")); err != nil {
		t.Fatal(err)
	}
	select {
	case <-errs:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for decode error")
	}
}

func TestNATS_RepublishCarriesRetryCount(t *testing.T) {
	nc := natstest.Connect(t)

	counts := make(chan int, 1)
	sub, err := nc.Subscribe("test.retry", func(m *nats.Msg) { counts <- RetryCount(m) })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	orig := nats.NewMsg("test.retry")
	orig.Data = []byte(`{}`)
	if err := Republish(nc, orig, 2); err != nil {
		t.Fatal(err)
	}
	select {
	case n := <-counts:
		if n != 2 {
			t.Fatalf("expected retry count 2, got %d", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for republished message")
	}
}
