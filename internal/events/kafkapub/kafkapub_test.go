package kafkapub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/mohammed-shakir/mapstate/internal/events"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_EncodesEventAsJSON(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, nil)
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "map-state" {
			return fmt.Errorf("topic=%q", msg.Topic)
		}
		b, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev events.Event
		if err := json.Unmarshal(b, &ev); err != nil {
			return err
		}
		if ev.Action != "addSortItem" || ev.Session != "s1" {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		return nil
	})

	p := NewWithProducer(prod, "map-state", 4, quietLogger())
	p.Publish(events.New("s1", "addSortItem"))
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublisher_ForwardDrainsUntilChannelCloses(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, nil)
	prod.ExpectInputAndSucceed()

	p := NewWithProducer(prod, "map-state", 4, quietLogger())
	bus := events.NewBus(4)
	ch := bus.Subscribe()

	bus.Publish(events.New("s1", "setFilter"))
	bus.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		p.Forward(context.Background(), ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward did not return after channel close")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublisher_ForwardStopsOnContextCancel(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, nil)
	p := NewWithProducer(prod, "map-state", 4, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Forward(ctx, make(chan events.Event))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward did not return after cancel")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
