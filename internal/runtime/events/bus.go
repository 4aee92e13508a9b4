// Package events carries the bridge's push routes. Topics are route names
// such as "companion.document.download.response"; payloads are JSON. The bus
// rides Watermill's in-process gochannel pub/sub so subscribers on any side
// of the bridge observe the same stream.
package events

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/supportcompanion/companion/internal/runtime/ids"
	"github.com/supportcompanion/companion/internal/runtime/jsoncodec"
	"github.com/supportcompanion/companion/internal/runtime/logging"
)

// Bus is a thin facade over a gochannel pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger logging.ServiceLogger

	mu     sync.Mutex
	closed bool
}

// NewBus constructs an in-process event bus.
func NewBus(logger logging.ServiceLogger) *Bus {
	if logger == nil {
		logger = logging.Nop()
	}
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, logging.NewWatermillAdapter(logger))
	return &Bus{pubsub: pubsub, logger: logger}
}

// Publish encodes the payload and emits it on the topic. Publishing after
// Close is a logged no-op.
func (b *Bus) Publish(topic string, payload any) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.logger.Trace("publish on closed bus", logging.LogFields{"topic": topic})
		return nil
	}
	b.mu.Unlock()

	data, err := jsoncodec.Marshal(payload)
	if err != nil {
		return err
	}
	msg := message.NewMessage(ids.CreateULID(), data)
	return b.pubsub.Publish(topic, msg)
}

// Subscribe invokes fn with each raw payload published on the topic until the
// context is cancelled or the returned cancel function is called.
func (b *Bus) Subscribe(ctx context.Context, topic string, fn func(payload []byte)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return nil, err
	}
	go func() {
		for msg := range msgs {
			fn(msg.Payload)
			msg.Ack()
		}
	}()
	return cancel, nil
}

// Close shuts the underlying pub/sub down. In-flight subscribers drain and
// stop.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}
