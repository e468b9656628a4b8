// Package events publishes session snapshots on a watermill pub/sub so other
// goroutines (a UI, a recorder) can follow the conversation.
package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/ragkb-chat/core/internal/rag"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

const TopicState = "rag.state"

// Source is anything that reports session snapshots.
type Source interface {
	Subscribe(fn func(rag.Snapshot)) func()
}

// NewPubSub returns an in-process pub/sub logging through logx.
func NewPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, loggerAdapter{})
}

// Bridge forwards every snapshot of src to topic on pub. The returned
// function detaches it.
func Bridge(src Source, pub message.Publisher, topic string) func() {
	return src.Subscribe(func(s rag.Snapshot) {
		payload, err := json.Marshal(s)
		if err != nil {
			logx.Error().Err(err).Msg("failed to encode snapshot")
			return
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		if err := pub.Publish(topic, msg); err != nil {
			logx.Error().Err(err).Str("topic", topic).Msg("failed to publish snapshot")
		}
	})
}

// Watch decodes snapshots from topic until ctx is done.
func Watch(ctx context.Context, sub message.Subscriber, topic string) (<-chan rag.Snapshot, error) {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan rag.Snapshot)
	go func() {
		defer close(out)
		for msg := range messages {
			var s rag.Snapshot
			if err := json.Unmarshal(msg.Payload, &s); err != nil {
				logx.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable snapshot")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
