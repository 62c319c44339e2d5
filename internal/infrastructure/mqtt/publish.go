package mqtt

import (
	"context"
	"fmt"
)

// maxPayloadSize is the maximum allowed payload size (1 MB).
// Large registry snapshots fit comfortably; anything bigger is a bug.
const maxPayloadSize = 1024 * 1024

// Publish sends a message to the specified topic.
//
// It validates the topic and payload, then publishes with the configured
// QoS. The call blocks until the broker acknowledges the message (QoS > 0)
// or the publish timeout elapses.
//
// Parameters:
//   - ctx: Context for cancellation
//   - topic: Destination topic (no wildcards)
//   - payload: Message body (max 1 MB)
//   - retained: Whether the broker should retain the message
//
// Returns:
//   - error: ErrNotConnected, ErrInvalidTopic, ErrPayloadTooLarge, or
//     ErrPublishFailed wrapped with detail
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	if err := ValidateTopic(topic); err != nil {
		return fmt.Errorf("%w: %q", err, topic)
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, payload)

	select {
	case <-ctx.Done():
		return fmt.Errorf("publishing to %q: %w", topic, ctx.Err())
	case <-token.Done():
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: topic %q: %w", ErrPublishFailed, topic, err)
	}
	return nil
}
