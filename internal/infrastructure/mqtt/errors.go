package mqtt

import "errors"

// Sentinel errors for MQTT operations.
// Use errors.Is to check for these conditions.
var (
	// ErrNotConnected indicates an operation was attempted while disconnected.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed indicates a message could not be published.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed indicates a subscription could not be established.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed indicates a subscription could not be removed.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS indicates a QoS level outside the valid range (0-2).
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	// ErrInvalidTopic indicates an empty or malformed topic.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrPayloadTooLarge indicates a payload exceeding the size limit.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
)
