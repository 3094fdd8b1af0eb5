package mqtt

import "errors"

var (
	// ErrConnectionFailed wraps the reason Connect could not reach the broker.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned while the link is down, including between
	// paho's reconnect attempts.
	ErrNotConnected = errors.New("mqtt: not connected")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidTopic and ErrInvalidQoS reject arguments before anything is
	// sent. QoS must be 0, 1 or 2.
	ErrInvalidTopic = errors.New("mqtt: empty topic")
	ErrInvalidQoS   = errors.New("mqtt: invalid QoS")

	// ErrTimeout is wrapped when the broker does not acknowledge in time.
	ErrTimeout = errors.New("mqtt: timed out")
)
