// Package channels has non-blocking send helpers and a fan-out broadcaster.
package channels

import (
	"errors"
	"time"
)

var (
	// ErrChannelClosed is returned when sending on a closed channel.
	ErrChannelClosed = errors.New("channel closed")
	// ErrChannelTimeout is returned when a timed send gives up.
	ErrChannelTimeout = errors.New("send timeout")
	// ErrChannelFull is returned when a non-blocking send finds no room.
	ErrChannelFull = errors.New("channel full")
)

// SendNonBlock sends msg if ch has room. A closed channel reports
// ErrChannelClosed instead of panicking.
func SendNonBlock[T any](ch chan<- T, msg T) (err error) {
	defer recoverClosed(&err)

	select {
	case ch <- msg:
		return nil
	default:
		return ErrChannelFull
	}
}

// SendWithTimeout waits up to timeout for room on ch.
func SendWithTimeout[T any](ch chan<- T, msg T, timeout time.Duration) (err error) {
	defer recoverClosed(&err)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- msg:
		return nil
	case <-timer.C:
		return ErrChannelTimeout
	}
}

func recoverClosed(err *error) {
	if r := recover(); r != nil {
		*err = ErrChannelClosed
	}
}
