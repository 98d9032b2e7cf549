package service

import (
	"context"
	"errors"
	"sync"

	"github.com/mitcstore/mitc-api/internal/realtime"
)

// Subscription delivers full snapshots of a live query. Only the newest
// undelivered snapshot is kept.
type Subscription[T any] struct {
	updates chan T
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	err     error
}

type snapshotLoader[T any] func(ctx context.Context) (T, error)

// newSubscription loads an initial snapshot and reloads it each time listener fires.
// A failed load is reported to onError and delivered as empty, except when the caller
// lost access: then Updates is closed and Err reports why.
func newSubscription[T any](parent context.Context, listener *realtime.Listener, load snapshotLoader[T], empty T, onError func(error)) *Subscription[T] {
	ctx, cancel := context.WithCancel(parent)
	sub := &Subscription[T]{
		updates: make(chan T, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(sub.updates)
		defer close(sub.done)
		defer listener.Close()

		deliver := func() bool {
			value, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				if accessRevoked(err) {
					sub.err = err
					return false
				}
				onError(err)
				value = empty
			}
			return sub.offer(ctx, value)
		}

		if !deliver() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-listener.C():
				if !ok || !deliver() {
					return
				}
			}
		}
	}()

	return sub
}

// Updates returns the snapshot channel. It is closed after Cancel or when access is revoked.
func (s *Subscription[T]) Updates() <-chan T {
	return s.updates
}

// Err reports why the subscription ended on its own. It is nil while the subscription
// runs and after a plain Cancel. Once Updates is closed the result is final.
func (s *Subscription[T]) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Cancel stops delivery. No value is received after it returns. Safe to call repeatedly.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		for range s.updates {
		}
	})
}

func (s *Subscription[T]) offer(ctx context.Context, value T) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case s.updates <- value:
			return true
		default:
		}

		select {
		case <-s.updates:
		default:
		}
	}
}

func accessRevoked(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthenticated)
}
