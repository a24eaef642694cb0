package permissions

import (
	"context"
	"io"
	"iter"
	"sync"
)

// Stream is the single-consumer sequence of results for one Request call.
//
// The producer side never blocks: results are queued without bound until
// the consumer reads them. The stream ends exactly once, with io.EOF after a
// complete negotiation or with the error that stopped it.
type Stream struct {
	mu     sync.Mutex
	queue  []Result
	closed bool
	err    error
	ready  chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		ready:  make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// push queues r for the consumer. Pushes after close are dropped.
func (s *Stream) push(r Result) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, r)
	s.mu.Unlock()
	s.signal()
}

// close ends the sequence. Only the first call has an effect.
func (s *Stream) close(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	s.mu.Unlock()
	s.signal()
}

func (s *Stream) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Next returns the next result. It blocks until a result is available, the
// stream ends, or ctx is done. At a clean end it returns io.EOF; if the
// negotiation failed it returns that failure once the queued results are
// drained.
func (s *Stream) Next(ctx context.Context) (Result, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			r := s.queue[0]
			s.queue[0] = Result{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return r, nil
		}
		if s.closed {
			err := s.err
			s.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return Result{}, err
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

// All returns an iterator over the remaining results. Iteration stops after
// the last result; a failure is yielded once as a zero Result with a non-nil
// error.
func (s *Stream) All(ctx context.Context) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		for {
			r, err := s.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Result{}, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Collect reads the stream to its end. On failure it returns the results
// read so far together with the error.
func (s *Stream) Collect(ctx context.Context) (Results, error) {
	var out Results
	for r, err := range s.All(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Cancel abandons the stream. The producer stops, releases any host surface
// it holds, and the stream ends with ErrCanceled unless it already ended.
func (s *Stream) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Done is closed once the producer has exited and released the host surface.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// closedStream returns a stream that has already ended with err.
func closedStream(err error) *Stream {
	s := newStream(nil)
	s.close(err)
	close(s.done)
	return s
}

// AllGranted consumes s and reports whether every result was granted.
func AllGranted(ctx context.Context, s *Stream) (bool, error) {
	rs, err := s.Collect(ctx)
	if err != nil {
		return false, err
	}
	return rs.AllGranted(), nil
}

// DeniedPermissions consumes s and returns the distinct denials of either kind.
func DeniedPermissions(ctx context.Context, s *Stream) (Results, error) {
	rs, err := s.Collect(ctx)
	return rs.Denied(), err
}

// PermanentlyDeniedPermissions consumes s and returns the distinct permanent denials.
func PermanentlyDeniedPermissions(ctx context.Context, s *Stream) (Results, error) {
	rs, err := s.Collect(ctx)
	return rs.DeniedPermanently(), err
}

// NeedsRationalePermissions consumes s and returns the distinct re-promptable denials.
func NeedsRationalePermissions(ctx context.Context, s *Stream) (Results, error) {
	rs, err := s.Collect(ctx)
	return rs.NeedsRationale(), err
}

// GrantedPermissions consumes s and returns the distinct granted results.
func GrantedPermissions(ctx context.Context, s *Stream) (Results, error) {
	rs, err := s.Collect(ctx)
	return rs.Granted(), err
}
