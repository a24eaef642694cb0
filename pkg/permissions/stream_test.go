package permissions

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"
)

func TestStreamDeliversInPushOrder(t *testing.T) {
	s := newStream(nil)
	s.push(Granted("A"))
	s.push(NeedsRationale("B"))
	s.close(nil)

	got, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := (Results{Granted("A"), NeedsRationale("B")}); !slices.Equal(got, want) {
		t.Errorf("Collect() = %v, want %v", got, want)
	}

	if _, err := s.Next(context.Background()); err != io.EOF {
		t.Errorf("Next() after end = %v, want io.EOF", err)
	}
}

func TestStreamErrorAfterDrain(t *testing.T) {
	boom := errors.New("boom")
	s := newStream(nil)
	s.push(Granted("A"))
	s.close(boom)

	r, err := s.Next(context.Background())
	if err != nil || r != Granted("A") {
		t.Fatalf("Next() = %v, %v; want queued result first", r, err)
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Next() = %v, want %v", err, boom)
	}
}

func TestStreamCloseOnce(t *testing.T) {
	s := newStream(nil)
	s.close(nil)
	s.close(errors.New("late"))
	s.push(Granted("A"))

	got, err := s.Collect(context.Background())
	if err != nil {
		t.Errorf("Collect() error = %v, want nil", err)
	}
	if len(got) != 0 {
		t.Errorf("push after close should be dropped, got %v", got)
	}
}

func TestStreamNextWaitsForProducer(t *testing.T) {
	s := newStream(nil)
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.push(Granted("A"))
		s.close(nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r, err := s.Next(ctx)
	if err != nil || r != Granted("A") {
		t.Errorf("Next() = %v, %v; want Granted(A)", r, err)
	}
}

func TestStreamNextHonorsContext(t *testing.T) {
	s := newStream(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() = %v, want context.Canceled", err)
	}
}

func TestStreamPushNeverBlocks(t *testing.T) {
	s := newStream(nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			s.push(Granted("A"))
		}
		s.close(nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push blocked without a consumer")
	}
}

func TestStreamAllStopsOnBreak(t *testing.T) {
	s := newStream(nil)
	s.push(Granted("A"))
	s.push(Granted("B"))
	s.close(nil)

	var seen Results
	for r, err := range s.All(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen = append(seen, r)
		break
	}
	if !slices.Equal(seen, Results{Granted("A")}) {
		t.Errorf("seen = %v", seen)
	}

	r, err := s.Next(context.Background())
	if err != nil || r != Granted("B") {
		t.Errorf("remaining result = %v, %v; want Granted(B)", r, err)
	}
}

func TestClosedStream(t *testing.T) {
	boom := errors.New("boom")
	s := closedStream(boom)

	select {
	case <-s.Done():
	default:
		t.Error("closed stream should be done")
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Next() = %v, want %v", err, boom)
	}
	s.Cancel()
}

func TestStreamReducers(t *testing.T) {
	newFilled := func() *Stream {
		s := newStream(nil)
		s.push(Granted("CAMERA"))
		s.push(NeedsRationale("MIC"))
		s.push(DeniedPermanently("SMS"))
		s.push(NeedsRationale("MIC"))
		s.close(nil)
		return s
	}
	ctx := context.Background()

	if ok, err := AllGranted(ctx, newFilled()); err != nil || ok {
		t.Errorf("AllGranted() = %v, %v; want false, nil", ok, err)
	}
	if got, _ := DeniedPermissions(ctx, newFilled()); !slices.Equal(got, Results{NeedsRationale("MIC"), DeniedPermanently("SMS")}) {
		t.Errorf("DeniedPermissions() = %v", got)
	}
	if got, _ := PermanentlyDeniedPermissions(ctx, newFilled()); !slices.Equal(got, Results{DeniedPermanently("SMS")}) {
		t.Errorf("PermanentlyDeniedPermissions() = %v", got)
	}
	if got, _ := NeedsRationalePermissions(ctx, newFilled()); !slices.Equal(got, Results{NeedsRationale("MIC")}) {
		t.Errorf("NeedsRationalePermissions() = %v", got)
	}
	if got, _ := GrantedPermissions(ctx, newFilled()); !slices.Equal(got, Results{Granted("CAMERA")}) {
		t.Errorf("GrantedPermissions() = %v", got)
	}

	empty := newStream(nil)
	empty.close(nil)
	if ok, err := AllGranted(ctx, empty); err != nil || !ok {
		t.Errorf("AllGranted(empty) = %v, %v; want true, nil", ok, err)
	}
}

func TestAllGrantedPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	s := newStream(nil)
	s.push(Granted("A"))
	s.close(boom)

	if ok, err := AllGranted(context.Background(), s); ok || !errors.Is(err, boom) {
		t.Errorf("AllGranted() = %v, %v; want false, %v", ok, err, boom)
	}
}
