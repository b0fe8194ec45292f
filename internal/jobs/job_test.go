package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/pdf2zh-engine/internal/model"
)

func drainAll(t *testing.T, r *Reader) []model.Event {
	t.Helper()
	var events []model.Event
	for {
		ev, err := r.Drain(context.Background(), time.Second)
		if errors.Is(err, ErrEndOfStream) {
			return events
		}
		if err != nil {
			t.Fatalf("Drain: %v", err)
		}
		events = append(events, ev)
	}
}

func TestJobEventsInOrderEndingWithDone(t *testing.T) {
	reg := NewRegistry()
	_, job := reg.Create()

	job.Publish(model.ProgressEvent(0, "start", ""))
	job.Publish(model.ProgressEvent(42, "translate", "page 1"))
	job.Publish(model.ProgressEvent(90, "typeset", ""))
	if !job.Complete(model.SuccessResult("a (双语).pdf", "AAAA")) {
		t.Fatal("Complete returned false on first call")
	}

	events := drainAll(t, job.Reader())
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	wantPct := []int{0, 42, 90, 100}
	for i, ev := range events {
		if ev.Pct != wantPct[i] {
			t.Errorf("event %d pct = %d, want %d", i, ev.Pct, wantPct[i])
		}
	}
	if events[3].Type != model.EventDone {
		t.Errorf("last event type = %q, want done", events[3].Type)
	}

	res, done := job.Result()
	if !done || !res.OK || res.Filename != "a (双语).pdf" {
		t.Errorf("Result() = %+v, %v", res, done)
	}
}

func TestJobTerminalOnlyOnce(t *testing.T) {
	_, job := NewRegistry().Create()

	if !job.Fail("boom", "trace") {
		t.Fatal("Fail returned false on first call")
	}
	if job.Complete(model.SuccessResult("x.pdf", "AA")) {
		t.Error("Complete after Fail returned true")
	}
	if job.Fail("again", "") {
		t.Error("second Fail returned true")
	}
	if job.Publish(model.ProgressEvent(50, "late", "")) {
		t.Error("Publish after done returned true")
	}

	events := drainAll(t, job.Reader())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != model.EventError || events[0].Message != "boom" || events[0].Detail != "trace" {
		t.Errorf("terminal event = %+v", events[0])
	}

	res, _ := job.Result()
	if res.OK || res.Error != "boom" || res.Detail != "trace" {
		t.Errorf("Result() = %+v", res)
	}
}

func TestPublishRejectsTerminalEvents(t *testing.T) {
	_, job := NewRegistry().Create()

	if job.Publish(model.DoneEvent()) {
		t.Error("Publish(done) returned true")
	}
	if job.Publish(model.ErrorEvent("x", "")) {
		t.Error("Publish(error) returned true")
	}
	if job.Done() {
		t.Error("job is done after rejected publishes")
	}
	if job.Len() != 0 {
		t.Errorf("Len() = %d, want 0", job.Len())
	}
}

func TestResultWhileRunning(t *testing.T) {
	_, job := NewRegistry().Create()

	res, done := job.Result()
	if done {
		t.Error("done = true for a running job")
	}
	if res != (model.Result{}) {
		t.Errorf("Result() = %+v, want zero value", res)
	}
}

func TestReadersReplayFullLog(t *testing.T) {
	_, job := NewRegistry().Create()
	job.Publish(model.ProgressEvent(10, "a", ""))

	early := job.Reader()
	first, err := early.Drain(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if first.Pct != 10 {
		t.Errorf("first pct = %d, want 10", first.Pct)
	}

	job.Publish(model.ProgressEvent(20, "b", ""))
	job.Complete(model.SuccessResult("x.pdf", "AA"))

	late := drainAll(t, job.Reader())
	if len(late) != 3 {
		t.Fatalf("late reader got %d events, want 3", len(late))
	}

	rest := drainAll(t, early)
	if len(rest) != 2 {
		t.Fatalf("early reader got %d remaining events, want 2", len(rest))
	}
	if rest[0].Pct != 20 || rest[1].Type != model.EventDone {
		t.Errorf("remaining events = %+v", rest)
	}
}

func TestDrainTimeout(t *testing.T) {
	_, job := NewRegistry().Create()

	start := time.Now()
	_, err := job.Reader().Drain(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrNoEvent) {
		t.Fatalf("err = %v, want ErrNoEvent", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Drain returned after %v, before the timeout", elapsed)
	}
}

func TestDrainContextCanceled(t *testing.T) {
	_, job := NewRegistry().Create()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := job.Reader().Drain(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDrainWakesOnPublish(t *testing.T) {
	_, job := NewRegistry().Create()
	r := job.Reader()

	got := make(chan model.Event, 1)
	go func() {
		ev, err := r.Drain(context.Background(), 5*time.Second)
		if err == nil {
			got <- ev
		}
		close(got)
	}()

	time.Sleep(10 * time.Millisecond)
	job.Publish(model.ProgressEvent(33, "wake", ""))

	select {
	case ev, ok := <-got:
		if !ok {
			t.Fatal("Drain returned an error")
		}
		if ev.Pct != 33 {
			t.Errorf("pct = %d, want 33", ev.Pct)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Drain was not woken by Publish")
	}
}

func TestConcurrentProducerAndReaders(t *testing.T) {
	_, job := NewRegistry().Create()
	const n = 500

	var wg sync.WaitGroup
	results := make([][]model.Event, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := job.Reader()
			for {
				ev, err := r.Drain(context.Background(), 5*time.Second)
				if err != nil {
					return
				}
				results[i] = append(results[i], ev)
			}
		}(i)
	}

	for i := 0; i < n; i++ {
		job.Publish(model.ProgressEvent(i%101, "step", ""))
	}
	job.Complete(model.SuccessResult("x.pdf", "AA"))
	wg.Wait()

	for i, events := range results {
		if len(events) != n+1 {
			t.Fatalf("reader %d got %d events, want %d", i, len(events), n+1)
		}
		for k := 0; k < n; k++ {
			if events[k].Pct != k%101 {
				t.Fatalf("reader %d event %d pct = %d, want %d", i, k, events[k].Pct, k%101)
			}
		}
		if events[n].Type != model.EventDone {
			t.Errorf("reader %d last event = %q, want done", i, events[n].Type)
		}
	}
}
