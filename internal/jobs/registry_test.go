package jobs

import (
	"testing"
	"time"

	"github.com/seantiz/pdf2zh-engine/internal/model"
)

func TestRegistryCreateAndGet(t *testing.T) {
	reg := NewRegistry()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, job := reg.Create()
		if seen[id] {
			t.Fatalf("duplicate job id %q", id)
		}
		seen[id] = true

		got, ok := reg.Get(id)
		if !ok || got != job {
			t.Fatalf("Get(%q) did not return the created job", id)
		}
		if job.ID() != id {
			t.Errorf("job.ID() = %q, want %q", job.ID(), id)
		}
	}

	if reg.Len() != 100 {
		t.Errorf("Len() = %d, want 100", reg.Len())
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("Get(missing) returned ok")
	}
}

func TestRegistryStats(t *testing.T) {
	reg := NewRegistry()
	_, a := reg.Create()
	reg.Create()
	_, c := reg.Create()

	a.Complete(model.SuccessResult("a.pdf", "AA"))
	c.Fail("boom", "")

	st := reg.Stats()
	if st.Total != 3 || st.Running != 1 || st.Finished != 2 {
		t.Errorf("Stats() = %+v, want 3 total, 1 running, 2 finished", st)
	}
}

func TestRegistrySweep(t *testing.T) {
	reg := NewRegistry()
	runningID, _ := reg.Create()
	doneID, done := reg.Create()
	done.Complete(model.SuccessResult("x.pdf", "AA"))

	if n := reg.Sweep(time.Hour); n != 0 {
		t.Errorf("Sweep(1h) removed %d jobs, want 0", n)
	}
	if n := reg.Sweep(0); n != 0 {
		t.Errorf("Sweep(0) removed %d jobs, want 0", n)
	}

	time.Sleep(5 * time.Millisecond)
	if n := reg.Sweep(time.Millisecond); n != 1 {
		t.Fatalf("Sweep(1ms) removed %d jobs, want 1", n)
	}
	if _, ok := reg.Get(doneID); ok {
		t.Error("finished job still registered after sweep")
	}
	if _, ok := reg.Get(runningID); !ok {
		t.Error("running job was swept")
	}
}
