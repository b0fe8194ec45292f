package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seantiz/pdf2zh-engine/internal/model"
)

func TestListJobsPagination(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for range 5 {
		submit(t, srv, "/docs/a.pdf")
	}
	srv.engine.Wait()

	var page listJobsResponse
	if code := getJSON(t, ts.URL+"/jobs?limit=2&offset=1", &page); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if page.Total != 5 || page.Limit != 2 || page.Offset != 1 || len(page.Jobs) != 2 {
		t.Errorf("page = total %d limit %d offset %d len %d", page.Total, page.Limit, page.Offset, len(page.Jobs))
	}

	var defaults listJobsResponse
	getJSON(t, ts.URL+"/jobs?limit=1000&offset=-3", &defaults)
	if defaults.Limit != defaultListLimit || defaults.Offset != 0 || len(defaults.Jobs) != 5 {
		t.Errorf("defaults = limit %d offset %d len %d", defaults.Limit, defaults.Offset, len(defaults.Jobs))
	}
}

func TestListJobsEmpty(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var page map[string]any
	getJSON(t, ts.URL+"/jobs", &page)
	jobs, ok := page["jobs"].([]any)
	if !ok || len(jobs) != 0 {
		t.Errorf("jobs = %v, want empty array", page["jobs"])
	}
}

func TestGetJobAndEvents(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	id := submit(t, srv, "/docs/a.pdf")
	srv.engine.Wait()

	var rec model.JobRecord
	if code := getJSON(t, ts.URL+"/jobs/"+id, &rec); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if rec.ID != id || rec.Status != model.StatusCompleted || rec.Filename != "a (双语).pdf" {
		t.Errorf("record = %+v", rec)
	}
	if rec.DurationMS == nil || rec.FinishedAt == nil {
		t.Error("finished record missing duration or finish time")
	}

	var evs jobEventsResponse
	if code := getJSON(t, ts.URL+"/jobs/"+id+"/events", &evs); code != http.StatusOK {
		t.Fatalf("events status = %d, want 200", code)
	}

	job, _ := srv.jobs.Get(id)
	live := job.Snapshot()
	if len(evs.Events) != len(live) {
		t.Fatalf("persisted %d events, live log has %d", len(evs.Events), len(live))
	}
	for i, rec := range evs.Events {
		if rec.Seq != i {
			t.Errorf("event %d seq = %d", i, rec.Seq)
		}
		if rec.Event != live[i] {
			t.Errorf("event %d = %+v, want %+v", i, rec.Event, live[i])
		}
	}
}

func TestGetJobNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, path := range []string{"/jobs/missing", "/jobs/missing/events"} {
		var body map[string]string
		if code := getJSON(t, ts.URL+path, &body); code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, code)
		}
		if body["error"] != "job not found" {
			t.Errorf("%s error = %q", path, body["error"])
		}
	}
}
