package subprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/pdf2zh-engine/internal/backend"
)

// TestMain lets the test binary double as a fake engine process.
func TestMain(m *testing.M) {
	if mode := os.Getenv("FAKE_ENGINE_MODE"); mode != "" {
		os.Exit(fakeEngine(mode, os.Args))
	}
	os.Exit(m.Run())
}

// fakeEngine mimics the pipeline adapter: it expects
// "--settings <file> <input>" at the end of its arguments.
func fakeEngine(mode string, args []string) int {
	if len(args) < 3 || args[len(args)-3] != "--settings" {
		fmt.Fprintln(os.Stderr, "usage: --settings <file> <input>")
		return 2
	}
	settingsPath, input := args[len(args)-2], args[len(args)-1]

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	var settings backend.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	switch mode {
	case "events":
		fmt.Println(`{"type":"engine_start"}`)
		fmt.Println("loading models...")
		fmt.Printf(`{"type":"progress_update","stage":"Translate","overall_progress":0.5,"input":%q}`+"\n", input)
		out := filepath.Join(settings.Translation.Output, "doc.dual.pdf")
		if err := os.WriteFile(out, []byte("%PDF-1.4\n"), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf(`{"type":"finish","translate_result":{"dual_pdf_path":%q,"lang_out":%q}}`+"\n", out, settings.Translation.LangOut)
		fmt.Println(`{"type":"progress_update","overall_progress":0.99}`)
		return 0
	case "fail":
		fmt.Println(`{"type":"engine_start"}`)
		fmt.Fprintln(os.Stderr, "Traceback (most recent call last):")
		fmt.Fprintln(os.Stderr, "RuntimeError: model download failed")
		return 3
	case "finish-then-fail":
		fmt.Println(`{"type":"finish"}`)
		return 4
	case "finish-then-hang":
		fmt.Println(`{"type":"finish"}`)
		time.Sleep(time.Minute)
		return 0
	}
	return 2
}

func helperTranslator(t *testing.T, mode string) *Translator {
	t.Helper()
	tr, err := New([]string{os.Args[0], "-test.run=^$"}, WithEnv("FAKE_ENGINE_MODE="+mode))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func testSettings(t *testing.T) backend.Settings {
	t.Helper()
	return backend.Settings{
		Service:        "google",
		ReportInterval: 1,
		Translation: backend.TranslationSettings{
			Output:  t.TempDir(),
			LangIn:  "en",
			LangOut: "zh",
			QPS:     4,
		},
	}
}

func TestTranslateForwardsEvents(t *testing.T) {
	tr := helperTranslator(t, "events")
	settings := testSettings(t)

	var events []map[string]any
	err := tr.Translate(context.Background(), settings, "/tmp/in.pdf", func(raw any) bool {
		m, ok := raw.(map[string]any)
		if !ok {
			t.Errorf("raw event is %T, want map", raw)
			return true
		}
		events = append(events, m)
		return m["type"] != "finish"
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (the post-finish event must be dropped)", len(events))
	}
	if events[1]["input"] != "/tmp/in.pdf" {
		t.Errorf("input = %v, want /tmp/in.pdf", events[1]["input"])
	}
	if n, ok := events[1]["overall_progress"].(json.Number); !ok || n.String() != "0.5" {
		t.Errorf("overall_progress = %#v, want json.Number 0.5", events[1]["overall_progress"])
	}

	result, _ := events[2]["translate_result"].(map[string]any)
	if result["lang_out"] != "zh" {
		t.Errorf("engine saw lang_out %v, want zh", result["lang_out"])
	}
	if _, err := os.Stat(filepath.Join(settings.Translation.Output, "doc.dual.pdf")); err != nil {
		t.Errorf("engine output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(settings.Translation.Output, SettingsFile)); err != nil {
		t.Errorf("settings file missing: %v", err)
	}
}

func TestTranslateEngineFailure(t *testing.T) {
	tr := helperTranslator(t, "fail")

	var count int
	err := tr.Translate(context.Background(), testSettings(t), "in.pdf", func(any) bool {
		count++
		return true
	})
	if err == nil {
		t.Fatal("expected error from failing engine")
	}
	if !strings.Contains(err.Error(), "code 3") || !strings.Contains(err.Error(), "model download failed") {
		t.Errorf("error = %q, want exit code and stderr tail", err)
	}
	if count != 1 {
		t.Errorf("emitted %d events before failure, want 1", count)
	}
}

func TestTranslateExitStatusIgnoredAfterStop(t *testing.T) {
	tr := helperTranslator(t, "finish-then-fail")

	err := tr.Translate(context.Background(), testSettings(t), "in.pdf", func(any) bool {
		return false
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
}

func TestTranslateKillsEngineThatKeepsRunningAfterStop(t *testing.T) {
	tr := helperTranslator(t, "finish-then-hang")
	tr.stopGrace = 100 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		done <- tr.Translate(context.Background(), testSettings(t), "in.pdf", func(any) bool {
			return false
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Translate: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Translate did not return after the engine stopped being read")
	}
}

func TestTranslateContextCanceled(t *testing.T) {
	tr := helperTranslator(t, "events")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Translate(ctx, testSettings(t), "in.pdf", func(any) bool { return true })
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestTranslateMissingCommand(t *testing.T) {
	tr, err := New([]string{filepath.Join(t.TempDir(), "no-such-engine")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = tr.Translate(context.Background(), testSettings(t), "in.pdf", func(any) bool { return true })
	if err == nil || !strings.Contains(err.Error(), "start engine") {
		t.Errorf("err = %v, want start engine error", err)
	}
}

func TestNewRejectsEmptyCommand(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) returned no error")
	}
	if _, err := New([]string{""}); err == nil {
		t.Error(`New([""]) returned no error`)
	}
}

func TestWriteSettingsRequiresOutput(t *testing.T) {
	if _, err := writeSettings(backend.Settings{}); err == nil {
		t.Error("writeSettings without output returned no error")
	}
}

func TestTail(t *testing.T) {
	tl := newTail(2)
	if got := tl.String(); got != "no stderr output" {
		t.Errorf("empty tail = %q", got)
	}
	tl.add("a")
	tl.add("b")
	tl.add("c")
	if got := tl.String(); got != "b\nc" {
		t.Errorf("tail = %q, want %q", got, "b\nc")
	}
}
