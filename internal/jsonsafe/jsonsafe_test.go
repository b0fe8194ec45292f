package jsonsafe

import (
	"encoding/json"
	"errors"
	"math"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

type stage int

const stageLayout stage = 3

type phase string

type translateResult struct {
	OutputPath string `json:"output_path"`
	Pages      int
	Skipped    bool `json:"-"`
	internal   string
}

type dumper struct{ v int }

func (d dumper) MarshalJSON() ([]byte, error) {
	return []byte(`{"dumped":` + string(rune('0'+d.v)) + `}`), nil
}

type brokenDumper struct {
	Name string
}

func (brokenDumper) MarshalJSON() ([]byte, error) {
	return nil, errors.New("no dump")
}

type panicker struct{}

func (panicker) MarshalText() ([]byte, error) {
	panic("boom")
}

type node struct {
	Name string
	Next *node
}

type docPath string

func (p docPath) Path() string { return "/docs/" + string(p) }

type opaque struct {
	secret int
}

func TestNormalizeScalarsUnchanged(t *testing.T) {
	for _, v := range []any{nil, true, "hello", 42, int64(-7), uint8(3), 1.5, json.Number("12")} {
		got := Normalize(v)
		if !reflect.DeepEqual(got, v) {
			t.Errorf("Normalize(%#v) = %#v, want unchanged", v, got)
		}
	}
}

func TestNormalizeNonFiniteFloats(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{math.NaN(), "NaN"},
		{math.Inf(1), "+Inf"},
		{math.Inf(-1), "-Inf"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%v) = %#v, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePathLike(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "doc-*.pdf")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	if got := Normalize(f); got != f.Name() {
		t.Errorf("Normalize(*os.File) = %#v, want %q", got, f.Name())
	}

	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if got := Normalize(info); got != filepath.Base(f.Name()) {
		t.Errorf("Normalize(FileInfo) = %#v, want %q", got, filepath.Base(f.Name()))
	}

	if got := Normalize(docPath("a.pdf")); got != "/docs/a.pdf" {
		t.Errorf("Normalize(pather) = %#v, want /docs/a.pdf", got)
	}
}

func TestNormalizeTimeLike(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)
	if got := Normalize(ts); got != "2024-03-01T12:30:00.0000005Z" {
		t.Errorf("Normalize(time.Time) = %#v", got)
	}
	if got := Normalize(&ts); got != "2024-03-01T12:30:00.0000005Z" {
		t.Errorf("Normalize(*time.Time) = %#v", got)
	}
	if got := Normalize(1500 * time.Millisecond); got != "1.5s" {
		t.Errorf("Normalize(time.Duration) = %#v, want 1.5s", got)
	}
}

func TestNormalizeEnumLikeConstants(t *testing.T) {
	if got := Normalize(stageLayout); got != int64(3) {
		t.Errorf("Normalize(stage) = %#v, want int64(3)", got)
	}
	if got := Normalize(phase("translate")); got != "translate" {
		t.Errorf("Normalize(phase) = %#v, want translate", got)
	}
	if got := Normalize(net.ParseIP("127.0.0.1")); got != "127.0.0.1" {
		t.Errorf("Normalize(net.IP) = %#v, want 127.0.0.1", got)
	}
}

func TestNormalizeBytes(t *testing.T) {
	if got := Normalize([]byte("héllo")); got != "héllo" {
		t.Errorf("Normalize(utf8 bytes) = %#v", got)
	}
	if got := Normalize([]byte{0xff, 0x00, 0xab}); got != "ff00ab" {
		t.Errorf("Normalize(binary bytes) = %#v, want ff00ab", got)
	}
	if got := Normalize([2]byte{'o', 'k'}); got != "ok" {
		t.Errorf("Normalize(byte array) = %#v, want ok", got)
	}
}

func TestNormalizeMappingKeys(t *testing.T) {
	in := map[any]any{
		1:           "one",
		"two":       2,
		stageLayout: []int{1, 2},
		true:        nil,
	}
	got := Normalize(in)
	want := map[string]any{
		"1":    "one",
		"two":  2,
		"3":    []any{1, 2},
		"true": nil,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize(map) = %#v, want %#v", got, want)
	}
}

func TestNormalizeSequences(t *testing.T) {
	got := Normalize([]any{1, "a", []string{"x"}, [2]int{3, 4}})
	want := []any{1, "a", []any{"x"}, []any{3, 4}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize(slice) = %#v, want %#v", got, want)
	}
}

func TestNormalizeDump(t *testing.T) {
	got := Normalize(dumper{v: 7})
	want := map[string]any{"dumped": json.Number("7")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize(json.Marshaler) = %#v, want %#v", got, want)
	}

	raw := Normalize(json.RawMessage(`{"a":[1,true]}`))
	if !reflect.DeepEqual(raw, map[string]any{"a": []any{json.Number("1"), true}}) {
		t.Errorf("Normalize(json.RawMessage) = %#v", raw)
	}
}

func TestNormalizeDumpFailureFallsBackToRecord(t *testing.T) {
	got := Normalize(brokenDumper{Name: "x"})
	want := map[string]any{"Name": "x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize(broken dumper) = %#v, want %#v", got, want)
	}
}

func TestNormalizeRecords(t *testing.T) {
	got := Normalize(&translateResult{OutputPath: "/tmp/out.pdf", Pages: 3, Skipped: true, internal: "x"})
	want := map[string]any{"output_path": "/tmp/out.pdf", "Pages": 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize(record) = %#v, want %#v", got, want)
	}
}

func TestNormalizeErrors(t *testing.T) {
	if got := Normalize(errors.New("engine crashed")); got != "engine crashed" {
		t.Errorf("Normalize(error) = %#v", got)
	}
}

func TestNormalizeOpaqueFallback(t *testing.T) {
	got := Normalize(opaque{secret: 1})
	s, ok := got.(string)
	if !ok || !strings.Contains(s, "opaque") {
		t.Errorf("Normalize(opaque) = %#v, want a string naming the type", got)
	}
	if got := Normalize(complex(1, 2)); got != "(1+2i)" {
		t.Errorf("Normalize(complex) = %#v", got)
	}
}

func TestNormalizeRecoversFromPanics(t *testing.T) {
	got := Normalize(map[string]any{"bad": panicker{}, "good": 1})
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("Normalize = %#v, want map", got)
	}
	if _, ok := m["bad"].(string); !ok {
		t.Errorf("bad = %#v, want string fallback", m["bad"])
	}
	if m["good"] != 1 {
		t.Errorf("good = %#v, want 1", m["good"])
	}
}

func TestNormalizeSelfReferentialMap(t *testing.T) {
	m := map[string]any{"a": 1}
	m["self"] = m

	got, ok := Normalize(m).(map[string]any)
	if !ok {
		t.Fatalf("Normalize(self-referential map) did not return a map")
	}
	s, ok := got["self"].(string)
	if !ok || !strings.HasPrefix(s, "<cycle ") {
		t.Errorf("self = %#v, want cycle string", got["self"])
	}
	if _, err := json.Marshal(got); err != nil {
		t.Errorf("normalized value is not marshalable: %v", err)
	}
}

func TestNormalizeSelfReferentialSlice(t *testing.T) {
	s := []any{"x", nil}
	s[1] = s

	got, ok := Normalize(s).([]any)
	if !ok || len(got) != 2 {
		t.Fatalf("Normalize(self-referential slice) = %#v", got)
	}
	if str, ok := got[1].(string); !ok || !strings.HasPrefix(str, "<cycle ") {
		t.Errorf("got[1] = %#v, want cycle string", got[1])
	}
}

func TestNormalizePointerCycle(t *testing.T) {
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b

	got, ok := Normalize(a).(map[string]any)
	if !ok {
		t.Fatalf("Normalize(pointer cycle) did not return a map")
	}
	next, ok := got["Next"].(map[string]any)
	if !ok || next["Name"] != "b" {
		t.Fatalf("Next = %#v, want node b", got["Next"])
	}
	if s, ok := next["Next"].(string); !ok || !strings.HasPrefix(s, "<cycle ") {
		t.Errorf("b.Next = %#v, want cycle string", next["Next"])
	}
}

func TestNormalizeSharedReferenceWalkedOnce(t *testing.T) {
	shared := map[string]any{"k": "v"}
	got, ok := Normalize(map[string]any{"x": shared, "y": shared}).(map[string]any)
	if !ok {
		t.Fatal("Normalize(shared) did not return a map")
	}

	var full, refs int
	for _, key := range []string{"x", "y"} {
		switch v := got[key].(type) {
		case map[string]any:
			if !reflect.DeepEqual(v, map[string]any{"k": "v"}) {
				t.Errorf("%s = %#v", key, v)
			}
			full++
		case string:
			if !strings.HasPrefix(v, "<ref ") {
				t.Errorf("%s = %q, want ref string", key, v)
			}
			refs++
		default:
			t.Errorf("%s = %#v", key, v)
		}
	}
	if full != 1 || refs != 1 {
		t.Errorf("got %d converted and %d ref entries, want 1 and 1", full, refs)
	}
}

type dagNode struct {
	ID int
	A  *dagNode
	B  *dagNode
}

func TestNormalizeDeepSharedGraphTerminates(t *testing.T) {
	var head *dagNode
	for i := 40; i > 0; i-- {
		head = &dagNode{ID: i, A: head, B: head}
	}
	event := map[string]any{"type": "finish", "translate_result": head}

	done := make(chan any, 1)
	go func() { done <- Normalize(event) }()

	select {
	case out := <-done:
		data, err := json.Marshal(out)
		if err != nil {
			t.Fatalf("json.Marshal(normalized) = %v", err)
		}
		if n := strings.Count(string(data), `"ID"`); n != 40 {
			t.Errorf("converted %d nodes, want each of the 40 exactly once", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Normalize did not return on a shared graph")
	}
}

func TestNormalizeDepthLimit(t *testing.T) {
	var head *node
	for i := 0; i < 2*maxDepth; i++ {
		head = &node{Name: "n", Next: head}
	}
	if _, err := json.Marshal(Normalize(head)); err != nil {
		t.Fatalf("json.Marshal(normalized deep chain) = %v", err)
	}
}

func TestNormalizeNilReferences(t *testing.T) {
	var p *node
	var m map[string]int
	var s []string
	if got := Normalize(p); got != nil {
		t.Errorf("Normalize(nil pointer) = %#v, want nil", got)
	}
	if got := Normalize(m); !reflect.DeepEqual(got, map[string]any{}) {
		t.Errorf("Normalize(nil map) = %#v, want empty map", got)
	}
	if got := Normalize(s); !reflect.DeepEqual(got, []any{}) {
		t.Errorf("Normalize(nil slice) = %#v, want empty slice", got)
	}
}

func TestNormalizeEngineEventIsMarshalable(t *testing.T) {
	ts := time.Now()
	event := map[string]any{
		"type":     "finish",
		"progress": float32(1),
		"result": &translateResult{
			OutputPath: "/tmp/x.dual.pdf",
			Pages:      2,
		},
		"when":    ts,
		"payload": []byte{0xde, 0xad},
		"stage":   stageLayout,
	}
	out := Normalize(event)
	if _, err := json.Marshal(out); err != nil {
		t.Fatalf("json.Marshal(normalized) = %v", err)
	}
}
