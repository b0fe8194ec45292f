// Package stub provides an in-process translator that fabricates engine
// events and a small PDF. It backs the development test server and tests
// that need a working engine without the real pipeline.
package stub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seantiz/pdf2zh-engine/internal/backend"
)

// Translator emits a start event, Steps progress events and a finish event,
// writing a "<stem>.<lang>.dual.pdf" file into the output directory.
type Translator struct {
	// Steps is the number of progress events between start and finish.
	Steps int
	// Delay is slept between events.
	Delay time.Duration
	// Pages is the page count of the generated PDF.
	Pages int
	// FailWith makes Translate fail with this message after the start event.
	FailWith string
}

// New returns a stub translator with three steps and no delay.
func New() *Translator {
	return &Translator{Steps: 3, Pages: 1}
}

// Info implements backend.Translator.
func (t *Translator) Info() backend.Info {
	return backend.Info{Engine: "stub", Description: "synthetic events and a placeholder PDF"}
}

// Translate implements backend.Translator.
func (t *Translator) Translate(ctx context.Context, settings backend.Settings, input string, emit backend.EmitFunc) error {
	started := time.Now()
	if !emit(map[string]any{"type": "engine_start", "input": input, "started_at": started}) {
		return nil
	}
	if t.FailWith != "" {
		return errors.New(t.FailWith)
	}

	steps := t.Steps
	if steps <= 0 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		if err := t.sleep(ctx); err != nil {
			return err
		}
		ev := map[string]any{
			"type":             "progress_update",
			"stage":            "Translate Paragraphs",
			"stage_current":    i,
			"stage_total":      steps,
			"overall_progress": float64(i) / float64(steps+1),
			"message":          fmt.Sprintf("step %d/%d", i, steps),
		}
		if !emit(ev) {
			return nil
		}
	}

	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	out := filepath.Join(settings.Translation.Output, fmt.Sprintf("%s.%s.dual.pdf", stem, settings.Translation.LangOut))
	if err := os.WriteFile(out, MinimalPDF(t.Pages), 0o644); err != nil {
		return fmt.Errorf("write stub output: %w", err)
	}

	emit(map[string]any{
		"type": "finish",
		"translate_result": finishResult{
			DualPDFPath:  out,
			TotalSeconds: time.Since(started),
			Output:       os.DirFS(settings.Translation.Output),
		},
	})
	return nil
}

func (t *Translator) sleep(ctx context.Context) error {
	if t.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(t.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// finishResult resembles the result object real engines attach to their
// finish event: a struct holding values that need JSON normalization.
type finishResult struct {
	DualPDFPath  string        `json:"dual_pdf_path"`
	TotalSeconds time.Duration `json:"total_seconds"`
	Output       any           `json:"output"`
}

// MinimalPDF returns a syntactically valid PDF with the given number of
// blank letter-size pages (at least one).
func MinimalPDF(pages int) []byte {
	if pages < 1 {
		pages = 1
	}

	var buf bytes.Buffer
	offsets := make([]int, 0, pages+2)
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	object("<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		object("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
