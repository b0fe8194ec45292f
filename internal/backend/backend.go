package backend

import "context"

// Translator is the interface that all translation engines must implement.
// Each engine (the external pipeline process, the in-process stub) provides
// its own implementation of these methods.
type Translator interface {
	// Translate translates a single input document into settings'
	// output directory. Raw engine events are handed to emit in the order
	// the engine produced them; when emit returns false the translator stops
	// delivering events for this input. The context carries cancellation.
	Translate(ctx context.Context, settings Settings, input string, emit EmitFunc) error

	// Info describes the engine for the service listing.
	Info() Info
}

// EmitFunc receives one raw engine event. Raw events are untyped and may
// contain values that are not JSON-safe. Returning false stops delivery.
type EmitFunc func(raw any) bool

// Settings is the per-job engine configuration. It is serialized verbatim as
// the settings document handed to external engines.
type Settings struct {
	Service        string              `json:"translate_engine"`
	ReportInterval float64             `json:"report_interval"`
	Translation    TranslationSettings `json:"translation"`
	PDF            PDFSettings         `json:"pdf"`
}

// TranslationSettings controls the translation stage.
type TranslationSettings struct {
	// Output is the job's private working directory.
	Output             string `json:"output"`
	LangIn             string `json:"lang_in"`
	LangOut            string `json:"lang_out"`
	QPS                int    `json:"qps"`
	IgnoreCache        bool   `json:"ignore_cache"`
	PoolMaxWorkers     int    `json:"pool_max_workers"`
	TermPoolMaxWorkers int    `json:"term_pool_max_workers"`
}

// PDFSettings controls which documents are produced.
type PDFSettings struct {
	Pages  string `json:"pages,omitempty"`
	NoDual bool   `json:"no_dual"`
	NoMono bool   `json:"no_mono"`
}

// Info describes a registered translation engine.
type Info struct {
	Engine      string `json:"engine"`
	Description string `json:"description,omitempty"`
}
