package engine

import (
	"github.com/pkg/errors"
	"golang.org/x/text/language"

	"github.com/seantiz/pdf2zh-engine/internal/backend"
	"github.com/seantiz/pdf2zh-engine/internal/model"
)

// Defaults are the engine settings applied to every job.
type Defaults struct {
	QPS            int
	Threads        int
	ReportInterval float64
	IgnoreCache    bool
	Dual           bool
	Mono           bool
	// Pages restricts translation to a page selection such as "1-3,5".
	// Empty means all pages.
	Pages string
	// TempDir is the parent of job working directories; empty means the
	// system temporary directory.
	TempDir string
}

// DefaultSettings returns the stock job defaults.
func DefaultSettings() Defaults {
	return Defaults{
		QPS:            4,
		Threads:        4,
		ReportInterval: 1,
		Dual:           true,
		Mono:           false,
	}
}

// buildSettings combines a request with the configured defaults. Language
// codes must be valid BCP 47 tags.
func buildSettings(req model.TranslateRequest, workDir string, d Defaults) (backend.Settings, error) {
	langIn, err := canonicalLang(req.LangIn, model.DefaultLangIn)
	if err != nil {
		return backend.Settings{}, errors.Wrap(err, "invalid lang_in")
	}
	langOut, err := canonicalLang(req.LangOut, model.DefaultLangOut)
	if err != nil {
		return backend.Settings{}, errors.Wrap(err, "invalid lang_out")
	}

	return backend.Settings{
		Service:        req.Service,
		ReportInterval: d.ReportInterval,
		Translation: backend.TranslationSettings{
			Output:             workDir,
			LangIn:             langIn,
			LangOut:            langOut,
			QPS:                d.QPS,
			IgnoreCache:        d.IgnoreCache,
			PoolMaxWorkers:     d.Threads,
			TermPoolMaxWorkers: d.Threads,
		},
		PDF: backend.PDFSettings{
			Pages:  d.Pages,
			NoDual: !d.Dual,
			NoMono: !d.Mono,
		},
	}, nil
}

// canonicalLang validates code and returns it unchanged so the engine sees
// exactly what the caller sent.
func canonicalLang(code, fallback string) (string, error) {
	if code == "" {
		code = fallback
	}
	if _, err := language.Parse(code); err != nil {
		return "", errors.Wrapf(err, "language %q", code)
	}
	return code, nil
}
