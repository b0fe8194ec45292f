package engine

import (
	"testing"

	"github.com/seantiz/pdf2zh-engine/internal/model"
)

func TestBuildSettingsDefaults(t *testing.T) {
	req := model.TranslateRequest{
		Inputs:  []string{"/tmp/a.pdf"},
		Service: model.ServiceBing,
	}

	s, err := buildSettings(req, "/work", DefaultSettings())
	if err != nil {
		t.Fatalf("buildSettings: %v", err)
	}

	if s.Service != model.ServiceBing {
		t.Errorf("Service = %q", s.Service)
	}
	if s.Translation.Output != "/work" {
		t.Errorf("Output = %q", s.Translation.Output)
	}
	if s.Translation.LangIn != "en" || s.Translation.LangOut != "zh" {
		t.Errorf("languages = %q -> %q, want en -> zh", s.Translation.LangIn, s.Translation.LangOut)
	}
	if s.Translation.QPS != 4 || s.Translation.PoolMaxWorkers != 4 || s.Translation.TermPoolMaxWorkers != 4 {
		t.Errorf("translation = %+v", s.Translation)
	}
	if s.ReportInterval != 1 {
		t.Errorf("ReportInterval = %v, want 1", s.ReportInterval)
	}
	if s.PDF.NoDual || !s.PDF.NoMono {
		t.Errorf("pdf = %+v, want dual only", s.PDF)
	}
}

func TestBuildSettingsLanguages(t *testing.T) {
	tests := []struct {
		langIn, langOut string
		wantErr         bool
	}{
		{"en", "zh", false},
		{"en", "zh-CN", false},
		{"ja", "zh-TW", false},
		{"", "", false},
		{"e", "zh", true},
		{"en", "zh_CN!", true},
	}

	for _, tt := range tests {
		req := model.TranslateRequest{Inputs: []string{"a.pdf"}, LangIn: tt.langIn, LangOut: tt.langOut}
		_, err := buildSettings(req, "/work", DefaultSettings())
		if (err != nil) != tt.wantErr {
			t.Errorf("buildSettings(%q, %q) err = %v, wantErr %v", tt.langIn, tt.langOut, err, tt.wantErr)
		}
	}
}
