package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/seantiz/pdf2zh-engine/internal/model"
)

// maxBodySize limits translate request bodies to 1 MB.
const maxBodySize = 1 << 20

// translateRequest is the accepted body of POST /translate. Both snake_case
// and camelCase spellings are accepted for the path and filename. The path and
// service are kept raw so that non-string values reach validation instead of
// failing the decode.
type translateRequest struct {
	SourcePath          json.RawMessage `json:"source_path"`
	SourcePathCamel     json.RawMessage `json:"sourcePath"`
	Inputs              []string        `json:"inputs"`
	SourceFilename      string          `json:"source_filename"`
	SourceFilenameCamel string          `json:"sourceFilename"`
	Service             json.RawMessage `json:"service"`
	LangIn              string          `json:"lang_in"`
	LangOut             string          `json:"lang_out"`
}

type translateResponse struct {
	JobID string `json:"jobId"`
}

// inputs returns the documents to translate. An explicit source path wins
// over the inputs array; empty entries are ignored.
func (req translateRequest) inputs() []string {
	for _, raw := range []json.RawMessage{req.SourcePath, req.SourcePathCamel} {
		if p := looseString(raw); p != "" {
			return []string{p}
		}
	}
	var out []string
	for _, p := range req.Inputs {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (req translateRequest) filename() string {
	if req.SourceFilename != "" {
		return req.SourceFilename
	}
	return req.SourceFilenameCamel
}

// service returns the requested service name. A missing or null service
// selects the default.
func (req translateRequest) service() string {
	if isNull(req.Service) {
		return model.DefaultService
	}
	return looseString(req.Service)
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// looseString renders a JSON value as text. Strings are unquoted, null is
// empty and anything else keeps its compact JSON spelling.
func looseString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// decodeTranslateRequest reads the request body. An empty body is treated as
// an empty JSON object.
func decodeTranslateRequest(r *http.Request) (translateRequest, error) {
	var req translateRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return req, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodySize {
		return req, fmt.Errorf("request body exceeds %d bytes", maxBodySize)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	return req, nil
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTranslateRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inputs := req.inputs()
	if len(inputs) == 0 {
		s.writeError(w, http.StatusBadRequest, "source_path required")
		return
	}

	service := req.service()
	if !model.SupportedService(service) {
		s.writeFailure(w, http.StatusBadRequest, "Unsupported service: "+service)
		return
	}

	treq := model.TranslateRequest{
		Inputs:         inputs,
		SourceFilename: req.filename(),
		Service:        service,
		LangIn:         req.LangIn,
		LangOut:        req.LangOut,
	}
	if treq.LangIn == "" {
		treq.LangIn = model.DefaultLangIn
	}
	if treq.LangOut == "" {
		treq.LangOut = model.DefaultLangOut
	}

	id, err := s.engine.Submit(r.Context(), treq)
	if err != nil {
		s.logger.Error("submit translation", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start translation")
		return
	}

	s.logger.Info("translation submitted",
		"job_id", id,
		"service", service,
		"source_path", treq.SourcePath(),
		"inputs", len(inputs),
	)
	s.writeJSON(w, http.StatusOK, translateResponse{JobID: id})
}
