package model

// Result is the payload returned by GET /result. A successful job carries
// Filename and PDFBase64; a failed one carries Error and Detail.
type Result struct {
	OK        bool   `json:"ok"`
	Filename  string `json:"filename,omitempty"`
	PDFBase64 string `json:"pdf_base64,omitempty"`
	Error     string `json:"error,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// SuccessResult builds the payload for a finished translation.
func SuccessResult(filename, pdfBase64 string) Result {
	return Result{OK: true, Filename: filename, PDFBase64: pdfBase64}
}

// FailureResult builds the payload for a failed translation.
func FailureResult(message, detail string) Result {
	return Result{OK: false, Error: message, Detail: detail}
}
