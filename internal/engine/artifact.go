package engine

import (
	"encoding/base64"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// errNoOutput is reported when the engine finished without producing a PDF.
var errNoOutput = errors.New("No PDF output found in temporary directory")

// bilingualSuffix is appended to the source stem in the result filename.
const bilingualSuffix = " (双语).pdf"

// findOutputPDF returns the PDF the engine produced under dir. Bilingual
// ("dual") outputs are preferred; among the candidates the most recently
// modified wins.
func findOutputPDF(dir string) (string, error) {
	var all, dual []candidate
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		c := candidate{path: path, modTime: info.ModTime()}
		all = append(all, c)
		if strings.Contains(strings.ToLower(d.Name()), "dual") {
			dual = append(dual, c)
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "scan working directory")
	}

	pool := dual
	if len(pool) == 0 {
		pool = all
	}
	if len(pool) == 0 {
		return "", errNoOutput
	}

	best := pool[0]
	for _, c := range pool[1:] {
		if c.modTime.After(best.modTime) {
			best = c
		}
	}
	return best.path, nil
}

type candidate struct {
	path    string
	modTime time.Time
}

// encodeFile reads path and returns its contents base64-encoded.
func encodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read output PDF")
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// resultFilename derives the user-facing filename from the source filename,
// falling back to the input path's base name.
func resultFilename(sourceFilename, input string) string {
	name := sourceFilename
	if name == "" {
		name = input
	}
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || base == "." || base == string(filepath.Separator) {
		stem = "output"
	}
	return stem + bilingualSuffix
}

// countPages opens the PDF at path and returns its page count.
func countPages(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open PDF")
	}
	defer f.Close()
	return r.NumPage(), nil
}
