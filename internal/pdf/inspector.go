// Package pdf checks rendered invoice images before they are stored.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNotPDF is returned for data without a PDF header
var ErrNotPDF = errors.New("not a PDF document")

var header = regexp.MustCompile(`^%PDF-(\d\.\d)`)

// Info describes an inspected PDF
type Info struct {
	Version   string `json:"version"`
	PageCount int    `json:"page_count"`
	Size      int    `json:"size"`
}

// Inspector reads PDF structure with pdfcpu
type Inspector struct {
	conf *model.Configuration
}

// NewInspector creates a new PDF inspector
func NewInspector() *Inspector {
	return &Inspector{
		conf: model.NewDefaultConfiguration(),
	}
}

// Inspect returns version and page count of data
func (i *Inspector) Inspect(data []byte) (*Info, error) {
	m := header.FindSubmatch(data)
	if m == nil {
		return nil, ErrNotPDF
	}

	pageCount, err := api.PageCount(bytes.NewReader(data), i.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	return &Info{
		Version:   string(m[1]),
		PageCount: pageCount,
		Size:      len(data),
	}, nil
}

// Validate accepts readable PDFs with at least one page
func (i *Inspector) Validate(data []byte) error {
	info, err := i.Inspect(data)
	if err != nil {
		return err
	}
	if info.PageCount == 0 {
		return fmt.Errorf("PDF has no pages")
	}
	return nil
}
