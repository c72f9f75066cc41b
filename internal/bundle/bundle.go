// Package bundle packs a Finvoice payload and its attachments into the
// zip archive uploaded to the e-invoicing network.
package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/rezonia/finvoice-bridge/internal/model"
)

const (
	// ArchiveName is the filename used for uploads
	ArchiveName = "finvoice.zip"
	// ArchiveType is the content type of the upload
	ArchiveType = "application/zip"
	// PayloadName is the archive entry holding the invoice
	PayloadName = "invoice.xml"

	maxBaseName = 50
)

// BundleError is returned when an attachment cannot be packed
type BundleError struct {
	Name  string
	Cause error
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("bundle attachment %q: %v", e.Name, e.Cause)
}

func (e *BundleError) Unwrap() error {
	return e.Cause
}

// Build creates a zip with invoice.xml first followed by each attachment
func Build(payload []byte, attachments []model.Attachment) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := add(zw, PayloadName, payload); err != nil {
		return nil, &BundleError{Name: PayloadName, Cause: err}
	}

	for _, att := range attachments {
		raw, err := att.Raw()
		if err != nil {
			return nil, &BundleError{Name: att.Name, Cause: err}
		}
		if err := add(zw, att.Name, raw); err != nil {
			return nil, &BundleError{Name: att.Name, Cause: err}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, &BundleError{Name: ArchiveName, Cause: err}
	}
	return buf.Bytes(), nil
}

func add(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// SanitizeName lowercases name and replaces bytes outside [a-z0-9._] with '_'.
// The part before the extension is cut to 50 characters.
func SanitizeName(name string) string {
	lower := []byte(strings.ToLower(name))
	for i, c := range lower {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '.' || c == '_') {
			lower[i] = '_'
		}
	}
	clean := string(lower)

	ext := path.Ext(clean)
	base := strings.TrimSuffix(clean, ext)
	if len(base) > maxBaseName {
		base = base[:maxBaseName]
	}
	return base + ext
}
