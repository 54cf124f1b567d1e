// Package document extracts prompt context from uploaded files.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned for a PDF without extractable text, e.g. a scan
var ErrNoText = errors.New("document contains no extractable text")

// ExtractPDFText returns the plain text of every page of a PDF
func ExtractPDFText(data []byte) (text string, err error) {
	// the reader panics on some malformed cross reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var b bytes.Buffer
	if _, err := b.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	text = strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
}

// ImageMediaType resolves the media type of an uploaded image, preferring
// the declared content type. It reports false for anything but an image.
func ImageMediaType(contentType, filename string) (string, bool) {
	if strings.HasPrefix(contentType, "image/") {
		return contentType, true
	}
	mediaType, ok := imageTypes[strings.ToLower(filepath.Ext(filename))]
	return mediaType, ok
}
