package core

import (
	"fmt"
	"io"
)

// ReadCSVInput reads an uploaded CSV up to maxSize bytes. Larger input
// fails with ErrFileTooLarge. The text is returned with invalid UTF-8
// replaced and any BOM removed.
func ReadCSVInput(r io.Reader, maxSize int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxSize)
	}
	return sanitizeText(string(data)), nil
}
