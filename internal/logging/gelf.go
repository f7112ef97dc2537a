package logging

import (
	"fmt"
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogWriter dials a GELF UDP writer for shipping logs to Graylog.
// address is host:port of the Graylog GELF UDP input.
func NewGraylogWriter(address string) (io.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("error dialing graylog at %s: %w", address, err)
	}
	return w, nil
}
