// Package output provides the interface and configuration for writers
package output

import (
	"fmt"

	"github.com/katmoor/dmscout/config"
	"github.com/katmoor/dmscout/types"
)

// Writer defines the interface for all writers that are responsible
// for writing detected reel records to a specific output.
type Writer interface {
	// Write consumes the channel until it is closed.
	Write(records <-chan types.ReelRecord)
}

const (
	STDOUT_WRITER_TYPE = "stdout"
	FILE_WRITER_TYPE   = "file"
)

// New builds the writer named by the config.
func New(wc *config.WriterConfig) (Writer, error) {
	switch wc.Type {
	case STDOUT_WRITER_TYPE, "":
		return NewStdoutWriter(), nil
	case FILE_WRITER_TYPE:
		if wc.FilePath == "" {
			return nil, fmt.Errorf("writer type %s needs a file path", FILE_WRITER_TYPE)
		}
		return NewFileWriter(wc), nil
	default:
		return nil, fmt.Errorf("unknown writer type: %s", wc.Type)
	}
}
