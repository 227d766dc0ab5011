package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/katmoor/dmscout/types"
)

// StdoutWriter represents a writer that writes to stdout
type StdoutWriter struct {
	logger *slog.Logger
}

// NewStdoutWriter returns a new StdoutWriter
func NewStdoutWriter() *StdoutWriter {
	return &StdoutWriter{
		logger: slog.With(slog.String("writer", STDOUT_WRITER_TYPE)),
	}
}

func (w *StdoutWriter) Write(records <-chan types.ReelRecord) {
	for record := range records {
		// json.MarshalIndent would escape html characters in the reel
		// urls, hence the encoder dance.
		buffer := &bytes.Buffer{}
		encoder := json.NewEncoder(buffer)
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(record); err != nil {
			w.logger.Error(fmt.Sprintf("error while writing record %s: %v", record.ID, err))
			continue
		}

		var indentBuffer bytes.Buffer
		if err := json.Indent(&indentBuffer, buffer.Bytes(), "", "  "); err != nil {
			w.logger.Error(fmt.Sprintf("error while writing record %s: %v", record.ID, err))
			continue
		}
		fmt.Print(indentBuffer.String())
	}
}
