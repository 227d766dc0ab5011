package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/katmoor/dmscout/config"
	"github.com/katmoor/dmscout/types"
)

type FileWriter struct {
	writerConfig *config.WriterConfig
}

// NewFileWriter returns a new FileWriter
func NewFileWriter(wc *config.WriterConfig) *FileWriter {
	return &FileWriter{
		writerConfig: wc,
	}
}

func (fr *FileWriter) Write(records <-chan types.ReelRecord) {
	logger := slog.With(slog.String("writer", FILE_WRITER_TYPE))
	f, err := os.Create(fr.writerConfig.FilePath)
	if err != nil {
		logger.Error(fmt.Sprintf("error while trying to open file: %v", err))
		os.Exit(1)
	}
	defer f.Close()
	allRecords := []types.ReelRecord{}
	for record := range records {
		allRecords = append(allRecords, record)
	}

	// json.MarshalIndent would escape html characters in the reel urls,
	// hence the encoder dance.
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(allRecords); err != nil {
		logger.Error(fmt.Sprintf("error while encoding records: %v", err))
		return
	}

	var indentBuffer bytes.Buffer
	if err := json.Indent(&indentBuffer, buffer.Bytes(), "", "  "); err != nil {
		logger.Error(fmt.Sprintf("error while indenting json: %v", err))
		return
	}
	if _, err = f.Write(indentBuffer.Bytes()); err != nil {
		logger.Error(fmt.Sprintf("error while writing json to file: %v", err))
	} else {
		logger.Info(fmt.Sprintf("wrote %d records to file %s", len(allRecords), fr.writerConfig.FilePath))
	}
}
