package settings

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"layout-translator/internal/logger"
)

// LoadGlossary reads source,target term pairs from a CSV file. Rows that do
// not have exactly two non-empty columns are skipped with a warning; the
// loader never fails on malformed content, only on I/O errors.
func LoadGlossary(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // validate row shape ourselves

	glossary := make(map[string]string)
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				logger.Warn("skipping unparsable glossary row",
					logger.Int("row", row), logger.Err(err))
				continue
			}
			return nil, err
		}

		if len(record) != 2 {
			logger.Warn("skipping malformed glossary row",
				logger.Int("row", row), logger.Int("columns", len(record)))
			continue
		}

		src := strings.TrimSpace(strings.TrimPrefix(record[0], "\uFEFF"))
		dst := strings.TrimSpace(record[1])
		if src == "" || dst == "" {
			logger.Warn("skipping empty glossary entry", logger.Int("row", row))
			continue
		}
		glossary[src] = dst
	}

	logger.Info("glossary loaded", logger.String("path", path), logger.Int("terms", len(glossary)))
	return glossary, nil
}
