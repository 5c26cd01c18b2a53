package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	activitydto "worktally/internal/modules/activity/dto"
)

// readImportFile accepts either a JSON array of records or one record per line.
func readImportFile(path string) ([]activitydto.ImportRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return parseImportRecords(raw)
}

func parseImportRecords(raw []byte) ([]activitydto.ImportRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []activitydto.ImportRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode import records: %w", err)
		}
		return records, nil
	}

	var records []activitydto.ImportRecord
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var record activitydto.ImportRecord
		if err := json.Unmarshal(text, &record); err != nil {
			return nil, fmt.Errorf("decode import record on line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan import file: %w", err)
	}
	return records, nil
}
