// Package ingest loads the scraped NHS medicines corpus into the vector
// store.
//
// The corpus is a directory of JSON files, one per medicine. Each file is an
// object whose values are JSON-encoded page strings; each page decodes to
// {"page_content": ..., "metadata": {...}} with the filterable attributes
// (med_name, document_description, page_description, url). The medication
// index file is tabular data, not prose, and is skipped.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// medicationTableFile is the tabular medication index shipped alongside the
// page files. It has a different shape and is not ingested.
const medicationTableFile = "medication_table.json"

// Page is one scraped medicines page before chunking.
type Page struct {
	Content  string
	Metadata map[string]interface{}
}

type rawPage struct {
	PageContent string                 `json:"page_content"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// LoadFile parses one corpus file into pages. Page order within a file
// follows the sorted keys so ingestion is deterministic.
func LoadFile(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pages := make([]Page, 0, len(entries))
	for _, key := range keys {
		var raw rawPage
		if err := json.Unmarshal([]byte(entries[key]), &raw); err != nil {
			return nil, fmt.Errorf("parsing page %q in %s: %w", key, path, err)
		}
		if strings.TrimSpace(raw.PageContent) == "" {
			continue
		}
		pages = append(pages, Page{
			Content:  raw.PageContent,
			Metadata: raw.Metadata,
		})
	}

	return pages, nil
}

// LoadDir parses every corpus file in the directory, skipping the medication
// table. Files are visited in sorted order.
func LoadDir(dir string) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory %s: %w", dir, err)
	}

	var pages []Page
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if entry.Name() == medicationTableFile {
			continue
		}
		filePages, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		pages = append(pages, filePages...)
	}

	return pages, nil
}
