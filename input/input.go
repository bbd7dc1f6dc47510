// Package input reads the compound table that enumerates a run's work items.
//
// Accepted formats: a .txt file with one compound ID per line, a .csv file,
// or a tab-separated table (optionally .zst/.lz4 compressed). Tables must
// carry a compound_id column; every other column is passed through unchanged
// into the final hit table.
package input

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/tkral/annomine/model"
	"github.com/tkral/annomine/table"
)

// IDColumn is the required column naming each compound.
const IDColumn = "compound_id"

// Table is the parsed input compound set.
type Table struct {
	// IDs are the distinct compound IDs in file order.
	IDs []model.CompoundID
	// ExtraColumns are the pass-through column names, in file order.
	ExtraColumns []string
	// Extras maps each compound to its pass-through values.
	Extras map[model.CompoundID]map[string]string
}

// Read parses the compound table at path.
func Read(path string) (*Table, error) {
	switch {
	case strings.HasSuffix(path, ".txt"):
		return readLines(path)
	case strings.HasSuffix(path, ".csv"):
		return readCSV(path)
	default:
		header, rows, err := table.Read(path)
		if err != nil {
			return nil, err
		}
		return fromRows(path, header, rows)
	}
}

func readLines(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t := &Table{Extras: map[model.CompoundID]map[string]string{}}
	seen := map[model.CompoundID]bool{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id := model.CompoundID(line)
		if !seen[id] {
			seen[id] = true
			t.IDs = append(t.IDs, id)
		}
	}
	return t, sc.Err()
}

func readCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("input: %s: missing header", path)
	}
	return fromRows(path, records[0], records[1:])
}

func fromRows(path string, header []string, rows [][]string) (*Table, error) {
	idIdx := -1
	for i, col := range header {
		if strings.EqualFold(col, IDColumn) {
			idIdx = i
			break
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("input: %s: missing required column %q", path, IDColumn)
	}
	t := &Table{Extras: map[model.CompoundID]map[string]string{}}
	for i, col := range header {
		if i != idIdx {
			t.ExtraColumns = append(t.ExtraColumns, strings.ToLower(col))
		}
	}
	seen := map[model.CompoundID]bool{}
	for _, row := range rows {
		id := model.CompoundID(strings.TrimSpace(row[idIdx]))
		if id == "" {
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		t.IDs = append(t.IDs, id)
		if len(header) > 1 {
			extras := make(map[string]string, len(header)-1)
			for i, col := range header {
				if i != idIdx {
					extras[strings.ToLower(col)] = row[i]
				}
			}
			t.Extras[id] = extras
		}
	}
	return t, nil
}
