package table

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/tkral/annomine/model"
)

// HitColumns are the fixed columns of a hit artifact, in file order.
// Pass-through columns from the input table follow, sorted by name.
var HitColumns = []string{
	"record_id",
	"origin_compound",
	"matched_compound",
	"compound_key",
	"compound_name",
	"predicate",
	"object_id",
	"object_name",
	"weight",
	"search_key",
	"search_kind",
	"data_source",
	"run_at",
	"cache_at",
}

const timeLayout = time.RFC3339Nano

// WriteHits writes hits to path atomically.
//
// Known coercion: a pass-through column absent on one hit but present on
// another is written as the empty string and read back as such, so "missing"
// and "empty" merge across a round trip.
func WriteHits(path string, hits []model.Hit) error {
	extras := extraColumns(hits)
	header := append(append([]string{}, HitColumns...), extras...)
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		row := make([]string, 0, len(header))
		cacheAt := ""
		if h.CacheAt != nil {
			cacheAt = h.CacheAt.UTC().Format(timeLayout)
		}
		row = append(row,
			h.RecordID,
			string(h.OriginCompound),
			string(h.MatchedCompound),
			h.CompoundKey,
			h.CompoundName,
			h.Predicate,
			h.ObjectID,
			h.ObjectName,
			strconv.FormatFloat(h.Weight, 'g', -1, 64),
			h.SearchKey,
			h.SearchKind,
			h.DataSource,
			h.RunAt.UTC().Format(timeLayout),
			cacheAt,
		)
		for _, col := range extras {
			row = append(row, h.Extra[col])
		}
		rows = append(rows, row)
	}
	return Write(path, header, rows)
}

// ReadHits reads a hit artifact written by WriteHits back into an equivalent
// hit sequence. Columns beyond HitColumns become Extra entries.
func ReadHits(path string) ([]model.Hit, error) {
	header, rows, err := Read(path)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	for _, col := range HitColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("table: %s: missing column %q", path, col)
		}
	}
	var extras []string
	known := make(map[string]bool, len(HitColumns))
	for _, col := range HitColumns {
		known[col] = true
	}
	for _, col := range header {
		if !known[col] {
			extras = append(extras, col)
		}
	}

	hits := make([]model.Hit, 0, len(rows))
	for n, row := range rows {
		get := func(col string) string { return row[idx[col]] }
		weight, err := strconv.ParseFloat(get("weight"), 64)
		if err != nil {
			return nil, fmt.Errorf("table: %s row %d: bad weight: %w", path, n+1, err)
		}
		runAt, err := time.Parse(timeLayout, get("run_at"))
		if err != nil {
			return nil, fmt.Errorf("table: %s row %d: bad run_at: %w", path, n+1, err)
		}
		var cacheAt *time.Time
		if s := get("cache_at"); s != "" {
			t, err := time.Parse(timeLayout, s)
			if err != nil {
				return nil, fmt.Errorf("table: %s row %d: bad cache_at: %w", path, n+1, err)
			}
			cacheAt = &t
		}
		h := model.Hit{
			RecordID:        get("record_id"),
			OriginCompound:  model.CompoundID(get("origin_compound")),
			MatchedCompound: model.CompoundID(get("matched_compound")),
			CompoundKey:     get("compound_key"),
			CompoundName:    get("compound_name"),
			Predicate:       get("predicate"),
			ObjectID:        get("object_id"),
			ObjectName:      get("object_name"),
			Weight:          weight,
			SearchKey:       get("search_key"),
			SearchKind:      get("search_kind"),
			DataSource:      get("data_source"),
			RunAt:           runAt,
			CacheAt:         cacheAt,
		}
		if len(extras) > 0 {
			h.Extra = make(map[string]string, len(extras))
			for _, col := range extras {
				h.Extra[col] = get(col)
			}
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func extraColumns(hits []model.Hit) []string {
	seen := map[string]bool{}
	for _, h := range hits {
		for k := range h.Extra {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
