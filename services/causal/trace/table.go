// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
)

// Table is a column-major table of sampled executions.
//
// Columns are causal node IDs; row i across all columns is one independent
// execution of the instrumented code unit.
//
// # Thread Safety
//
// Table is immutable after construction and safe for concurrent readers.
type Table struct {
	columns map[string][]float64
	rows    int
}

// NewTable builds a table from node ID to value-series columns.
//
// Errors:
//
//	ErrEmptyTable - No columns or zero rows
//	ErrRaggedColumns - Column lengths differ
func NewTable(columns map[string][]float64) (*Table, error) {
	if len(columns) == 0 {
		return nil, ErrEmptyTable
	}
	rows := -1
	for id, col := range columns {
		if rows == -1 {
			rows = len(col)
			continue
		}
		if len(col) != rows {
			return nil, fmt.Errorf("%w: column %s has %d rows, expected %d",
				ErrRaggedColumns, id, len(col), rows)
		}
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: zero rows", ErrEmptyTable)
	}

	copied := make(map[string][]float64, len(columns))
	for id, col := range columns {
		c := make([]float64, len(col))
		copy(c, col)
		copied[id] = c
	}
	return &Table{columns: copied, rows: rows}, nil
}

// Decode reads a JSON trace document of the form
// {"columns": {"x": [..], "y": [..]}}.
func Decode(r io.Reader) (*Table, error) {
	var doc struct {
		Columns map[string][]float64 `json:"columns"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	return NewTable(doc.Columns)
}

// Rows returns the number of executions recorded.
func (t *Table) Rows() int {
	return t.rows
}

// Samples returns the total number of recorded values across all columns.
func (t *Table) Samples() int {
	return t.rows * len(t.columns)
}

// Columns returns all column IDs in sorted order.
func (t *Table) Columns() []string {
	ids := make([]string, 0, len(t.columns))
	for id := range t.columns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasColumn reports whether the node has a recorded column.
func (t *Table) HasColumn(id string) bool {
	_, ok := t.columns[id]
	return ok
}

// Column returns the value series for a node ID.
//
// The returned slice is the internal storage; callers MUST NOT modify it.
//
// Errors:
//
//	ErrColumnNotFound - id has no column
func (t *Table) Column(id string) ([]float64, error) {
	col, ok := t.columns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, id)
	}
	return col, nil
}

// Row returns the values of the listed columns at row i.
func (t *Table) Row(i int, ids []string) (map[string]float64, error) {
	if i < 0 || i >= t.rows {
		return nil, fmt.Errorf("%w: row %d of %d", ErrRowOutOfRange, i, t.rows)
	}
	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		col, ok := t.columns[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, id)
		}
		out[id] = col[i]
	}
	return out, nil
}

// Split partitions the rows into train/test tables with a reproducible
// shuffle.
//
// Inputs:
//
//	testFrac - Fraction of rows assigned to the test split, clamped to
//	           (0, 1). The canonical validation split is 0.2.
//	seed - Seed for the row shuffle; identical seeds yield identical
//	       splits.
func (t *Table) Split(testFrac float64, seed int64) (train, test *Table) {
	if testFrac <= 0 {
		testFrac = 0.2
	}
	if testFrac >= 1 {
		testFrac = 0.2
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(t.rows)

	nTest := int(math.Round(float64(t.rows) * testFrac))
	if nTest < 1 {
		nTest = 1
	}
	if nTest >= t.rows {
		nTest = t.rows - 1
	}

	testIdx := perm[:nTest]
	trainIdx := perm[nTest:]
	return t.subset(trainIdx), t.subset(testIdx)
}

// Resample draws rows with replacement, yielding a bootstrap replicate of
// the same size. Identical seeds yield identical replicates.
func (t *Table) Resample(seed int64) *Table {
	rng := rand.New(rand.NewSource(seed))
	idx := make([]int, t.rows)
	for i := range idx {
		idx[i] = rng.Intn(t.rows)
	}
	return t.subset(idx)
}

// subset builds a new table from the given row indices.
func (t *Table) subset(idx []int) *Table {
	columns := make(map[string][]float64, len(t.columns))
	for id, col := range t.columns {
		sub := make([]float64, len(idx))
		for i, ri := range idx {
			sub[i] = col[ri]
		}
		columns[id] = sub
	}
	return &Table{columns: columns, rows: len(idx)}
}

// ColumnMap returns a copy of all columns keyed by node ID, for building
// fitting-boundary request documents.
func (t *Table) ColumnMap() map[string][]float64 {
	out := make(map[string][]float64, len(t.columns))
	for id, col := range t.columns {
		c := make([]float64, len(col))
		copy(c, col)
		out[id] = c
	}
	return out
}
