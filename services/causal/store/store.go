// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/MeridianAI/MeridianCausal/services/causal/graph"
	"github.com/MeridianAI/MeridianCausal/services/causal/scm"
	"github.com/MeridianAI/MeridianCausal/services/causal/validate"
)

// Key prefixes within the database.
const (
	keyGraph   = "graph/"
	keyBlob    = "scm/"
	keySummary = "scm_summary/"
)

// Config holds configuration for the model store.
type Config struct {
	// Path is the directory for database files. Required unless InMemory
	// is true.
	Path string

	// InMemory enables in-memory mode with no disk persistence.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives store and database events. If nil, the database's
	// internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns durable defaults for production use.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns a disk-free configuration for testing.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Summary is the lossy, display-safe view of a stored model: structure,
// mechanism types, and scores, but no numeric parameters.
type Summary struct {
	ID             string             `json:"id"`
	Unit           string             `json:"unit"`
	Source         string             `json:"source"`
	Nodes          int                `json:"nodes"`
	Edges          int                `json:"edges"`
	MechanismTypes map[string]string  `json:"mechanism_types"`
	R2Scores       map[string]float64 `json:"r2_scores,omitempty"`
	AggregateR2    float64            `json:"aggregate_r2,omitempty"`
	Passed         bool               `json:"passed"`
	SavedAt        time.Time          `json:"saved_at"`
}

// graphDoc is the wire form used to rebuild the graph on load.
type graphDoc struct {
	Unit  string         `json:"unit"`
	Nodes []graphDocNode `json:"nodes"`
	Edges []graphDocEdge `json:"edges"`
}

type graphDocNode struct {
	ID   string    `json:"id"`
	Kind string    `json:"kind"`
	Loc  graph.Loc `json:"loc"`
}

type graphDocEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Store persists fitted models keyed by run ID.
//
// # Thread Safety
//
// Store is safe for concurrent use; BadgerDB transactions provide
// isolation.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open creates and opens a model store with the given configuration.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, ErrMissingPath
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		logger = slog.Default()
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists a frozen model under the given ID: the graph document,
// the opaque mechanism blob, and the display summary, in one
// transaction. An existing entry under the same ID is overwritten.
func (s *Store) Save(id string, model *scm.SCM, val *validate.Result) error {
	if model == nil || model.State() != scm.ModelStateFrozen {
		return ErrNilModel
	}

	g := model.Graph()
	doc := graphDoc{
		Unit:  g.Unit,
		Nodes: make([]graphDocNode, 0, g.NodeCount()),
		Edges: make([]graphDocEdge, 0, g.EdgeCount()),
	}
	for _, nid := range g.NodeIDs() {
		node, _ := g.GetNode(nid)
		doc.Nodes = append(doc.Nodes, graphDocNode{
			ID:   nid,
			Kind: node.Kind.String(),
			Loc:  node.Loc,
		})
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, graphDocEdge{
			From: e.FromID,
			To:   e.ToID,
			Type: e.Type.String(),
		})
	}
	graphJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}

	blob, err := model.EncodeMechanisms()
	if err != nil {
		return fmt.Errorf("encode mechanisms: %w", err)
	}

	sum := Summary{
		ID:             id,
		Unit:           g.Unit,
		Source:         string(model.Source()),
		Nodes:          g.NodeCount(),
		Edges:          g.EdgeCount(),
		MechanismTypes: make(map[string]string, g.NodeCount()),
		SavedAt:        time.Now().UTC(),
	}
	for nid, mech := range model.Mechanisms() {
		sum.MechanismTypes[nid] = string(mech.Type)
	}
	if val != nil {
		sum.R2Scores = val.NodeR2
		sum.AggregateR2 = val.Aggregate
		sum.Passed = val.Passed
	}
	sumJSON, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyGraph+id), graphJSON); err != nil {
			return err
		}
		if err := txn.Set([]byte(keyBlob+id), blob); err != nil {
			return err
		}
		return txn.Set([]byte(keySummary+id), sumJSON)
	})
	if err != nil {
		return fmt.Errorf("save model %s: %w", id, err)
	}

	s.logger.Debug("model saved",
		slog.String("id", id),
		slog.Int("nodes", sum.Nodes),
		slog.Int("blob_bytes", len(blob)),
	)
	return nil
}

// Load reconstructs a numerically exact model from its stored graph
// document and mechanism blob.
func (s *Store) Load(id string) (*scm.SCM, error) {
	var graphJSON, blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyGraph + id))
		if err != nil {
			return err
		}
		if graphJSON, err = item.ValueCopy(nil); err != nil {
			return err
		}
		item, err = txn.Get([]byte(keyBlob + id))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load model %s: %w", id, err)
	}

	var doc graphDoc
	if err := json.Unmarshal(graphJSON, &doc); err != nil {
		return nil, fmt.Errorf("decode graph for %s: %w", id, err)
	}

	g := graph.New(doc.Unit)
	for _, n := range doc.Nodes {
		if _, err := g.AddNode(n.ID, graph.ParseNodeKind(n.Kind), n.Loc); err != nil {
			return nil, fmt.Errorf("rebuild graph for %s: %w", id, err)
		}
	}
	for _, e := range doc.Edges {
		if err := g.AddEdge(e.From, e.To, graph.ParseEdgeType(e.Type)); err != nil {
			return nil, fmt.Errorf("rebuild graph for %s: %w", id, err)
		}
	}
	if err := g.Freeze(); err != nil {
		return nil, fmt.Errorf("rebuild graph for %s: %w", id, err)
	}

	model, err := scm.DecodeMechanisms(g, blob)
	if err != nil {
		return nil, fmt.Errorf("decode mechanisms for %s: %w", id, err)
	}
	return model, nil
}

// Summary returns the display-safe view of a stored model.
func (s *Store) Summary(id string) (*Summary, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySummary + id))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load summary %s: %w", id, err)
	}

	var sum Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", id, err)
	}
	return &sum, nil
}

// List returns the IDs of all stored models.
func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keySummary)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, key[len(keySummary):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return ids, nil
}

// Delete removes a stored model and its summary. Deleting a missing ID
// is not an error.
func (s *Store) Delete(id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, prefix := range []string{keyGraph, keyBlob, keySummary} {
			if err := txn.Delete([]byte(prefix + id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete model %s: %w", id, err)
	}
	return nil
}
