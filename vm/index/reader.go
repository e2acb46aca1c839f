// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package index describes the narrow surface the source operator
// requires from an inverted-index reader. It is an external
// collaborator: this module never implements a real index, only
// the interfaces a real one must satisfy, plus an in-memory Fake
// used by tests and cmd/qxbench.
package index

import "github.com/google/uuid"

// ScoreMode fixes how a Weight is rewritten for a constant-score
// scan. The source operator only ever requests CompleteNoScores:
// it has no use for relevance scores, only matched doc ids.
type ScoreMode uint8

const (
	CompleteNoScores ScoreMode = iota
)

// Reader enumerates the leaves (segments) of one shard.
type Reader interface {
	// Leaves returns every leaf in the shard, in a stable order
	// (leaf ordinal == index into this slice).
	Leaves() []LeafReader

	// MaxDoc returns the total number of documents across all
	// leaves -- used by doc-slicing to compute a balanced partition.
	MaxDoc() int
}

// LeafReader is a single index segment.
type LeafReader interface {
	// Ordinal is this leaf's position within the Reader that
	// produced it.
	Ordinal() int

	// MaxDoc is the number of documents in this leaf; valid
	// doc ids for this leaf are [0, MaxDoc).
	MaxDoc() int

	// LiveDocs reports, for each doc id in [0,MaxDoc), whether
	// the document is live (not soft-deleted). A nil LiveDocs
	// means every document is live.
	LiveDocs() func(doc int) bool
}

// Query is an opaque, rewriteable value accepted by the reader's
// searcher. The source operator only needs Rewrite and
// CreateWeight.
type Query interface {
	// Rewrite normalizes the query against r, possibly
	// returning a different, more specific Query.
	Rewrite(r Reader) (Query, error)

	// CreateWeight realizes the (rewritten) query as a Weight
	// bound to r under the given score mode. The source
	// operator always passes CompleteNoScores.
	CreateWeight(r Reader, mode ScoreMode) (Weight, error)
}

// Weight is a query realized against a reader, ready to produce
// per-leaf scorers.
type Weight interface {
	// BulkScorer returns a scorer for leaf, or a nil scorer
	// (with a nil error) if the leaf cannot possibly match
	// (e.g. its value range excludes the query).
	BulkScorer(leaf LeafReader) (BulkScorer, error)
}

// BulkScorer collects matching document ids from a leaf.
type BulkScorer interface {
	// Score collects every matching, live doc id in [min, max)
	// by calling collect for each, in increasing order, until
	// either max is reached or collect has been called cap
	// times (whichever comes first). It returns the next doc id
	// that has not yet been considered (>= the last id passed
	// to collect, and <= max), so the caller can resume a
	// bounded collection across multiple calls.
	Score(min, max, cap int, collect func(doc int)) (next int, err error)
}

// ShardID identifies the shard a source operator is scanning;
// threaded through every page the source operator emits.
type ShardID = uuid.UUID
