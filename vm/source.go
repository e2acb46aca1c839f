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

package vm

import (
	"fmt"
	"log"

	"github.com/farooq-001/qxcore/internal/qerr"
	"github.com/farooq-001/qxcore/vm/index"
)

// defaultPageBytes is the byte budget a page is sized against;
// interpreted as 32-bit doc ids, this yields DefaultMaxPageSize
// document ids per page.
const defaultPageBytes = 16 * 1024

// DefaultMaxPageSize is 16KiB / 4 bytes per doc id.
const DefaultMaxPageSize = defaultPageBytes / 4

// ScanConfig configures a Source operator: the operator factory
// surface for the scan stage.
type ScanConfig struct {
	ShardID     index.ShardID `json:"shardId" yaml:"shardId"`
	MaxPageSize int           `json:"maxPageSize,omitempty" yaml:"maxPageSize,omitempty"`
	Logger      *log.Logger   `json:"-" yaml:"-"`
}

func (c ScanConfig) maxPageSize() int {
	if c.MaxPageSize > 0 {
		return c.MaxPageSize
	}
	return DefaultMaxPageSize
}

type sourceState uint8

const (
	srcUnweighted sourceState = iota
	srcScanningLeaf
	srcDone
)

// Source converts matched document identifiers from an
// inverted-index reader into pages, scanning a slice of work
// (a partition of shards/segments assigned for parallel execution).
// Source never accepts input: NeedsInput is always false.
type Source struct {
	cfg   ScanConfig
	query index.Query
	rdr   index.Reader
	slice Slice

	maxPageSize int
	minPageSize int

	state   sourceState
	weight  index.Weight
	scorer  index.BulkScorer
	leafIdx int // index into s.slice

	cur     int32 // current leaf's scan cursor, absolute doc id within the leaf
	page    []int32
	pagePos int

	closed bool
}

// NewSource constructs a Source that scans slice (a unit of work
// produced by DocSlice or SegmentSlice) of rdr, matching query.
func NewSource(rdr index.Reader, query index.Query, slice Slice, cfg ScanConfig) *Source {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	max := cfg.maxPageSize()
	return &Source{
		cfg:         cfg,
		rdr:         rdr,
		query:       query,
		slice:       slice,
		maxPageSize: max,
		minPageSize: max / 2,
		page:        make([]int32, max),
	}
}

// NeedsInput always reports false: Source is a pure producer.
func (s *Source) NeedsInput() bool { return false }

// AddInput is always a qerr.ContractViolation for Source.
func (s *Source) AddInput(*Page) error {
	return errContract("Source.AddInput: source operators never accept input")
}

// Finish is always a qerr.ContractViolation for Source.
func (s *Source) Finish() error {
	return errContract("Source.Finish: source operators finish on their own")
}

// IsFinished reports whether the scan is exhausted.
func (s *Source) IsFinished() bool { return s.state == srcDone }

func (s *Source) Close() error {
	s.closed = true
	s.state = srcDone
	return nil
}

// weigh lazily rewrites s.query under CompleteNoScores, transitioning
// the scan state machine from Unweighted to ScanningLeaf.
func (s *Source) weigh() error {
	rewritten, err := s.query.Rewrite(s.rdr)
	if err != nil {
		return fmt.Errorf("%w: rewrite: %v", qerr.ReaderIo, err)
	}
	w, err := rewritten.CreateWeight(s.rdr, index.CompleteNoScores)
	if err != nil {
		return fmt.Errorf("%w: create weight: %v", qerr.ReaderIo, err)
	}
	s.weight = w
	s.state = srcScanningLeaf
	s.leafIdx = 0
	return s.openLeaf()
}

// openLeaf obtains a bulk scorer for the current partial-leaf,
// skipping leaves whose scorer is nil.
func (s *Source) openLeaf() error {
	for s.leafIdx < len(s.slice) {
		pl := s.slice[s.leafIdx]
		sc, err := s.weight.BulkScorer(pl.Leaf)
		if err != nil {
			return fmt.Errorf("%w: bulk scorer: %v", qerr.ReaderIo, err)
		}
		if sc == nil {
			s.cfg.Logger.Printf("vm: source: leaf %d has no scorer, skipping", pl.Leaf.Ordinal())
			s.leafIdx++
			continue
		}
		s.scorer = sc
		s.cur = int32(pl.MinDoc)
		return nil
	}
	s.scorer = nil
	return nil
}

// GetOutput advances the scan state machine and returns the next
// flushed page, or (nil, nil) if more scanning is needed before a
// page is ready.
func (s *Source) GetOutput() (*Page, error) {
	if s.closed || s.state == srcDone {
		return nil, nil
	}
	if s.state == srcUnweighted {
		if err := s.weigh(); err != nil {
			return nil, err
		}
	}
	for s.leafIdx < len(s.slice) {
		if s.scorer == nil {
			if err := s.openLeaf(); err != nil {
				return nil, err
			}
			if s.scorer == nil {
				break
			}
		}
		pl := s.slice[s.leafIdx]
		remaining := s.maxPageSize - s.pagePos
		next, err := s.scorer.Score(int(s.cur), pl.MaxDoc, remaining, func(doc int) {
			s.page[s.pagePos] = int32(doc)
			s.pagePos++
		})
		if err != nil {
			return nil, fmt.Errorf("%w: score: %v", qerr.ReaderIo, err)
		}
		s.cur = int32(next)

		leafExhausted := int(s.cur) >= pl.MaxDoc
		ordinal := pl.Leaf.Ordinal()
		if leafExhausted {
			s.leafIdx++
			s.scorer = nil
		}
		if s.pagePos >= s.minPageSize || (leafExhausted && s.pagePos > 0) {
			return s.flush(ordinal), nil
		}
		if !leafExhausted && s.pagePos == 0 && remaining > 0 {
			// scorer made no progress and capacity remains;
			// avoid spinning forever on a buggy scorer.
			return s.flush(ordinal), nil
		}
	}
	s.state = srcDone
	if s.pagePos > 0 {
		return s.flush(-1), nil
	}
	return nil, nil
}

// flush emits the current page buffer as a Page with doc-id, leaf
// ordinal, and shard id channels, then resets the page cursor.
func (s *Source) flush(leafOrdinal int) *Page {
	n := s.pagePos
	ids := make([]int32, n)
	copy(ids, s.page[:n])
	s.pagePos = 0

	blocks := []*Block{
		NewIntBlock(ids),
		NewConstantInt(int64(leafOrdinal), n),
		NewConstantObject(s.cfg.ShardID, n),
	}
	p, err := NewPage(blocks)
	if err != nil {
		// blocks are constructed with matching lengths above;
		// this would indicate a bug in this function itself.
		panic(err)
	}
	return p
}
