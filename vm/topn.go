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
	"github.com/farooq-001/qxcore/heap"
)

// TopNConfig configures a TopN operator: the operator factory
// surface for the top-N stage.
type TopNConfig struct {
	SortChannel int  `json:"sortChannel" yaml:"sortChannel"`
	Ascending   bool `json:"ascending" yaml:"ascending"`
	TopCount    int  `json:"topCount" yaml:"topCount"`
}

// TopN is a bounded priority queue over row-pages, keyed by the
// Long value of one sort channel.
//
// NOTE: a naive "less than" comparator defined as `a > b` when
// ascending is true makes a bounded heap keep the *largest* k for an
// ascending sort, which is backwards. This implementation uses the
// corrected, intuitive semantics: ascending top-N returns the k
// smallest values.
//
// Internally the heap is always a max-heap on "how bad a row is
// for the requested order" -- for ascending (want smallest), a
// larger value is worse, so PushSlice's less(x,y) reports whether
// x is *worse to keep* than y; the heap's head (index 0) is always
// the current worst-kept row, which is what overflow displaces.
type TopN struct {
	cfg   TopNConfig
	rows  []*Page
	state breakerState
}

// NewTopN builds a TopN operator with the given configuration.
func NewTopN(cfg TopNConfig) *TopN {
	return &TopN{cfg: cfg}
}

func (t *TopN) NeedsInput() bool { return t.state == breakerNeedsInput }

// worse reports whether row a should be evicted before row b when
// the heap is full (i.e. a is the "worse" of the two kept rows for
// the requested order).
func (t *TopN) worse(a, b *Page) bool {
	av := a.GetBlock(t.cfg.SortChannel).GetLong(0)
	bv := b.GetBlock(t.cfg.SortChannel).GetLong(0)
	if t.cfg.Ascending {
		// keep the smallest: the worse-to-keep row is the larger one.
		return av > bv
	}
	// keep the largest: the worse-to-keep row is the smaller one.
	return av < bv
}

func (t *TopN) AddInput(p *Page) error {
	if !t.NeedsInput() {
		return errContract("TopN.AddInput: NeedsInput is false")
	}
	for i := 0; i < p.PositionCount(); i++ {
		t.insert(p.Row(i))
	}
	return nil
}

// insert adds row to the bounded heap, displacing the current
// worst-kept row if the heap is already at capacity and row
// dominates it.
func (t *TopN) insert(row *Page) {
	if t.cfg.TopCount <= 0 {
		return
	}
	less := func(a, b *Page) bool { return t.worse(a, b) }
	if len(t.rows) < t.cfg.TopCount {
		heap.PushSlice(&t.rows, row, less)
		return
	}
	if t.worse(t.rows[0], row) {
		t.rows[0] = row
		heap.FixSlice(t.rows, 0, less)
	}
}

func (t *TopN) Finish() error {
	if t.state != breakerNeedsInput {
		return errContract("TopN.Finish: already finished")
	}
	t.state = breakerHasOutput
	return nil
}

func (t *TopN) IsFinished() bool { return t.state == breakerFinished }

// GetOutput pops one row-page from the heap per call, in reverse
// sorted order (worst-kept first); when the heap empties, TopN
// transitions to Finished.
func (t *TopN) GetOutput() (*Page, error) {
	if t.state != breakerHasOutput {
		return nil, nil
	}
	if len(t.rows) == 0 {
		t.state = breakerFinished
		return nil, nil
	}
	less := func(a, b *Page) bool { return t.worse(a, b) }
	row := heap.PopSlice(&t.rows, less)
	if len(t.rows) == 0 {
		t.state = breakerFinished
	}
	return row, nil
}

func (t *TopN) Close() error { return nil }
