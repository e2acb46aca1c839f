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
	"golang.org/x/exp/slices"

	"github.com/farooq-001/qxcore/vm/index"
)

// orderedLeaves returns r's leaves sorted by Ordinal, so slicing is
// deterministic regardless of the order a Reader implementation
// happens to return Leaves() in.
func orderedLeaves(r index.Reader) []index.LeafReader {
	leaves := append([]index.LeafReader(nil), r.Leaves()...)
	slices.SortFunc(leaves, func(a, b index.LeafReader) bool {
		return a.Ordinal() < b.Ordinal()
	})
	return leaves
}

// MaxDocsPerSlice and MaxSegmentsPerSlice bound a segment-sliced
// work unit.
const (
	MaxDocsPerSlice     = 250_000
	MaxSegmentsPerSlice = 5
)

// PartialLeaf is a contiguous half-open document range inside one
// index segment: (leaf, [minDoc, maxDoc)).
type PartialLeaf struct {
	Leaf   index.LeafReader
	MinDoc int
	MaxDoc int
}

// Count returns the number of documents covered by this range.
func (p PartialLeaf) Count() int { return p.MaxDoc - p.MinDoc }

// Slice is one independent unit of scan work: a list of
// partial-leaf ranges assigned to a single pipeline.
type Slice []PartialLeaf

// DocCount returns the total number of documents covered by s.
func (s Slice) DocCount() int {
	n := 0
	for _, p := range s {
		n += p.Count()
	}
	return n
}

// DocSlice partitions r's documents into n contiguous ranges of
// roughly equal size. The first slice absorbs total_docs % n extra
// documents; all others receive exactly
// total_docs / n. A slice may cross leaf boundaries.
//
// Invariants: sum of slice doc counts == r.MaxDoc(); the number of
// slices returned equals min(n, r.MaxDoc()).
func DocSlice(r index.Reader, n int) []Slice {
	total := r.MaxDoc()
	if n < 1 {
		n = 1
	}
	if n > total {
		n = total
	}
	if n == 0 {
		return nil
	}
	base := total / n
	extra := total % n

	slices := make([]Slice, n)
	leaves := orderedLeaves(r)
	li := 0
	leafOff := 0 // doc offset already consumed within leaves[li]

	for s := 0; s < n; s++ {
		want := base
		if s == 0 {
			want += extra
		}
		var slice Slice
		for want > 0 {
			leaf := leaves[li]
			avail := leaf.MaxDoc() - leafOff
			take := avail
			if take > want {
				take = want
			}
			if take > 0 {
				slice = append(slice, PartialLeaf{Leaf: leaf, MinDoc: leafOff, MaxDoc: leafOff + take})
			}
			leafOff += take
			want -= take
			if leafOff >= leaf.MaxDoc() {
				li++
				leafOff = 0
			}
		}
		slices[s] = slice
	}
	return slices
}

// SegmentSlice groups whole leaves into slices bounded by
// MaxDocsPerSlice and MaxSegmentsPerSlice, without ever splitting a
// leaf across two slices.
func SegmentSlice(r index.Reader) []Slice {
	var slices []Slice
	var cur Slice
	curDocs := 0

	flush := func() {
		if len(cur) > 0 {
			slices = append(slices, cur)
			cur = nil
			curDocs = 0
		}
	}
	for _, leaf := range orderedLeaves(r) {
		md := leaf.MaxDoc()
		if len(cur) > 0 && (len(cur) >= MaxSegmentsPerSlice || curDocs+md > MaxDocsPerSlice) {
			flush()
		}
		cur = append(cur, PartialLeaf{Leaf: leaf, MinDoc: 0, MaxDoc: md})
		curDocs += md
	}
	flush()
	return slices
}
