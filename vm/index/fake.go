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

package index

// FakeLeaf is an in-memory LeafReader backed by a deleted-doc set.
type FakeLeaf struct {
	ordinal int
	maxDoc  int
	deleted map[int]bool
}

// NewFakeLeaf builds a leaf of maxDoc documents, none deleted.
func NewFakeLeaf(ordinal, maxDoc int) *FakeLeaf {
	return &FakeLeaf{ordinal: ordinal, maxDoc: maxDoc}
}

// Delete marks doc as soft-deleted in this leaf.
func (l *FakeLeaf) Delete(doc int) {
	if l.deleted == nil {
		l.deleted = make(map[int]bool)
	}
	l.deleted[doc] = true
}

func (l *FakeLeaf) Ordinal() int { return l.ordinal }
func (l *FakeLeaf) MaxDoc() int  { return l.maxDoc }
func (l *FakeLeaf) LiveDocs() func(int) bool {
	if len(l.deleted) == 0 {
		return nil
	}
	return func(doc int) bool { return !l.deleted[doc] }
}

// FakeReader is an in-memory Reader over a fixed slice of leaves.
type FakeReader struct {
	leaves []LeafReader
}

// NewFakeReader builds a Reader over leaves.
func NewFakeReader(leaves ...*FakeLeaf) *FakeReader {
	rs := make([]LeafReader, len(leaves))
	for i, l := range leaves {
		rs[i] = l
	}
	return &FakeReader{leaves: rs}
}

func (r *FakeReader) Leaves() []LeafReader { return r.leaves }

func (r *FakeReader) MaxDoc() int {
	n := 0
	for _, l := range r.leaves {
		n += l.MaxDoc()
	}
	return n
}

// MatchAllQuery matches every live document.
type MatchAllQuery struct{}

func (MatchAllQuery) Rewrite(Reader) (Query, error) { return MatchAllQuery{}, nil }

func (MatchAllQuery) CreateWeight(Reader, ScoreMode) (Weight, error) {
	return matchAllWeight{}, nil
}

type matchAllWeight struct{}

func (matchAllWeight) BulkScorer(leaf LeafReader) (BulkScorer, error) {
	return matchAllScorer{leaf: leaf}, nil
}

type matchAllScorer struct{ leaf LeafReader }

func (s matchAllScorer) Score(min, max, cap int, collect func(doc int)) (int, error) {
	live := s.leaf.LiveDocs()
	doc := min
	collected := 0
	for doc < max && collected < cap {
		if live == nil || live(doc) {
			collect(doc)
			collected++
		}
		doc++
	}
	return doc, nil
}

// MatchNoneQuery matches nothing.
type MatchNoneQuery struct{}

func (MatchNoneQuery) Rewrite(Reader) (Query, error) { return MatchNoneQuery{}, nil }

func (MatchNoneQuery) CreateWeight(Reader, ScoreMode) (Weight, error) {
	return matchNoneWeight{}, nil
}

type matchNoneWeight struct{}

func (matchNoneWeight) BulkScorer(LeafReader) (BulkScorer, error) { return nil, nil }
