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

import "testing"

func drainTopN(t *testing.T, top *TopN) []int64 {
	t.Helper()
	var out []int64
	for {
		p, err := top.GetOutput()
		if err != nil {
			t.Fatalf("GetOutput: %v", err)
		}
		if p == nil {
			if top.IsFinished() {
				break
			}
			continue
		}
		out = append(out, p.GetBlock(0).GetLong(0))
	}
	return out
}

func multiset(vals []int64) map[int64]int {
	m := map[int64]int{}
	for _, v := range vals {
		m[v]++
	}
	return m
}

// TestTopNDescendingScenario is the explicit scenario: input rows
// [4, 1, 9, 2, 7, 7, 3], descending, k=3 -> the multiset {9, 7, 7}.
func TestTopNDescendingScenario(t *testing.T) {
	top := NewTopN(TopNConfig{SortChannel: 0, Ascending: false, TopCount: 3})
	in := []int64{4, 1, 9, 2, 7, 7, 3}
	if err := top.AddInput(page1(t, NewLongBlock(in))); err != nil {
		t.Fatalf("AddInput: %v", err)
	}
	if err := top.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got := drainTopN(t, top)
	want := multiset([]int64{9, 7, 7})
	if gotM := multiset(got); len(gotM) != len(want) {
		t.Fatalf("got %v, want multiset %v", got, want)
	} else {
		for k, v := range want {
			if gotM[k] != v {
				t.Fatalf("got %v, want multiset %v", got, want)
			}
		}
	}
}

func TestTopNAscendingKeepsSmallest(t *testing.T) {
	top := NewTopN(TopNConfig{SortChannel: 0, Ascending: true, TopCount: 3})
	in := []int64{4, 1, 9, 2, 7, 7, 3}
	_ = top.AddInput(page1(t, NewLongBlock(in)))
	_ = top.Finish()
	got := drainTopN(t, top)
	want := multiset([]int64{1, 2, 3})
	if gotM := multiset(got); len(gotM) != len(want) {
		t.Fatalf("got %v, want multiset %v", got, want)
	} else {
		for k, v := range want {
			if gotM[k] != v {
				t.Fatalf("got %v, want multiset %v", got, want)
			}
		}
	}
}

func TestTopNFewerRowsThanK(t *testing.T) {
	top := NewTopN(TopNConfig{SortChannel: 0, Ascending: false, TopCount: 10})
	_ = top.AddInput(page1(t, NewLongBlock([]int64{1, 2, 3})))
	_ = top.Finish()
	got := drainTopN(t, top)
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3 (fewer rows than k)", len(got))
	}
}

// TestTopNKProperty is a property test: for random-ish input and
// various k, TopN must retain exactly the k smallest (ascending) or
// k largest (descending) values, regardless of insertion order.
func TestTopNKProperty(t *testing.T) {
	in := []int64{15, -4, 8, 23, 0, 0, 7, 99, -100, 42, 3, 3, 3}
	for _, k := range []int{1, 3, 5, len(in), len(in) + 5} {
		for _, asc := range []bool{true, false} {
			top := NewTopN(TopNConfig{SortChannel: 0, Ascending: asc, TopCount: k})
			_ = top.AddInput(page1(t, NewLongBlock(in)))
			_ = top.Finish()
			got := drainTopN(t, top)

			sorted := append([]int64(nil), in...)
			sortInt64s(sorted, asc)
			wantN := k
			if wantN > len(in) {
				wantN = len(in)
			}
			want := multiset(sorted[:wantN])
			gotM := multiset(got)
			if len(got) != wantN {
				t.Fatalf("k=%d asc=%v: got %d rows, want %d", k, asc, len(got), wantN)
			}
			for v, c := range want {
				if gotM[v] != c {
					t.Fatalf("k=%d asc=%v: got %v, want multiset %v", k, asc, got, want)
				}
			}
		}
	}
}

// sortInt64s sorts vals ascending or descending using a plain
// insertion sort; small enough inputs that this needs no library.
func sortInt64s(vals []int64, ascending bool) {
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0; j-- {
			swap := vals[j-1] > vals[j]
			if !ascending {
				swap = vals[j-1] < vals[j]
			}
			if !swap {
				break
			}
			vals[j-1], vals[j] = vals[j], vals[j-1]
		}
	}
}

func TestTopNZeroCount(t *testing.T) {
	top := NewTopN(TopNConfig{SortChannel: 0, Ascending: false, TopCount: 0})
	_ = top.AddInput(page1(t, NewLongBlock([]int64{1, 2, 3})))
	_ = top.Finish()
	got := drainTopN(t, top)
	if len(got) != 0 {
		t.Fatalf("got %d rows, want 0 for TopCount=0", len(got))
	}
}
