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

func TestHashAggregateOperatorLifecycle(t *testing.T) {
	h := NewHashAggregate(0, []GroupAggConfig{
		{Op: OpSum, Channel: 1, Mode: ModeSingle},
		{Op: OpCount, Channel: 1, Mode: ModeSingle},
	})

	byVal := NewLongBlock([]int64{10, 20, 10, 30})
	vals := NewLongBlock([]int64{1, 2, 3, 4})
	p, err := NewPage([]*Block{byVal, vals})
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}

	if !h.NeedsInput() {
		t.Fatal("expected NeedsInput before Finish")
	}
	if err := h.AddInput(p); err != nil {
		t.Fatalf("AddInput: %v", err)
	}
	if err := h.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if h.NeedsInput() {
		t.Fatal("expected NeedsInput to be false after Finish")
	}
	if err := h.AddInput(p); err == nil {
		t.Fatal("expected an error adding input after Finish")
	}

	out, err := h.GetOutput()
	if err != nil {
		t.Fatalf("GetOutput: %v", err)
	}
	if out == nil {
		t.Fatal("expected an output page")
	}
	if out.Channels() != 3 {
		t.Fatalf("expected 3 channels (group key + 2 aggregates), got %d", out.Channels())
	}
	if out.PositionCount() != 3 {
		t.Fatalf("expected 3 distinct groups, got %d", out.PositionCount())
	}

	sums := map[int64]int64{}
	counts := map[int64]int64{}
	for i := 0; i < out.PositionCount(); i++ {
		key := out.GetBlock(0).GetLong(i)
		sums[key] = out.GetBlock(1).GetLong(i)
		counts[key] = out.GetBlock(2).GetLong(i)
	}
	// group 0 corresponds to byVal==10 (rows 0,2 -> vals 1,3), group
	// 1 to byVal==20 (row 1 -> val 2); byVal==30 is a third group.
	total := int64(0)
	for _, v := range sums {
		total += v
	}
	if total != 10 { // 1+2+3+4
		t.Fatalf("sum across all groups: got %d, want 10", total)
	}
	totalCount := int64(0)
	for _, c := range counts {
		totalCount += c
	}
	if totalCount != 4 {
		t.Fatalf("count across all groups: got %d, want 4", totalCount)
	}

	if !h.IsFinished() {
		t.Fatal("expected IsFinished after draining the single output page")
	}
}
