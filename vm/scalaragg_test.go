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

func page1(t *testing.T, b *Block) *Page {
	t.Helper()
	p, err := NewPage([]*Block{b})
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	return p
}

func TestScalarAggregatorMaxSingle(t *testing.T) {
	a := NewScalarAggregator(ScalarAggConfig{Op: OpMax, Channel: 0, Mode: ModeSingle})
	if err := a.AddRawInput(page1(t, NewLongBlock([]int64{3, 9, -1, 7}))); err != nil {
		t.Fatalf("AddRawInput: %v", err)
	}
	got := a.EvaluateFinal().GetDouble(0)
	if got != 9 {
		t.Fatalf("max: got %v, want 9", got)
	}
}

// TestScalarAggregatorMaxPartialFinalCombine is the explicit
// scenario: two local partial-Max aggregators over disjoint row
// sets are combined by a final-combine aggregator into the overall
// max.
func TestScalarAggregatorMaxPartialFinalCombine(t *testing.T) {
	local1 := NewScalarAggregator(ScalarAggConfig{Op: OpMax, Channel: 0, Mode: ModePartialLocal})
	local2 := NewScalarAggregator(ScalarAggConfig{Op: OpMax, Channel: 0, Mode: ModePartialLocal})
	if err := local1.AddRawInput(page1(t, NewLongBlock([]int64{4, 1, 9}))); err != nil {
		t.Fatalf("local1 AddRawInput: %v", err)
	}
	if err := local2.AddRawInput(page1(t, NewLongBlock([]int64{2, 7, 7, 3}))); err != nil {
		t.Fatalf("local2 AddRawInput: %v", err)
	}
	partial1 := local1.EvaluateIntermediate()
	partial2 := local2.EvaluateIntermediate()

	final := NewScalarAggregator(ScalarAggConfig{Op: OpMax, Channel: 0, Mode: ModeFinalCombine})
	if err := final.AddIntermediateInput(partial1); err != nil {
		t.Fatalf("AddIntermediateInput(partial1): %v", err)
	}
	if err := final.AddIntermediateInput(partial2); err != nil {
		t.Fatalf("AddIntermediateInput(partial2): %v", err)
	}
	got := final.EvaluateFinal().GetDouble(0)
	if got != 9 {
		t.Fatalf("combined max: got %v, want 9", got)
	}
}

func TestScalarAggregatorIntermediateCombine(t *testing.T) {
	local := NewScalarAggregator(ScalarAggConfig{Op: OpSum, Channel: 0, Mode: ModePartialLocal})
	if err := local.AddRawInput(page1(t, NewLongBlock([]int64{1, 2, 3}))); err != nil {
		t.Fatalf("AddRawInput: %v", err)
	}
	intermediate := NewScalarAggregator(ScalarAggConfig{Op: OpSum, Channel: 0, Mode: ModeIntermediate})
	if err := intermediate.AddIntermediateInput(local.EvaluateIntermediate()); err != nil {
		t.Fatalf("AddIntermediateInput: %v", err)
	}
	reEmitted := intermediate.EvaluateIntermediate()

	final := NewScalarAggregator(ScalarAggConfig{Op: OpSum, Channel: 0, Mode: ModeFinalCombine})
	if err := final.AddIntermediateInput(reEmitted); err != nil {
		t.Fatalf("final AddIntermediateInput: %v", err)
	}
	if got := final.EvaluateFinal().GetDouble(0); got != 6 {
		t.Fatalf("sum: got %v, want 6", got)
	}
}

func TestScalarAggregatorCount(t *testing.T) {
	a := NewScalarAggregator(ScalarAggConfig{Op: OpCount, Channel: 0, Mode: ModeSingle})
	_ = a.AddRawInput(page1(t, NewLongBlock([]int64{1, 2, 3})))
	_ = a.AddRawInput(page1(t, NewLongBlock([]int64{4, 5})))
	if got := a.EvaluateFinal().GetLong(0); got != 5 {
		t.Fatalf("count: got %d, want 5", got)
	}
}

func TestScalarAggregatorAvg(t *testing.T) {
	a := NewScalarAggregator(ScalarAggConfig{Op: OpAvg, Channel: 0, Mode: ModeSingle})
	_ = a.AddRawInput(page1(t, NewDoubleBlock([]float64{2, 4, 6, 8})))
	if got := a.EvaluateFinal().GetDouble(0); got != 5 {
		t.Fatalf("avg: got %v, want 5", got)
	}
}

// TestScalarAggregatorAssociativeCommutative is a property test:
// partitioning a Sum/Max/Min aggregate's input in any order and any
// grouping must produce the same final result as a single pass,
// since the combine operation is associative and commutative.
func TestScalarAggregatorAssociativeCommutative(t *testing.T) {
	vals := []int64{5, -3, 17, 0, 42, -9, 8}
	partitions := [][]int64{
		{vals[0], vals[1]},
		{vals[2]},
		{vals[3], vals[4], vals[5]},
		{vals[6]},
	}
	ops := []ScalarOp{OpSum, OpMax, OpMin, OpCount}
	for _, op := range ops {
		whole := NewScalarAggregator(ScalarAggConfig{Op: op, Channel: 0, Mode: ModeSingle})
		_ = whole.AddRawInput(page1(t, NewLongBlock(vals)))
		want := whole.EvaluateFinal()

		final := NewScalarAggregator(ScalarAggConfig{Op: op, Channel: 0, Mode: ModeFinalCombine})
		for _, part := range partitions {
			local := NewScalarAggregator(ScalarAggConfig{Op: op, Channel: 0, Mode: ModePartialLocal})
			_ = local.AddRawInput(page1(t, NewLongBlock(part)))
			if err := final.AddIntermediateInput(local.EvaluateIntermediate()); err != nil {
				t.Fatalf("op %v: AddIntermediateInput: %v", op, err)
			}
		}
		got := final.EvaluateFinal()
		if op == OpCount {
			if got.GetLong(0) != want.GetLong(0) {
				t.Fatalf("op %v: got %d, want %d", op, got.GetLong(0), want.GetLong(0))
			}
		} else if got.GetDouble(0) != want.GetDouble(0) {
			t.Fatalf("op %v: got %v, want %v", op, got.GetDouble(0), want.GetDouble(0))
		}
	}
}

func TestScalarAggregatorModeMismatch(t *testing.T) {
	a := NewScalarAggregator(ScalarAggConfig{Op: OpSum, Channel: 0, Mode: ModeFinalCombine})
	if err := a.AddRawInput(page1(t, NewLongBlock([]int64{1}))); err == nil {
		t.Fatal("expected ModeMismatch calling AddRawInput on a partial-input aggregator")
	}
}
