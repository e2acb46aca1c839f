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
	"math"

	"github.com/farooq-001/qxcore/internal/qerr"
)

// GroupAggConfig configures a GroupingAggregator: the operator
// factory surface for a grouped aggregate column.
type GroupAggConfig struct {
	Op      ScalarOp `json:"op" yaml:"op"`
	Channel int      `json:"channel" yaml:"channel"`
	Mode    Mode     `json:"mode" yaml:"mode"`
}

// GroupingAggregator is a multi-group aggregate keyed by a group-id
// block. It holds one state slot per group id; the
// slot vector grows on demand as new group ids are observed, with
// new slots initialized to the aggregator's identity element.
type GroupingAggregator struct {
	cfg GroupAggConfig
	ser StateSerializer

	doubles []float64     // Max, Min, Sum
	counts  []int64       // Count
	avgSum  []float64     // Avg
	avgCnt  []int64       // Avg
}

// NewGroupingAggregator builds an empty GroupingAggregator.
func NewGroupingAggregator(cfg GroupAggConfig) *GroupingAggregator {
	g := &GroupingAggregator{cfg: cfg}
	switch cfg.Op {
	case OpMax:
		g.ser = doubleStateSerializer{tag: "max.double"}
	case OpMin:
		g.ser = doubleStateSerializer{tag: "min.double"}
	case OpSum:
		g.ser = doubleStateSerializer{tag: "sum.double"}
	case OpCount:
		g.ser = countStateSerializer{}
	case OpAvg:
		g.ser = avgStateSerializer{}
	}
	return g
}

func (g *GroupingAggregator) identity() float64 {
	switch g.cfg.Op {
	case OpMax:
		return math.Inf(-1)
	case OpMin:
		return math.Inf(1)
	default:
		return 0
	}
}

// ensure grows every slot slice so that group id up to and
// including gid exists, seeding new slots with the identity
// element.
func (g *GroupingAggregator) ensure(gid int) {
	switch g.cfg.Op {
	case OpCount:
		for len(g.counts) <= gid {
			g.counts = append(g.counts, 0)
		}
	case OpAvg:
		for len(g.avgSum) <= gid {
			g.avgSum = append(g.avgSum, 0)
			g.avgCnt = append(g.avgCnt, 0)
		}
	default:
		id := g.identity()
		for len(g.doubles) <= gid {
			g.doubles = append(g.doubles, id)
		}
	}
}

// ProcessPage pairs groupIDs[i] with page's value (if this
// aggregator's mode is raw input) or serialized state (if
// partial), for every position i, folding into the addressed
// group's slot.
func (g *GroupingAggregator) ProcessPage(groupIDs *Block, p *Page) error {
	if groupIDs.PositionCount() != p.PositionCount() {
		return fmt.Errorf("%w: group-id block has %d positions, page has %d", qerr.ContractViolation, groupIDs.PositionCount(), p.PositionCount())
	}
	n := p.PositionCount()
	if g.cfg.Mode.IsInputPartial() {
		states := p.GetBlock(g.cfg.Channel)
		if states.Kind() != KindAggState {
			return fmt.Errorf("%w: partial-input channel is a %s block", qerr.ModeMismatch, states.Kind())
		}
		if states.StateTag() != g.ser.Tag() {
			return fmt.Errorf("%w: state tag %q != aggregator tag %q", qerr.ModeMismatch, states.StateTag(), g.ser.Tag())
		}
		for i := 0; i < n; i++ {
			gid := int(groupIDs.GetLong(i))
			g.ensure(gid)
			if err := g.mergeState(gid, states, i); err != nil {
				return err
			}
		}
		return nil
	}
	vals := p.GetBlock(g.cfg.Channel)
	for i := 0; i < n; i++ {
		gid := int(groupIDs.GetLong(i))
		g.ensure(gid)
		g.foldRaw(gid, vals, i)
	}
	return nil
}

func (g *GroupingAggregator) foldRaw(gid int, b *Block, pos int) {
	switch g.cfg.Op {
	case OpMax:
		v := elementDouble(b, pos)
		if v > g.doubles[gid] {
			g.doubles[gid] = v
		}
	case OpMin:
		v := elementDouble(b, pos)
		if v < g.doubles[gid] {
			g.doubles[gid] = v
		}
	case OpSum:
		g.doubles[gid] += elementDouble(b, pos)
	case OpCount:
		g.counts[gid]++
	case OpAvg:
		g.avgSum[gid] += elementDouble(b, pos)
		g.avgCnt[gid]++
	}
}

func elementDouble(b *Block, pos int) float64 {
	switch b.Kind() {
	case KindDouble:
		return b.GetDouble(pos)
	default:
		return float64(b.GetLong(pos))
	}
}

func (g *GroupingAggregator) mergeState(gid int, b *Block, pos int) error {
	switch g.cfg.Op {
	case OpMax:
		var tmp DoubleState
		if err := b.Get(pos, g.ser, &tmp); err != nil {
			return err
		}
		if tmp.Value > g.doubles[gid] {
			g.doubles[gid] = tmp.Value
		}
	case OpMin:
		var tmp DoubleState
		if err := b.Get(pos, g.ser, &tmp); err != nil {
			return err
		}
		if tmp.Value < g.doubles[gid] {
			g.doubles[gid] = tmp.Value
		}
	case OpSum:
		var tmp DoubleState
		if err := b.Get(pos, g.ser, &tmp); err != nil {
			return err
		}
		g.doubles[gid] += tmp.Value
	case OpCount:
		var tmp CountState
		if err := b.Get(pos, g.ser, &tmp); err != nil {
			return err
		}
		g.counts[gid] += tmp.Count
	case OpAvg:
		var tmp AvgState
		if err := b.Get(pos, g.ser, &tmp); err != nil {
			return err
		}
		g.avgSum[gid] += tmp.Sum
		g.avgCnt[gid] += tmp.Count
	}
	return nil
}

// NumGroups returns the number of group slots currently allocated.
func (g *GroupingAggregator) NumGroups() int {
	switch g.cfg.Op {
	case OpCount:
		return len(g.counts)
	case OpAvg:
		return len(g.avgSum)
	default:
		return len(g.doubles)
	}
}

// Evaluate emits, for every group in id order, either an
// intermediate block (serialized states) or a final block
// (finalized scalars), governed by the mode's output side.
func (g *GroupingAggregator) Evaluate() *Block {
	if g.cfg.Mode.IsOutputPartial() {
		b := NewAggStateBuilder(g.ser)
		for gid := 0; gid < g.NumGroups(); gid++ {
			_ = b.Append(g.stateAt(gid))
		}
		return b.Build()
	}
	n := g.NumGroups()
	switch g.cfg.Op {
	case OpCount:
		out := make([]int64, n)
		copy(out, g.counts)
		return NewLongBlock(out)
	case OpAvg:
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			if g.avgCnt[i] != 0 {
				out[i] = g.avgSum[i] / float64(g.avgCnt[i])
			}
		}
		return NewDoubleBlock(out)
	default:
		out := make([]float64, n)
		copy(out, g.doubles)
		return NewDoubleBlock(out)
	}
}

func (g *GroupingAggregator) stateAt(gid int) State {
	switch g.cfg.Op {
	case OpCount:
		return &CountState{Count: g.counts[gid]}
	case OpAvg:
		return &AvgState{Sum: g.avgSum[gid], Count: g.avgCnt[gid]}
	default:
		return &DoubleState{Value: g.doubles[gid]}
	}
}
