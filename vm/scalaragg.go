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
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"github.com/farooq-001/qxcore/internal/qerr"
)

// Mode selects an aggregator's input/output partiality:
//
//	raw -> final       single stage
//	raw -> partial     local pre-aggregation
//	partial -> partial intermediate combine
//	partial -> final   final combine
//
// Mode is fixed per aggregator instance by the planner.
type Mode struct {
	InputPartial  bool
	OutputPartial bool
}

var (
	ModeSingle           = Mode{InputPartial: false, OutputPartial: false}
	ModePartialLocal     = Mode{InputPartial: false, OutputPartial: true}
	ModeIntermediate     = Mode{InputPartial: true, OutputPartial: true}
	ModeFinalCombine     = Mode{InputPartial: true, OutputPartial: false}
)

func (m Mode) IsInputPartial() bool  { return m.InputPartial }
func (m Mode) IsOutputPartial() bool { return m.OutputPartial }

// DoubleState is the accumulator used by Max, Min, and Sum.
type DoubleState struct{ Value float64 }

// doubleStateSerializer serializes DoubleState as 8 little-endian
// bytes (IEEE 754 double).
type doubleStateSerializer struct{ tag string }

func (s doubleStateSerializer) Size() int { return 8 }
func (s doubleStateSerializer) Tag() string { return s.tag }

func (s doubleStateSerializer) Serialize(st State, buf []byte, offset int) int {
	ds := st.(*DoubleState)
	binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(ds.Value))
	return 8
}

func (s doubleStateSerializer) Deserialize(dst State, buf []byte, offset int) error {
	ds, ok := dst.(*DoubleState)
	if !ok {
		return fmt.Errorf("%w: expected *DoubleState", qerr.ModeMismatch)
	}
	ds.Value = math.Float64frombits(binary.LittleEndian.Uint64(buf[offset:]))
	return nil
}

// CountState is the accumulator used by Count.
type CountState struct{ Count int64 }

type countStateSerializer struct{}

func (countStateSerializer) Size() int    { return 8 }
func (countStateSerializer) Tag() string  { return "count" }
func (countStateSerializer) Serialize(st State, buf []byte, offset int) int {
	cs := st.(*CountState)
	binary.LittleEndian.PutUint64(buf[offset:], uint64(cs.Count))
	return 8
}
func (countStateSerializer) Deserialize(dst State, buf []byte, offset int) error {
	cs, ok := dst.(*CountState)
	if !ok {
		return fmt.Errorf("%w: expected *CountState", qerr.ModeMismatch)
	}
	cs.Count = int64(binary.LittleEndian.Uint64(buf[offset:]))
	return nil
}

// AvgState is the (sum, count) accumulator used by Avg.
type AvgState struct {
	Sum   float64
	Count int64
}

type avgStateSerializer struct{}

func (avgStateSerializer) Size() int   { return 16 }
func (avgStateSerializer) Tag() string { return "avg" }
func (avgStateSerializer) Serialize(st State, buf []byte, offset int) int {
	as := st.(*AvgState)
	binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(as.Sum))
	binary.LittleEndian.PutUint64(buf[offset+8:], uint64(as.Count))
	return 16
}
func (avgStateSerializer) Deserialize(dst State, buf []byte, offset int) error {
	as, ok := dst.(*AvgState)
	if !ok {
		return fmt.Errorf("%w: expected *AvgState", qerr.ModeMismatch)
	}
	as.Sum = math.Float64frombits(binary.LittleEndian.Uint64(buf[offset:]))
	as.Count = int64(binary.LittleEndian.Uint64(buf[offset+8:]))
	return nil
}

// ScalarOp names a single-group aggregate function.
type ScalarOp uint8

const (
	OpMax ScalarOp = iota
	OpMin
	OpSum
	OpCount
	OpAvg
)

// ScalarAggConfig configures a ScalarAggregator: the operator
// factory surface for a single-group aggregate.
type ScalarAggConfig struct {
	Op      ScalarOp `json:"op" yaml:"op"`
	Channel int      `json:"channel" yaml:"channel"`
	Mode    Mode     `json:"mode" yaml:"mode"`
}

// ScalarAggregator is a single-group aggregate. It is not itself an
// Operator: it is the accumulation unit a pipeline breaker (an
// Operator wrapping one or more ScalarAggregators) drives with
// AddInput/Finish.
type ScalarAggregator struct {
	cfg ScalarAggConfig
	ser StateSerializer

	double *DoubleState // Max, Min, Sum
	count  *CountState  // Count
	avg    *AvgState    // Avg
}

// NewScalarAggregator builds a ScalarAggregator seeded with the
// identity element of cfg.Op's combine operation (e.g.
// math.Inf(-1) for Max -- never math.MinInt64 / -math.MaxFloat64,
// which would silently lose to an all-positive or all-negative
// input column).
func NewScalarAggregator(cfg ScalarAggConfig) *ScalarAggregator {
	a := &ScalarAggregator{cfg: cfg}
	switch cfg.Op {
	case OpMax:
		a.double = &DoubleState{Value: math.Inf(-1)}
		a.ser = doubleStateSerializer{tag: "max.double"}
	case OpMin:
		a.double = &DoubleState{Value: math.Inf(1)}
		a.ser = doubleStateSerializer{tag: "min.double"}
	case OpSum:
		a.double = &DoubleState{Value: 0}
		a.ser = doubleStateSerializer{tag: "sum.double"}
	case OpCount:
		a.count = &CountState{Count: 0}
		a.ser = countStateSerializer{}
	case OpAvg:
		a.avg = &AvgState{}
		a.ser = avgStateSerializer{}
	}
	return a
}

// foldExtreme is the typed fast path for Max/Min over a Long
// block: it folds without ever upconverting through float64,
// unlike foldDouble below.
func foldExtreme[T constraints.Ordered](vals []T, acc T, better func(a, b T) bool) T {
	for _, v := range vals {
		if better(v, acc) {
			acc = v
		}
	}
	return acc
}

// foldDouble reduces block's values (whichever of Int/Long/Double
// it holds) into a single float64 via combine, starting from init.
func foldDouble(b *Block, init float64, combine func(acc, v float64) float64) float64 {
	acc := init
	n := b.PositionCount()
	switch b.Kind() {
	case KindDouble:
		for i := 0; i < n; i++ {
			acc = combine(acc, b.GetDouble(i))
		}
	case KindLong:
		for i := 0; i < n; i++ {
			acc = combine(acc, float64(b.GetLong(i)))
		}
	case KindInt:
		for i := 0; i < n; i++ {
			acc = combine(acc, float64(b.GetInt(i)))
		}
	default:
		for i := 0; i < n; i++ {
			acc = combine(acc, b.GetDouble(i))
		}
	}
	return acc
}

// foldLongExtreme applies foldExtreme's typed fast path to a Long
// block, used by AddRawInput for Max/Min so a pure-integer column
// never pays foldDouble's float64 upconversion. It walks the block
// in avxBatch()-sized chunks, a width hint only -- the result is
// identical regardless of chunk size. The block's extreme is merged
// into init with combine in float64, so an infinite identity seed is
// never converted to int64.
func foldLongExtreme(b *Block, init float64, better func(a, b int64) bool, combine func(a, b float64) float64) float64 {
	vals := b.longsRaw()
	if len(vals) == 0 {
		return init
	}
	acc := vals[0]
	step := avxBatch()
	i := 1
	for ; i+step <= len(vals); i += step {
		acc = foldExtreme(vals[i:i+step], acc, better)
	}
	acc = foldExtreme(vals[i:], acc, better)
	return combine(init, float64(acc))
}

// AddRawInput consumes raw values from the declared input channel
// of page and folds them into the aggregator's state. It is a
// qerr.ModeMismatch to call AddRawInput on an aggregator whose
// mode has input-partial set.
func (a *ScalarAggregator) AddRawInput(p *Page) error {
	if a.cfg.Mode.IsInputPartial() {
		return fmt.Errorf("%w: AddRawInput on a partial-input aggregator", qerr.ModeMismatch)
	}
	b := p.GetBlock(a.cfg.Channel)
	switch a.cfg.Op {
	case OpMax:
		if b.Kind() == KindLong {
			a.double.Value = foldLongExtreme(b, a.double.Value, func(x, y int64) bool { return x > y }, math.Max)
		} else {
			a.double.Value = foldDouble(b, a.double.Value, math.Max)
		}
	case OpMin:
		if b.Kind() == KindLong {
			a.double.Value = foldLongExtreme(b, a.double.Value, func(x, y int64) bool { return x < y }, math.Min)
		} else {
			a.double.Value = foldDouble(b, a.double.Value, math.Min)
		}
	case OpSum:
		a.double.Value = foldDouble(b, a.double.Value, func(acc, v float64) float64 { return acc + v })
	case OpCount:
		a.count.Count += int64(b.PositionCount())
	case OpAvg:
		n := b.PositionCount()
		a.avg.Sum = foldDouble(b, a.avg.Sum, func(acc, v float64) float64 { return acc + v })
		a.avg.Count += int64(n)
	}
	return nil
}

// AddIntermediateInput consumes a block of serialized states,
// deserializing and merging each position in turn. It fails with
// qerr.ModeMismatch if b is not an AggState block or its tag
// doesn't match this aggregator's state kind.
func (a *ScalarAggregator) AddIntermediateInput(b *Block) error {
	if b.Kind() != KindAggState {
		return fmt.Errorf("%w: AddIntermediateInput on a %s block", qerr.ModeMismatch, b.Kind())
	}
	if b.StateTag() != a.ser.Tag() {
		return fmt.Errorf("%w: state tag %q != aggregator tag %q", qerr.ModeMismatch, b.StateTag(), a.ser.Tag())
	}
	for i := 0; i < b.PositionCount(); i++ {
		if err := a.mergeOne(b, i); err != nil {
			return err
		}
	}
	return nil
}

func (a *ScalarAggregator) mergeOne(b *Block, pos int) error {
	switch a.cfg.Op {
	case OpMax:
		var tmp DoubleState
		if err := b.Get(pos, a.ser, &tmp); err != nil {
			return err
		}
		a.double.Value = math.Max(a.double.Value, tmp.Value)
	case OpMin:
		var tmp DoubleState
		if err := b.Get(pos, a.ser, &tmp); err != nil {
			return err
		}
		a.double.Value = math.Min(a.double.Value, tmp.Value)
	case OpSum:
		var tmp DoubleState
		if err := b.Get(pos, a.ser, &tmp); err != nil {
			return err
		}
		a.double.Value += tmp.Value
	case OpCount:
		var tmp CountState
		if err := b.Get(pos, a.ser, &tmp); err != nil {
			return err
		}
		a.count.Count += tmp.Count
	case OpAvg:
		var tmp AvgState
		if err := b.Get(pos, a.ser, &tmp); err != nil {
			return err
		}
		a.avg.Sum += tmp.Sum
		a.avg.Count += tmp.Count
	}
	return nil
}

// EvaluateIntermediate emits a single-position AggState block
// holding the current state's serialization. Used when this
// aggregator's mode has partial output.
func (a *ScalarAggregator) EvaluateIntermediate() *Block {
	b := NewAggStateBuilder(a.ser)
	_ = b.Append(a.stateValue())
	return b.Build()
}

// EvaluateFinal emits a single-position primitive block carrying
// the finalized scalar. Used when this aggregator's mode has final
// output.
func (a *ScalarAggregator) EvaluateFinal() *Block {
	switch a.cfg.Op {
	case OpCount:
		return NewLongBlock([]int64{a.count.Count})
	case OpAvg:
		v := 0.0
		if a.avg.Count != 0 {
			v = a.avg.Sum / float64(a.avg.Count)
		}
		return NewDoubleBlock([]float64{v})
	default:
		return NewDoubleBlock([]float64{a.double.Value})
	}
}

func (a *ScalarAggregator) stateValue() State {
	switch a.cfg.Op {
	case OpCount:
		return a.count
	case OpAvg:
		return a.avg
	default:
		return a.double
	}
}

// Serializer returns the state serializer this aggregator uses,
// for callers that need to decode its intermediate blocks
// out-of-band (e.g. a GroupingAggregator sharing the same op).
func (a *ScalarAggregator) Serializer() StateSerializer { return a.ser }
