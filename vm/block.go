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

	"github.com/farooq-001/qxcore/internal/qerr"
)

// Kind identifies a Block's logical type.
type Kind uint8

const (
	KindInt Kind = iota
	KindLong
	KindDouble
	KindConstant
	KindAggState
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindLong:
		return "Long"
	case KindDouble:
		return "Double"
	case KindConstant:
		return "Constant"
	case KindAggState:
		return "AggState"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Block is an immutable, fixed-length columnar vector of a single
// logical type. Blocks are value-like: once built they are never
// mutated, so they may be shared between operators within a
// pipeline without locking.
//
// A Block is one of:
//
//	Int, Long, Double  - primitive array blocks
//	Constant           - a single value broadcast over positionCount
//	AggState           - an opaque byte buffer of serialized
//	                      aggregator states, itemSize bytes each
type Block struct {
	kind Kind
	n    int // positionCount

	ints    []int32
	longs   []int64
	doubles []float64

	// Constant block payload: one of the above slices
	// of length 1, tagged by constKind.
	constKind Kind

	// AggState payload.
	state    []byte
	itemSize int
	stateTag string

	// Constant-object payload, used when constKind doesn't fit
	// Int/Long/Double (e.g. a shard id).
	obj any
}

// PositionCount returns the number of logical rows in the block.
func (b *Block) PositionCount() int { return b.n }

// Kind returns the block's tag.
func (b *Block) Kind() Kind { return b.kind }

func (b *Block) checkPos(pos int) {
	if pos < 0 || pos >= b.n {
		panic(fmt.Errorf("%w: position %d out of range [0,%d)", qerr.ContractViolation, pos, b.n))
	}
}

// NewIntBlock builds an Int block from vals; vals is not copied.
func NewIntBlock(vals []int32) *Block {
	return &Block{kind: KindInt, n: len(vals), ints: vals}
}

// NewLongBlock builds a Long block from vals; vals is not copied.
func NewLongBlock(vals []int64) *Block {
	return &Block{kind: KindLong, n: len(vals), longs: vals}
}

// NewDoubleBlock builds a Double block from vals; vals is not copied.
func NewDoubleBlock(vals []float64) *Block {
	return &Block{kind: KindDouble, n: len(vals), doubles: vals}
}

// NewConstantInt builds a Constant block that answers every
// position in [0,n) with val.
func NewConstantInt(val int64, n int) *Block {
	return &Block{kind: KindConstant, constKind: KindLong, n: n, longs: []int64{val}}
}

// NewConstantDouble builds a Constant block that answers every
// position in [0,n) with val.
func NewConstantDouble(val float64, n int) *Block {
	return &Block{kind: KindConstant, constKind: KindDouble, n: n, doubles: []float64{val}}
}

// constObjectKind tags a Constant block whose payload doesn't fit
// Int/Long/Double (e.g. a shard id).
const constObjectKind Kind = 255

// NewConstantObject builds a Constant block that answers every
// position in [0,n) with val, accessible only via GetObject.
func NewConstantObject(val any, n int) *Block {
	return &Block{kind: KindConstant, constKind: constObjectKind, n: n, obj: val}
}

// GetInt returns the Int-typed value at pos.
func (b *Block) GetInt(pos int) int32 {
	b.checkPos(pos)
	switch b.kind {
	case KindInt:
		return b.ints[pos]
	case KindConstant:
		return int32(b.longs[0])
	default:
		panic(fmt.Errorf("%w: GetInt on %s block", qerr.ContractViolation, b.kind))
	}
}

// GetLong returns the Long-typed value at pos.
func (b *Block) GetLong(pos int) int64 {
	b.checkPos(pos)
	switch b.kind {
	case KindLong:
		return b.longs[pos]
	case KindInt:
		return int64(b.ints[pos])
	case KindDouble:
		return int64(b.doubles[pos])
	case KindConstant:
		if b.constKind == KindDouble {
			return int64(b.doubles[0])
		}
		return b.longs[0]
	default:
		panic(fmt.Errorf("%w: GetLong on %s block", qerr.ContractViolation, b.kind))
	}
}

// GetDouble returns the Double-typed value at pos.
func (b *Block) GetDouble(pos int) float64 {
	b.checkPos(pos)
	switch b.kind {
	case KindDouble:
		return b.doubles[pos]
	case KindLong:
		return float64(b.longs[pos])
	case KindInt:
		return float64(b.ints[pos])
	case KindConstant:
		if b.constKind == KindDouble {
			return b.doubles[0]
		}
		return float64(b.longs[0])
	default:
		panic(fmt.Errorf("%w: GetDouble on %s block", qerr.ContractViolation, b.kind))
	}
}

// GetObject returns pos's value boxed as any, for generic callers
// that do not know the block's concrete type ahead of time.
func (b *Block) GetObject(pos int) any {
	b.checkPos(pos)
	switch b.kind {
	case KindInt:
		return b.ints[pos]
	case KindLong:
		return b.longs[pos]
	case KindDouble:
		return b.doubles[pos]
	case KindConstant:
		switch b.constKind {
		case KindDouble:
			return b.doubles[0]
		case constObjectKind:
			return b.obj
		default:
			return b.longs[0]
		}
	case KindAggState:
		return b.state[pos*b.itemSize : (pos+1)*b.itemSize]
	default:
		panic(fmt.Errorf("%w: GetObject on unknown block kind", qerr.ContractViolation))
	}
}

// row returns a new length-1 block holding only position pos,
// preserving the kind. Used by Page.Row.
func (b *Block) row(pos int) *Block {
	b.checkPos(pos)
	switch b.kind {
	case KindInt:
		return &Block{kind: KindInt, n: 1, ints: []int32{b.ints[pos]}}
	case KindLong:
		return &Block{kind: KindLong, n: 1, longs: []int64{b.longs[pos]}}
	case KindDouble:
		return &Block{kind: KindDouble, n: 1, doubles: []float64{b.doubles[pos]}}
	case KindConstant:
		return &Block{kind: KindConstant, constKind: b.constKind, n: 1, longs: b.longs, doubles: b.doubles, obj: b.obj}
	case KindAggState:
		return &Block{
			kind:     KindAggState,
			n:        1,
			itemSize: b.itemSize,
			stateTag: b.stateTag,
			state:    b.state[pos*b.itemSize : (pos+1)*b.itemSize : (pos+1)*b.itemSize],
		}
	default:
		panic(fmt.Errorf("%w: Row on unknown block kind", qerr.ContractViolation))
	}
}

// StateTag names the aggregator-state kind an AggState block
// carries (e.g. "max.double"); it lets a downstream aggregator
// refuse to deserialize a block from a mismatched aggregate.
func (b *Block) StateTag() string { return b.stateTag }

// ItemSize returns the fixed per-position byte width of an
// AggState block.
func (b *Block) ItemSize() int { return b.itemSize }

// Get deserializes the state at pos into dst using ser. It is a
// qerr.ContractViolation to call Get on a non-AggState block.
func (b *Block) Get(pos int, ser StateSerializer, dst State) error {
	if b.kind != KindAggState {
		return fmt.Errorf("%w: Get on %s block", qerr.ContractViolation, b.kind)
	}
	b.checkPos(pos)
	if ser.Size() != b.itemSize {
		return fmt.Errorf("%w: serializer size %d != block item size %d", qerr.ModeMismatch, ser.Size(), b.itemSize)
	}
	return ser.Deserialize(dst, b.state, pos*b.itemSize)
}

// Raw returns the full backing byte buffer of an AggState block,
// laid out as positionCount consecutive itemSize-byte records.
func (b *Block) Raw() []byte { return b.state }

// longsRaw returns the backing slice of a Long block for typed
// fast-path folds; it is a qerr.ContractViolation to call this on a
// non-Long block.
func (b *Block) longsRaw() []int64 {
	if b.kind != KindLong {
		panic(fmt.Errorf("%w: longsRaw on %s block", qerr.ContractViolation, b.kind))
	}
	return b.longs
}
