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

// State is a small mutable accumulator belonging to one aggregator
// instance (or one group slot of a grouping aggregator).
type State any

// StateSerializer round-trips a State to/from a fixed-width byte
// region. Size must be stable for a given state type across
// processes of the same major version: it defines the wire format
// used for cross-node partial aggregation.
//
// Encoding is little-endian, natural width, no padding.
type StateSerializer interface {
	// Size returns the fixed number of bytes a serialized
	// state occupies.
	Size() int

	// Serialize writes exactly Size() bytes to buf[offset:]
	// and returns the number of bytes written.
	Serialize(s State, buf []byte, offset int) int

	// Deserialize reads exactly Size() bytes from buf[offset:]
	// into dst.
	Deserialize(dst State, buf []byte, offset int) error

	// Tag names the state kind, used as the AggState block's
	// StateTag so a mismatched consumer can refuse the block
	// fast rather than misinterpret its bytes.
	Tag() string
}

// AggStateBuilder accumulates serialized aggregator states,
// position by position, into a growing byte buffer and snapshots
// it into an immutable Block at Build time.
//
// The growing buffer is copy-on-build (a fresh copy_of is taken at
// Build()) so that readers of the built Block never race a still
// growing builder.
type AggStateBuilder struct {
	ser   StateSerializer
	buf   []byte
	n     int
	first bool
}

// NewAggStateBuilder constructs a builder that will serialize
// states with ser.
func NewAggStateBuilder(ser StateSerializer) *AggStateBuilder {
	return &AggStateBuilder{ser: ser}
}

// Append serializes s and appends it as the next position. It
// fails with qerr.VariableSizeState if the serializer reports a
// size that does not match the size already committed to (the
// serializer's Size() is assumed stable, so this only fires on a
// buggy serializer implementation).
func (a *AggStateBuilder) Append(s State) error {
	sz := a.ser.Size()
	off := len(a.buf)
	a.buf = append(a.buf, make([]byte, sz)...)
	n := a.ser.Serialize(s, a.buf, off)
	if n != sz {
		a.buf = a.buf[:off]
		return fmt.Errorf("%w: serializer wrote %d bytes, wanted %d", qerr.VariableSizeState, n, sz)
	}
	a.n++
	return nil
}

// Build snapshots the builder's buffer into an immutable AggState
// Block. The builder may continue to be used afterwards; the
// returned Block is unaffected by further Append calls.
func (a *AggStateBuilder) Build() *Block {
	cp := make([]byte, len(a.buf))
	copy(cp, a.buf)
	return &Block{
		kind:     KindAggState,
		n:        a.n,
		state:    cp,
		itemSize: a.ser.Size(),
		stateTag: a.ser.Tag(),
	}
}

// Reset clears the builder so it can be reused for a new Block.
func (a *AggStateBuilder) Reset() {
	a.buf = a.buf[:0]
	a.n = 0
}
