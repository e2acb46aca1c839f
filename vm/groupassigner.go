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
	"math"

	"github.com/dchest/siphash"
)

// groupKey0 and groupKey1 are two fixed random values used to
// bucket group keys before linear-probing for an exact match,
// mirroring splitter.go's use of siphash.Hash for deterministic
// partitioning.
const (
	groupKey0 = 0x5d1ec810
	groupKey1 = 0xfebed702
)

// GroupAssigner maps a by-value column into a dense, 0-based
// group-id block, interning each distinct value the first time it
// is seen: group ids are non-negative integers indexing a dense
// per-group slot vector.
type GroupAssigner struct {
	buckets map[uint64][]int64 // siphash(key) -> candidate group ids
	keys    [][]byte           // group id -> its key bytes
}

// NewGroupAssigner builds an empty assigner.
func NewGroupAssigner() *GroupAssigner {
	return &GroupAssigner{buckets: make(map[uint64][]int64)}
}

// Assign returns a Long block of group ids, one per position of
// the block at channel, interning new keys as they're seen.
func (g *GroupAssigner) Assign(p *Page, channel int) *Block {
	b := p.GetBlock(channel)
	n := b.PositionCount()
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		ids[i] = g.assignOne(keyBytes(b, i))
	}
	return NewLongBlock(ids)
}

func (g *GroupAssigner) assignOne(key []byte) int64 {
	h := siphash.Hash(groupKey0, groupKey1, key)
	for _, id := range g.buckets[h] {
		if string(g.keys[id]) == string(key) {
			return id
		}
	}
	id := int64(len(g.keys))
	g.keys = append(g.keys, key)
	g.buckets[h] = append(g.buckets[h], id)
	return id
}

// NumGroups returns the number of distinct groups assigned so far.
func (g *GroupAssigner) NumGroups() int { return len(g.keys) }

// keyBytes produces a canonical byte representation of b's value
// at pos, suitable for hashing and exact comparison.
func keyBytes(b *Block, pos int) []byte {
	switch b.Kind() {
	case KindDouble:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(b.GetDouble(pos)))
		return buf
	case KindInt, KindLong, KindConstant:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(b.GetLong(pos)))
		return buf
	default:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(b.GetLong(pos)))
		return buf
	}
}
