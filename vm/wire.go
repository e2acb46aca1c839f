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

	"github.com/klauspost/compress/zstd"

	"github.com/farooq-001/qxcore/internal/qerr"
)

// wireTagLen bounds the length-prefixed state-kind tag so a
// corrupt header can't claim an unbounded allocation.
const wireTagLen = 255

// EncodeAggregatorStateBlock writes b (which must be an AggState
// block) to the following wire format:
//
//	u8  flags | u8 tag_len | tag_bytes
//	u32 position_count | u32 item_size | bytes[position_count*item_size]
//
// little-endian throughout. If compress is true, bit 0 of flags is
// set and the byte region is written as a zstd frame, for
// cross-node transfer of large intermediate states; position_count
// and item_size still describe the uncompressed records.
func EncodeAggregatorStateBlock(b *Block, compress bool) ([]byte, error) {
	if b.Kind() != KindAggState {
		return nil, fmt.Errorf("%w: EncodeAggregatorStateBlock on a %s block", qerr.ContractViolation, b.Kind())
	}
	tag := []byte(b.StateTag())
	if len(tag) > wireTagLen {
		return nil, fmt.Errorf("%w: state tag %q exceeds %d bytes", qerr.ContractViolation, b.StateTag(), wireTagLen)
	}
	payload := b.Raw()
	var flags byte
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd writer: %v", qerr.ContractViolation, err)
		}
		payload = enc.EncodeAll(payload, nil)
		enc.Close()
		flags = 1
	}

	out := make([]byte, 0, 1+1+len(tag)+4+4+len(payload))
	out = append(out, flags, byte(len(tag)))
	out = append(out, tag...)

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(b.PositionCount()))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(b.ItemSize()))
	out = append(out, hdr[:]...)
	out = append(out, payload...)
	return out, nil
}

// DecodeAggregatorStateBlock is the inverse of
// EncodeAggregatorStateBlock. expectedTag, if non-empty, must match
// the encoded tag or decoding fails with qerr.ModeMismatch -- this
// is the cross-node equivalent of Block.Get's size check.
func DecodeAggregatorStateBlock(buf []byte, expectedTag string) (*Block, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: truncated header", qerr.ContractViolation)
	}
	flags, tagLen := buf[0], int(buf[1])
	buf = buf[2:]
	if len(buf) < tagLen+8 {
		return nil, fmt.Errorf("%w: truncated header", qerr.ContractViolation)
	}
	tag := string(buf[:tagLen])
	buf = buf[tagLen:]
	if expectedTag != "" && tag != expectedTag {
		return nil, fmt.Errorf("%w: wire tag %q != expected %q", qerr.ModeMismatch, tag, expectedTag)
	}
	n := binary.LittleEndian.Uint32(buf[0:4])
	itemSize := binary.LittleEndian.Uint32(buf[4:8])
	payload := buf[8:]

	if flags&1 != 0 {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd reader: %v", qerr.ContractViolation, err)
		}
		defer dec.Close()
		payload, err = dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd decode: %v", qerr.ContractViolation, err)
		}
	}
	want := int(n) * int(itemSize)
	if len(payload) != want {
		return nil, fmt.Errorf("%w: payload is %d bytes, header wants %d", qerr.ContractViolation, len(payload), want)
	}
	state := make([]byte, len(payload))
	copy(state, payload)
	return &Block{
		kind:     KindAggState,
		n:        int(n),
		state:    state,
		itemSize: int(itemSize),
		stateTag: tag,
	}, nil
}
