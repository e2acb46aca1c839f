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

// Page is an ordered tuple of blocks that all share the same
// position count. Pages only exist in flight between two
// operators; they carry no identity of their own beyond their
// blocks and row count.
type Page struct {
	n      int
	blocks []*Block
}

// NewPage builds a Page from blocks, which must all report the
// same PositionCount. An empty blocks slice is legal and produces
// a zero-row page.
func NewPage(blocks []*Block) (*Page, error) {
	n := 0
	if len(blocks) > 0 {
		n = blocks[0].PositionCount()
	}
	for i, b := range blocks {
		if b.PositionCount() != n {
			return nil, fmt.Errorf("%w: block %d has %d positions, page has %d", qerr.ContractViolation, i, b.PositionCount(), n)
		}
	}
	return &Page{n: n, blocks: blocks}, nil
}

// PositionCount returns the page's row count.
func (p *Page) PositionCount() int { return p.n }

// GetBlock returns the block at channel, or panics if channel is
// out of range.
func (p *Page) GetBlock(channel int) *Block {
	if channel < 0 || channel >= len(p.blocks) {
		panic(fmt.Errorf("%w: channel %d out of range [0,%d)", qerr.ContractViolation, channel, len(p.blocks)))
	}
	return p.blocks[channel]
}

// Channels returns the number of blocks in the page.
func (p *Page) Channels() int { return len(p.blocks) }

// Row extracts position i from every block, returning a new
// length-1 page. It is a qerr.ContractViolation to call Row with
// an out-of-range i.
func (p *Page) Row(i int) *Page {
	if i < 0 || i >= p.n {
		panic(fmt.Errorf("%w: row %d out of range [0,%d)", qerr.ContractViolation, i, p.n))
	}
	rows := make([]*Block, len(p.blocks))
	for c, b := range p.blocks {
		rows[c] = b.row(i)
	}
	return &Page{n: 1, blocks: rows}
}
