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
	"errors"
	"testing"

	"github.com/farooq-001/qxcore/internal/qerr"
	"github.com/farooq-001/qxcore/vm/index"
)

func TestDriverScanIntoAggregate(t *testing.T) {
	rdr := index.NewFakeReader(index.NewFakeLeaf(0, 1000))
	src := NewSource(rdr, index.MatchAllQuery{}, wholeShardSlice(rdr), ScanConfig{MaxPageSize: 300})
	agg := NewAggregate([]ScalarAggConfig{{Op: OpCount, Channel: 0, Mode: ModeSingle}})

	d := NewDriver([]Operator{src, agg}, nil)
	var pages []*Page
	if err := d.Run(nil, func(p *Page) error {
		pages = append(pages, p)
		return nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected exactly one output page from the aggregate sink, got %d", len(pages))
	}
	if got := pages[0].GetBlock(0).GetLong(0); got != 1000 {
		t.Fatalf("count: got %d, want 1000", got)
	}
}

func TestDriverCancellation(t *testing.T) {
	rdr := index.NewFakeReader(index.NewFakeLeaf(0, 1_000_000))
	src := NewSource(rdr, index.MatchAllQuery{}, wholeShardSlice(rdr), ScanConfig{MaxPageSize: 64})
	agg := NewAggregate([]ScalarAggConfig{{Op: OpCount, Channel: 0, Mode: ModeSingle}})

	d := NewDriver([]Operator{src, agg}, nil)
	calls := 0
	err := d.Run(func() bool {
		calls++
		return calls > 2
	}, func(p *Page) error { return nil })
	if !errors.Is(err, qerr.Cancelled) {
		t.Fatalf("expected qerr.Cancelled, got %v", err)
	}
}

func TestOperatorErrContractFormatsWrappedError(t *testing.T) {
	err := errContract("bad thing: %d", 3)
	if !errors.Is(err, qerr.ContractViolation) {
		t.Fatalf("expected errContract to wrap qerr.ContractViolation, got %v", err)
	}
}
