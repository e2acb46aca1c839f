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

func TestScanGroupDocSlices(t *testing.T) {
	rdr := index.NewFakeReader(index.NewFakeLeaf(0, 100))
	g := NewScanGroup(rdr, index.MatchAllQuery{}, ScanConfig{})
	srcs, err := g.DocSlices(4)
	if err != nil {
		t.Fatalf("DocSlices: %v", err)
	}
	if len(srcs) != 4 {
		t.Fatalf("got %d sources, want 4", len(srcs))
	}
}

func TestScanGroupOneShot(t *testing.T) {
	rdr := index.NewFakeReader(index.NewFakeLeaf(0, 100))
	g := NewScanGroup(rdr, index.MatchAllQuery{}, ScanConfig{})
	if _, err := g.SegmentSlices(); err != nil {
		t.Fatalf("first slicing: %v", err)
	}
	_, err := g.DocSlices(2)
	if err == nil {
		t.Fatal("expected an error slicing an already-sliced ScanGroup")
	}
	if !errors.Is(err, qerr.ContractViolation) {
		t.Fatalf("expected qerr.ContractViolation, got %v", err)
	}
}

// TestScanGroupSourcesPartitionShard combines slicing with scanning:
// every Source produced from a ScanGroup's slices, run to
// completion and summed, must cover every document exactly once.
func TestScanGroupSourcesPartitionShard(t *testing.T) {
	rdr := index.NewFakeReader(index.NewFakeLeaf(0, 50), index.NewFakeLeaf(1, 73))
	g := NewScanGroup(rdr, index.MatchAllQuery{}, ScanConfig{})
	srcs, err := g.DocSlices(5)
	if err != nil {
		t.Fatalf("DocSlices: %v", err)
	}
	total := 0
	for _, src := range srcs {
		for {
			p, err := src.GetOutput()
			if err != nil {
				t.Fatalf("GetOutput: %v", err)
			}
			if p == nil {
				if src.IsFinished() {
					break
				}
				continue
			}
			total += p.PositionCount()
		}
	}
	if total != rdr.MaxDoc() {
		t.Fatalf("total rows scanned: got %d, want %d", total, rdr.MaxDoc())
	}
}
