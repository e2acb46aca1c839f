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
	"github.com/farooq-001/qxcore/vm/index"
)

// ScanGroup binds a reader and query to a shard and carves it into
// independent Sources, one per parallel pipeline: parallelism is
// achieved by creating multiple independent pipelines, each bound to
// a disjoint document slice. Slicing a ScanGroup is a one-shot
// partition: a second call to DocSlices or SegmentSlices fails with
// qerr.ContractViolation.
type ScanGroup struct {
	rdr    index.Reader
	query  index.Query
	cfg    ScanConfig
	sliced bool
}

// NewScanGroup constructs a ScanGroup over rdr, matching query.
func NewScanGroup(rdr index.Reader, query index.Query, cfg ScanConfig) *ScanGroup {
	return &ScanGroup{rdr: rdr, query: query, cfg: cfg}
}

// DocSlices partitions the shard into n Sources via DocSlice.
func (g *ScanGroup) DocSlices(n int) ([]*Source, error) {
	if err := g.claim(); err != nil {
		return nil, err
	}
	return g.sources(DocSlice(g.rdr, n)), nil
}

// SegmentSlices partitions the shard into Sources via SegmentSlice.
func (g *ScanGroup) SegmentSlices() ([]*Source, error) {
	if err := g.claim(); err != nil {
		return nil, err
	}
	return g.sources(SegmentSlice(g.rdr)), nil
}

func (g *ScanGroup) claim() error {
	if g.sliced {
		return errContract("ScanGroup: already sliced")
	}
	g.sliced = true
	return nil
}

func (g *ScanGroup) sources(slices []Slice) []*Source {
	out := make([]*Source, len(slices))
	for i, sl := range slices {
		out[i] = NewSource(g.rdr, g.query, sl, g.cfg)
	}
	return out
}
