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

// Command qxbench drives a small in-memory pipeline -- scan, a
// grouping or scalar count aggregate, an optional top-N -- end
// to end against a fake reader, and reports row counts and timing.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/farooq-001/qxcore/vm"
	"github.com/farooq-001/qxcore/vm/index"
)

func exitf(err error) {
	log.Print(err)
	_, _ = fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func main() {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	docs := flags.Int("docs", 1_000_000, "number of synthetic documents to scan")
	leaves := flags.Int("leaves", 8, "number of synthetic index segments")
	pageSize := flags.Int("page-size", 0, "source max page size (0 = default)")
	configPath := flags.String("config", "", "optional YAML PipelineConfig overriding -page-size")
	groupBy := flags.Bool("group", false, "group by doc id instead of a single global aggregate")
	if err := flags.Parse(os.Args[1:]); err != nil {
		exitf(err)
	}

	cfg := vm.PipelineConfig{Scan: vm.ScanConfig{MaxPageSize: *pageSize}}
	if *configPath != "" {
		doc, err := os.ReadFile(*configPath)
		if err != nil {
			exitf(fmt.Errorf("reading config: %w", err))
		}
		cfg, err = vm.ParsePipelineConfig(doc)
		if err != nil {
			exitf(fmt.Errorf("parsing config: %w", err))
		}
	}

	rdr := syntheticReader(*leaves, *docs)

	start := time.Now()
	rows, outRows, err := run(rdr, cfg, *groupBy)
	if err != nil {
		exitf(err)
	}
	elapsed := time.Since(start)

	fmt.Printf("scanned %d rows, emitted %d output rows, in %s\n", rows, outRows, elapsed)
}

// syntheticReader builds an in-memory FakeReader of n leaves
// totaling docs documents, roughly evenly split.
func syntheticReader(n, docs int) *index.FakeReader {
	if n < 1 {
		n = 1
	}
	var leaves []*index.FakeLeaf
	base := docs / n
	extra := docs % n
	for i := 0; i < n; i++ {
		sz := base
		if i == 0 {
			sz += extra
		}
		leaves = append(leaves, index.NewFakeLeaf(i, sz))
	}
	return index.NewFakeReader(leaves...)
}

// run scans rdr to completion through either a grouping or scalar
// Count aggregate (and, if cfg.TopN is set, a following Top-N
// stage), returning the number of rows scanned and the number of
// rows the final stage emitted.
func run(rdr index.Reader, cfg vm.PipelineConfig, groupBy bool) (scanned, emitted int, err error) {
	group := vm.NewScanGroup(rdr, index.MatchAllQuery{}, cfg.Scan)
	srcs, err := group.SegmentSlices()
	if err != nil {
		return 0, 0, fmt.Errorf("slicing shard: %w", err)
	}

	var rows []*vm.Page
	for _, src := range srcs {
		for {
			p, err := src.GetOutput()
			if err != nil {
				return 0, 0, fmt.Errorf("scanning: %w", err)
			}
			if p == nil {
				if src.IsFinished() {
					break
				}
				continue
			}
			scanned += p.PositionCount()
			rows = append(rows, p)
		}
	}

	var sink vm.Operator
	if groupBy {
		h := vm.NewHashAggregate(0, []vm.GroupAggConfig{{Op: vm.OpCount, Channel: 0, Mode: vm.ModeSingle}})
		sink = h
	} else {
		sink = vm.NewAggregate([]vm.ScalarAggConfig{{Op: vm.OpCount, Channel: 0, Mode: vm.ModeSingle}})
	}
	for _, p := range rows {
		if err := sink.AddInput(p); err != nil {
			return scanned, 0, fmt.Errorf("aggregating: %w", err)
		}
	}
	if err := sink.Finish(); err != nil {
		return scanned, 0, fmt.Errorf("finishing aggregate: %w", err)
	}
	out, err := sink.GetOutput()
	if err != nil {
		return scanned, 0, fmt.Errorf("draining aggregate: %w", err)
	}
	if out == nil {
		return scanned, 0, nil
	}

	if cfg.TopN == nil {
		return scanned, out.PositionCount(), nil
	}
	top := vm.NewTopN(*cfg.TopN)
	if err := top.AddInput(out); err != nil {
		return scanned, 0, fmt.Errorf("top-n input: %w", err)
	}
	if err := top.Finish(); err != nil {
		return scanned, 0, fmt.Errorf("top-n finish: %w", err)
	}
	n := 0
	for {
		p, err := top.GetOutput()
		if err != nil {
			return scanned, 0, fmt.Errorf("top-n output: %w", err)
		}
		if p == nil {
			if top.IsFinished() {
				break
			}
			continue
		}
		n += p.PositionCount()
	}
	return scanned, n, nil
}
