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

// HashAggregate is the pipeline-breaker Operator wrapping a
// GroupAssigner and one or more GroupingAggregator columns,
// keeping the by-value channel separate from the aggregated
// columns.
type HashAggregate struct {
	byChannel int
	assigner  *GroupAssigner
	aggs      []*GroupingAggregator
	state     breakerState
}

// NewHashAggregate builds a HashAggregate grouping by byChannel
// and computing cols per group.
func NewHashAggregate(byChannel int, cols []GroupAggConfig) *HashAggregate {
	aggs := make([]*GroupingAggregator, len(cols))
	for i, c := range cols {
		aggs[i] = NewGroupingAggregator(c)
	}
	return &HashAggregate{
		byChannel: byChannel,
		assigner:  NewGroupAssigner(),
		aggs:      aggs,
	}
}

func (h *HashAggregate) NeedsInput() bool { return h.state == breakerNeedsInput }

func (h *HashAggregate) AddInput(p *Page) error {
	if !h.NeedsInput() {
		return errContract("HashAggregate.AddInput: NeedsInput is false")
	}
	gids := h.assigner.Assign(p, h.byChannel)
	for _, agg := range h.aggs {
		if err := agg.ProcessPage(gids, p); err != nil {
			return err
		}
	}
	return nil
}

func (h *HashAggregate) Finish() error {
	if h.state != breakerNeedsInput {
		return errContract("HashAggregate.Finish: already finished")
	}
	h.state = breakerHasOutput
	return nil
}

func (h *HashAggregate) IsFinished() bool { return h.state == breakerFinished }

func (h *HashAggregate) GetOutput() (*Page, error) {
	if h.state != breakerHasOutput {
		return nil, nil
	}
	n := h.assigner.NumGroups()
	keys := make([]int64, n)
	for i := range keys {
		keys[i] = int64(i)
	}
	blocks := []*Block{NewLongBlock(keys)}
	for _, agg := range h.aggs {
		blocks = append(blocks, agg.Evaluate())
	}
	h.state = breakerFinished
	return NewPage(blocks)
}

func (h *HashAggregate) Close() error { return nil }
