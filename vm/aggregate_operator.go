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

type breakerState uint8

const (
	breakerNeedsInput breakerState = iota
	breakerHasOutput
	breakerFinished
)

// Aggregate is the pipeline-breaker Operator wrapping one or more
// ScalarAggregator columns: it accepts input until Finish, then
// transitions to producing output. It is single-group: all rows
// collapse into one output row.
type Aggregate struct {
	aggs  []*ScalarAggregator
	state breakerState
}

// NewAggregate builds an Aggregate operator over cols, each
// evaluated independently against every input page.
func NewAggregate(cols []ScalarAggConfig) *Aggregate {
	aggs := make([]*ScalarAggregator, len(cols))
	for i, c := range cols {
		aggs[i] = NewScalarAggregator(c)
	}
	return &Aggregate{aggs: aggs}
}

func (a *Aggregate) NeedsInput() bool { return a.state == breakerNeedsInput }

func (a *Aggregate) AddInput(p *Page) error {
	if !a.NeedsInput() {
		return errContract("Aggregate.AddInput: NeedsInput is false")
	}
	for _, agg := range a.aggs {
		var err error
		if agg.cfg.Mode.IsInputPartial() {
			err = agg.AddIntermediateInput(p.GetBlock(agg.cfg.Channel))
		} else {
			err = agg.AddRawInput(p)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregate) Finish() error {
	if a.state != breakerNeedsInput {
		return errContract("Aggregate.Finish: already finished")
	}
	a.state = breakerHasOutput
	return nil
}

func (a *Aggregate) IsFinished() bool { return a.state == breakerFinished }

func (a *Aggregate) GetOutput() (*Page, error) {
	if a.state != breakerHasOutput {
		return nil, nil
	}
	blocks := make([]*Block, len(a.aggs))
	for i, agg := range a.aggs {
		if agg.cfg.Mode.IsOutputPartial() {
			blocks[i] = agg.EvaluateIntermediate()
		} else {
			blocks[i] = agg.EvaluateFinal()
		}
	}
	a.state = breakerFinished
	p, err := NewPage(blocks)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (a *Aggregate) Close() error { return nil }
