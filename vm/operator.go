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

// Package vm implements the push/pull operator pipeline: the
// typed columnar Block/Page data model, the Operator protocol, a
// Lucene-like Source operator with work-slicing, an aggregation
// subsystem (scalar and grouping), and a bounded Top-N operator.
package vm

import (
	"fmt"
	"log"

	"github.com/farooq-001/qxcore/internal/qerr"
)

// Operator is the protocol every pipeline stage implements.
//
// Source operators never accept input: NeedsInput always reports
// false and AddInput/Finish are contract violations. Pipeline
// breakers (aggregators, Top-N) accept input until Finish, then
// switch to producing output. Streaming operators accept and
// produce pages one-for-one or fewer.
type Operator interface {
	// NeedsInput reports whether the operator can accept
	// another page right now.
	NeedsInput() bool

	// AddInput hands a page to the operator. It is a
	// qerr.ContractViolation to call AddInput when
	// NeedsInput() is false.
	AddInput(p *Page) error

	// Finish signals that no further input will arrive. It is
	// a qerr.ContractViolation to call Finish twice.
	Finish() error

	// IsFinished reports whether the operator is fully
	// drained and will produce no further output.
	IsFinished() bool

	// GetOutput pulls zero or one output page. A nil page with
	// a nil error means "not ready yet, try again later" -- it
	// is not the same as IsFinished().
	GetOutput() (*Page, error)

	// Close releases any resources held by the operator. It is
	// invoked exactly once, even on cancellation.
	Close() error
}

// Driver runs a chain of operators to completion, pulling from the
// last operator (the sink) and feeding it from the ones before, one
// hop at a time: try to drain the sink, and if it has nothing ready,
// ask the previous operator for a page instead.
type Driver struct {
	ops    []Operator
	log    *log.Logger
	closed bool
}

// NewDriver constructs a Driver over ops, ordered source-first,
// sink-last.
func NewDriver(ops []Operator, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{ops: ops, log: logger}
}

// Run drives the pipeline to completion, calling emit for every
// page the sink produces. Run respects cancel: between polls of
// any operator it checks cancel and, if true, closes every
// operator exactly once and returns qerr.Cancelled.
func (d *Driver) Run(cancel func() bool, emit func(*Page) error) error {
	defer d.closeAll()
	sink := len(d.ops) - 1
	for {
		if cancel != nil && cancel() {
			return qerr.Cancelled
		}
		if d.ops[sink].IsFinished() {
			return nil
		}
		page, err := d.ops[sink].GetOutput()
		if err != nil {
			return err
		}
		if page != nil {
			if err := emit(page); err != nil {
				return err
			}
			continue
		}
		if !d.pump(sink, cancel) {
			// sink produced nothing and nothing upstream could
			// make progress; since no operator ever suspends
			// mid-call, this means the sink is simply not finished
			// yet but has no input pending -- try again (this only
			// loops forever for a buggy operator that never
			// transitions to Finished).
			continue
		}
	}
}

// pump tries to advance operator i by pulling a page from i-1 and
// feeding it in, recursing upstream as necessary. It returns true
// if it made any progress (fed a page or finished an upstream
// operator).
func (d *Driver) pump(i int, cancel func() bool) bool {
	if i == 0 {
		// the source: nothing upstream to pull from. If it's not
		// finished it will eventually produce output or finish on
		// its own via GetOutput's internal scan loop.
		return !d.ops[0].IsFinished()
	}
	if cancel != nil && cancel() {
		return false
	}
	prev := d.ops[i-1]
	if prev.IsFinished() {
		if d.ops[i].NeedsInput() {
			if err := d.ops[i].Finish(); err != nil {
				d.log.Printf("vm: finish: %v", err)
			}
		}
		return false
	}
	page, err := prev.GetOutput()
	if err != nil {
		d.log.Printf("vm: upstream error: %v", err)
		return false
	}
	if page == nil {
		return d.pump(i-1, cancel)
	}
	if !d.ops[i].NeedsInput() {
		// operator i is mid-output; nothing to do with this page
		// yet. This should not happen in a well-formed pipeline
		// (pipeline breakers only stop accepting input after
		// Finish), but guard against it anyway.
		return false
	}
	if err := d.ops[i].AddInput(page); err != nil {
		d.log.Printf("vm: add input: %v", err)
	}
	return true
}

func (d *Driver) closeAll() {
	if d.closed {
		return
	}
	d.closed = true
	for _, op := range d.ops {
		if err := op.Close(); err != nil {
			d.log.Printf("vm: close: %v", err)
		}
	}
}

// errContract formats a qerr.ContractViolation with context, the
// idiom used throughout this package for protocol-breaking calls.
func errContract(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{qerr.ContractViolation}, args...)...)
}
