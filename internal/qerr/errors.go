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

// Package qerr defines the error kinds shared by the operator
// pipeline. Callers discriminate a kind with errors.Is; every
// error returned from the pipeline wraps exactly one of these
// sentinels with fmt.Errorf("...: %w", ...).
package qerr

import "errors"

var (
	// ContractViolation marks a call that breaks the
	// operator protocol: add_input while !needs_input,
	// a second finish(), a second slice(), or an
	// out-of-range block access.
	ContractViolation = errors.New("operator contract violation")

	// VariableSizeState marks an aggregator-state builder
	// that observed a serialized record whose length
	// differs from the first-observed size.
	VariableSizeState = errors.New("aggregator state has variable size")

	// ModeMismatch marks add_intermediate_input receiving a
	// block that is not an aggregator-state block, or
	// add_raw_input called on a partial-input aggregator.
	ModeMismatch = errors.New("aggregator mode mismatch")

	// ReaderIo marks an index-reader I/O failure observed
	// by the source operator.
	ReaderIo = errors.New("index reader i/o error")

	// Cancelled marks driver-observed cancellation.
	Cancelled = errors.New("pipeline cancelled")
)
