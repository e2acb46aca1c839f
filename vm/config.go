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

	"golang.org/x/sys/cpu"
	"sigs.k8s.io/yaml"

	"github.com/farooq-001/qxcore/internal/qerr"
)

// hasAVX2 is read, never branched on for correctness: it only
// widens the batch step foldLongExtreme uses per
// iteration, as a scheduling hint for the underlying loop. Either
// value produces an identical result.
var hasAVX2 = cpu.X86.HasAVX2

// avxBatch returns the per-iteration batch width the scalar fold
// loops should assume is cheap, purely a hint derived from hasAVX2.
func avxBatch() int {
	if hasAVX2 {
		return 8
	}
	return 1
}

// PipelineConfig is the operator factory surface: a single document
// describing one scan/aggregate/top-N pipeline, round-tripped
// through YAML (JSON-tagged struct decoded via sigs.k8s.io/yaml,
// which itself converts YAML to JSON before calling into
// encoding/json).
type PipelineConfig struct {
	Scan          ScanConfig        `json:"scan"`
	ScalarAggs    []ScalarAggConfig `json:"scalarAggregates,omitempty"`
	GroupByChan   *int              `json:"groupByChannel,omitempty"`
	GroupingAggs  []GroupAggConfig  `json:"groupingAggregates,omitempty"`
	TopN          *TopNConfig       `json:"topN,omitempty"`
}

// MarshalYAML renders cfg as a YAML document.
func (cfg PipelineConfig) MarshalYAML() ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal pipeline config: %v", qerr.ContractViolation, err)
	}
	return out, nil
}

// ParsePipelineConfig decodes a YAML pipeline configuration document.
func ParsePipelineConfig(doc []byte) (PipelineConfig, error) {
	var cfg PipelineConfig
	if err := yaml.Unmarshal(doc, &cfg); err != nil {
		return PipelineConfig{}, fmt.Errorf("%w: parse pipeline config: %v", qerr.ContractViolation, err)
	}
	return cfg, nil
}
