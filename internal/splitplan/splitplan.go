// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package splitplan parses and validates split specifications such as
// "train=0.8" or "test=1000" into a normalized plan that the assigner
// can execute.
package splitplan

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how target sizes are interpreted.
type Mode int

const (
	// ModeCounts allocates an absolute number of rows per target.
	ModeCounts Mode = iota
	// ModeProportions allocates a fractional share of rows per target.
	ModeProportions
)

func (m Mode) String() string {
	switch m {
	case ModeCounts:
		return "counts"
	case ModeProportions:
		return "proportions"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// proportionEpsilon absorbs float rounding when checking that proportions
// do not sum past 1.0.
const proportionEpsilon = 1e-9

// Target is a single named output partition.
type Target struct {
	// Name is the unique target identifier, also used in output filenames.
	Name string

	// Count is the absolute row allocation. Meaningful only in ModeCounts.
	Count uint64

	// Proportion is the fractional share in (0.0, 1.0]. Meaningful only in
	// ModeProportions.
	Proportion float64
}

// Plan is a validated split specification. Plans are homogeneous: every
// target uses counts, or every target uses proportions.
type Plan struct {
	Mode    Mode
	Targets []Target

	// TotalRows is the caller-supplied total row count, or 0 when unknown.
	TotalRows uint64
}

// ValidationError describes a malformed or contradictory split
// specification. It is always surfaced before any I/O begins.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return "invalid split plan: " + e.msg
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ParseTarget parses a single "name=value" spec in the given mode.
func ParseTarget(spec string, mode Mode) (Target, error) {
	name, value, ok := strings.Cut(spec, "=")
	if !ok || name == "" || value == "" {
		return Target{}, validationErrorf("malformed split spec %q, want name=value", spec)
	}

	switch mode {
	case ModeCounts:
		count, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return Target{}, validationErrorf("split %q: row count %q is not a non-negative integer", name, value)
		}
		return Target{Name: name, Count: count}, nil
	case ModeProportions:
		proportion, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Target{}, validationErrorf("split %q: proportion %q is not a number", name, value)
		}
		if proportion <= 0.0 || proportion > 1.0 {
			return Target{}, validationErrorf("split %q: proportion %v is outside (0.0, 1.0]", name, proportion)
		}
		return Target{Name: name, Proportion: proportion}, nil
	default:
		return Target{}, validationErrorf("unknown mode %v", mode)
	}
}

// ParseTargets parses a list of "name=value" specs in the given mode.
func ParseTargets(specs []string, mode Mode) ([]Target, error) {
	targets := make([]Target, 0, len(specs))
	for _, spec := range specs {
		target, err := ParseTarget(spec, mode)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// New validates the targets and returns a plan. totalRows is the known
// input row count, or 0 when the total is unknown.
//
// Counts mode without a known total is legal: each target stops once its
// count is reached, and input remaining after every count is exhausted is
// an overflow error at assignment time, never a silent drop.
func New(mode Mode, targets []Target, totalRows uint64) (*Plan, error) {
	if len(targets) == 0 {
		return nil, validationErrorf("at least one split target is required")
	}

	seen := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		if target.Name == "" {
			return nil, validationErrorf("split names cannot be empty")
		}
		if _, dup := seen[target.Name]; dup {
			return nil, validationErrorf("duplicate split name %q", target.Name)
		}
		seen[target.Name] = struct{}{}

		switch mode {
		case ModeCounts:
			if target.Proportion != 0 {
				return nil, validationErrorf("split %q: proportion given in counts mode", target.Name)
			}
		case ModeProportions:
			if target.Count != 0 {
				return nil, validationErrorf("split %q: row count given in proportions mode", target.Name)
			}
			if target.Proportion <= 0.0 || target.Proportion > 1.0 {
				return nil, validationErrorf("split %q: proportion %v is outside (0.0, 1.0]", target.Name, target.Proportion)
			}
		default:
			return nil, validationErrorf("unknown mode %v", mode)
		}
	}

	switch mode {
	case ModeCounts:
		var sum uint64
		for _, target := range targets {
			sum += target.Count
		}
		if totalRows > 0 && sum > totalRows {
			return nil, validationErrorf("split counts sum to %d but input has only %d rows", sum, totalRows)
		}
	case ModeProportions:
		var sum float64
		for _, target := range targets {
			sum += target.Proportion
		}
		if sum > 1.0+proportionEpsilon {
			return nil, validationErrorf("split proportions sum to %v, must not exceed 1.0", sum)
		}
	}

	plan := &Plan{
		Mode:      mode,
		Targets:   append([]Target(nil), targets...),
		TotalRows: totalRows,
	}
	return plan, nil
}

// CountsTotal returns the sum of all target counts. Only meaningful in
// ModeCounts.
func (p *Plan) CountsTotal() uint64 {
	var sum uint64
	for _, target := range p.Targets {
		sum += target.Count
	}
	return sum
}

// ProportionSum returns the sum of all target proportions. Only meaningful
// in ModeProportions.
func (p *Plan) ProportionSum() float64 {
	var sum float64
	for _, target := range p.Targets {
		sum += target.Proportion
	}
	return sum
}
