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

// Package assigner decides, record by record, which split target each input
// row belongs to. Assignment is a sequential state machine: one shared
// seeded generator stream, consumed in strict call order, so a fixed seed
// and plan reproduce the exact same assignment sequence.
package assigner

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/cardinalhq/ttv/internal/splitplan"
)

// Common errors returned by the assigner.
var (
	// ErrOverflow is returned when a record arrives after every target has
	// absorbed its full allocation. Overflow is fatal: silently dropping
	// rows would leave an incomplete split undetected.
	ErrOverflow = errors.New("assigner: input has more rows than the split plan can absorb")

	// ErrOutOfOrder is returned when Assign is called with an index other
	// than the next expected one.
	ErrOutOfOrder = errors.New("assigner: records must be assigned in increasing index order")
)

// Assigner maps record indexes to target names. It is a single-owner
// sequential object; it must not be shared across goroutines.
type Assigner struct {
	mode    splitplan.Mode
	targets []splitplan.Target

	// remaining holds per-target remaining rows: configured counts in
	// counts mode, largest-remainder quotas in proportions mode with a
	// known total. Unused when the total is unknown.
	remaining    []uint64
	remainingSum uint64

	// weightSum normalizes static-proportion draws when the total is
	// unknown, so assignment is exhaustive even if proportions sum < 1.0.
	weightSum float64

	quotas bool
	rng    *rand.Rand
	next   uint64
}

// New builds an assigner for the plan, seeded with the given value. The
// same seed, plan and call sequence reproduce the same assignments.
func New(plan *splitplan.Plan, seed uint64) *Assigner {
	a := &Assigner{
		mode:    plan.Mode,
		targets: plan.Targets,
		rng:     rand.New(rand.NewChaCha8(chachaSeed(seed))),
	}

	switch plan.Mode {
	case splitplan.ModeCounts:
		a.remaining = make([]uint64, len(plan.Targets))
		for i, target := range plan.Targets {
			a.remaining[i] = target.Count
			a.remainingSum += target.Count
		}
	case splitplan.ModeProportions:
		if plan.TotalRows > 0 {
			a.quotas = true
			a.remaining = quotasFor(plan.Targets, plan.TotalRows)
			a.remainingSum = plan.TotalRows
		} else {
			a.weightSum = plan.ProportionSum()
		}
	}
	return a
}

// chachaSeed expands a 64-bit user seed into the low bytes of a 32-byte
// ChaCha8 seed, matching the generator's reproducibility contract.
func chachaSeed(seed uint64) [32]byte {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	return key
}

// quotasFor converts proportions into exact integer row quotas using the
// largest-remainder method: floor every share, then hand the leftover rows
// one at a time to the targets with the largest fractional remainders,
// ties broken by declaration order. The quotas always sum to totalRows.
func quotasFor(targets []splitplan.Target, totalRows uint64) []uint64 {
	var weightSum float64
	for _, target := range targets {
		weightSum += target.Proportion
	}

	quotas := make([]uint64, len(targets))
	remainders := make([]float64, len(targets))
	var allocated uint64
	for i, target := range targets {
		// Shares are normalized over the configured proportion sum, so an
		// under-summing plan still partitions every row.
		exact := target.Proportion / weightSum * float64(totalRows)
		quotas[i] = uint64(exact)
		remainders[i] = exact - float64(quotas[i])
		allocated += quotas[i]
	}

	order := make([]int, len(targets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return remainders[order[x]] > remainders[order[y]]
	})

	for i := 0; allocated < totalRows; i++ {
		quotas[order[i%len(order)]]++
		allocated++
	}
	return quotas
}

// Assign returns the target name for the record at index. Indexes are
// 0-based, header excluded, and must arrive in strictly increasing order.
func (a *Assigner) Assign(index uint64) (string, error) {
	if index != a.next {
		return "", fmt.Errorf("%w: got index %d, want %d", ErrOutOfOrder, index, a.next)
	}
	a.next++

	if a.mode == splitplan.ModeCounts {
		return a.assignSequential()
	}
	if a.quotas {
		return a.assignQuota()
	}
	return a.assignStatic(), nil
}

// assignSequential fills targets in declaration order: the first target
// receives its full count before the second begins. No randomness.
func (a *Assigner) assignSequential() (string, error) {
	for i := range a.remaining {
		if a.remaining[i] > 0 {
			a.remaining[i]--
			a.remainingSum--
			return a.targets[i].Name, nil
		}
	}
	return "", ErrOverflow
}

// assignQuota draws a target weighted by its remaining quota, so the whole
// stream is a seeded shuffle of labels that lands exactly on each quota.
func (a *Assigner) assignQuota() (string, error) {
	if a.remainingSum == 0 {
		return "", ErrOverflow
	}
	draw := a.rng.Uint64N(a.remainingSum)

	var cumulative uint64
	for i := range a.remaining {
		cumulative += a.remaining[i]
		if draw < cumulative {
			a.remaining[i]--
			a.remainingSum--
			return a.targets[i].Name, nil
		}
	}
	// Unreachable: draw < remainingSum == sum(remaining).
	return "", ErrOverflow
}

// assignStatic draws a target weighted by its configured proportion,
// independent of previous draws. Used when the total is unknown; realized
// proportions converge statistically rather than exactly.
func (a *Assigner) assignStatic() string {
	draw := a.rng.Float64() * a.weightSum

	var cumulative float64
	for i := range a.targets {
		cumulative += a.targets[i].Proportion
		if draw < cumulative {
			return a.targets[i].Name
		}
	}
	// Float rounding can push the draw a hair past the last boundary.
	return a.targets[len(a.targets)-1].Name
}

// Remaining reports how many more rows the plan can absorb, or false when
// the plan has no bound (proportions with an unknown total).
func (a *Assigner) Remaining() (uint64, bool) {
	if a.mode == splitplan.ModeProportions && !a.quotas {
		return 0, false
	}
	return a.remainingSum, true
}
