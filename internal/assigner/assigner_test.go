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

package assigner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/ttv/internal/splitplan"
)

func mustPlan(t *testing.T, mode splitplan.Mode, targets []splitplan.Target, totalRows uint64) *splitplan.Plan {
	t.Helper()
	plan, err := splitplan.New(mode, targets, totalRows)
	require.NoError(t, err)
	return plan
}

func TestCountsModeSequentialFill(t *testing.T) {
	plan := mustPlan(t, splitplan.ModeCounts, []splitplan.Target{
		{Name: "train", Count: 7},
		{Name: "test", Count: 3},
	}, 0)
	a := New(plan, 42)

	var got []string
	for i := uint64(0); i < 10; i++ {
		target, err := a.Assign(i)
		require.NoError(t, err)
		got = append(got, target)
	}

	want := []string{
		"train", "train", "train", "train", "train", "train", "train",
		"test", "test", "test",
	}
	assert.Equal(t, want, got)

	remaining, bounded := a.Remaining()
	assert.True(t, bounded)
	assert.Equal(t, uint64(0), remaining)
}

func TestCountsModeOverflowIsFatal(t *testing.T) {
	plan := mustPlan(t, splitplan.ModeCounts, []splitplan.Target{
		{Name: "train", Count: 2},
	}, 0)
	a := New(plan, 0)

	for i := uint64(0); i < 2; i++ {
		_, err := a.Assign(i)
		require.NoError(t, err)
	}
	_, err := a.Assign(2)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestCountsModeSkipsZeroCountTargets(t *testing.T) {
	plan := mustPlan(t, splitplan.ModeCounts, []splitplan.Target{
		{Name: "empty", Count: 0},
		{Name: "all", Count: 3},
	}, 0)
	a := New(plan, 0)

	for i := uint64(0); i < 3; i++ {
		target, err := a.Assign(i)
		require.NoError(t, err)
		assert.Equal(t, "all", target)
	}
}

func TestOutOfOrderAssignment(t *testing.T) {
	plan := mustPlan(t, splitplan.ModeCounts, []splitplan.Target{
		{Name: "train", Count: 10},
	}, 0)
	a := New(plan, 0)

	_, err := a.Assign(1)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	_, err = a.Assign(0)
	require.NoError(t, err)
	_, err = a.Assign(0)
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestQuotaAssignmentExactCounts(t *testing.T) {
	const total = 1000
	plan := mustPlan(t, splitplan.ModeProportions, []splitplan.Target{
		{Name: "train", Proportion: 0.7},
		{Name: "test", Proportion: 0.2},
		{Name: "validate", Proportion: 0.1},
	}, total)
	a := New(plan, 12345)

	counts := make(map[string]uint64)
	for i := uint64(0); i < total; i++ {
		target, err := a.Assign(i)
		require.NoError(t, err)
		counts[target]++
	}

	assert.Equal(t, uint64(700), counts["train"])
	assert.Equal(t, uint64(200), counts["test"])
	assert.Equal(t, uint64(100), counts["validate"])

	_, err := a.Assign(total)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestQuotaAssignmentIsShuffled(t *testing.T) {
	const total = 100
	plan := mustPlan(t, splitplan.ModeProportions, []splitplan.Target{
		{Name: "a", Proportion: 0.5},
		{Name: "b", Proportion: 0.5},
	}, total)
	a := New(plan, 7)

	var sequence []string
	for i := uint64(0); i < total; i++ {
		target, err := a.Assign(i)
		require.NoError(t, err)
		sequence = append(sequence, target)
	}

	// A weighted shuffle must not degenerate into a sequential fill.
	assert.NotEqual(t, sequence[:50], sequence[50:])
}

func TestLargestRemainderQuotas(t *testing.T) {
	tests := []struct {
		name      string
		targets   []splitplan.Target
		totalRows uint64
		want      []uint64
	}{
		{
			name: "exact thirds",
			targets: []splitplan.Target{
				{Name: "a", Proportion: 1.0 / 3.0},
				{Name: "b", Proportion: 1.0 / 3.0},
				{Name: "c", Proportion: 1.0 / 3.0},
			},
			totalRows: 10,
			// floors are 3,3,3; the leftover row goes to the largest
			// remainder, ties broken by declaration order.
			want: []uint64{4, 3, 3},
		},
		{
			name: "mixed remainders",
			targets: []splitplan.Target{
				{Name: "a", Proportion: 0.55},
				{Name: "b", Proportion: 0.45},
			},
			totalRows: 9,
			// exact shares 4.95 and 4.05; the leftover goes to a.
			want: []uint64{5, 4},
		},
		{
			name: "under-summing plan is normalized",
			targets: []splitplan.Target{
				{Name: "a", Proportion: 0.25},
				{Name: "b", Proportion: 0.25},
			},
			totalRows: 100,
			want:      []uint64{50, 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := quotasFor(tt.targets, tt.totalRows)
			assert.Equal(t, tt.want, got)

			var sum uint64
			for _, quota := range got {
				sum += quota
			}
			assert.Equal(t, tt.totalRows, sum)
		})
	}
}

func TestStaticAssignmentUnknownTotal(t *testing.T) {
	const total = 10000
	plan := mustPlan(t, splitplan.ModeProportions, []splitplan.Target{
		{Name: "a", Proportion: 0.5},
		{Name: "b", Proportion: 0.5},
	}, 0)
	a := New(plan, 99)

	counts := make(map[string]uint64)
	for i := uint64(0); i < total; i++ {
		target, err := a.Assign(i)
		require.NoError(t, err)
		counts[target]++
	}

	assert.Equal(t, uint64(total), counts["a"]+counts["b"])
	assert.NotZero(t, counts["a"])
	assert.NotZero(t, counts["b"])
	// Realized proportions converge statistically.
	assert.InDelta(t, float64(total)/2, float64(counts["a"]), float64(total)/10)

	_, bounded := a.Remaining()
	assert.False(t, bounded)
}

func TestStaticAssignmentNormalizesUnderSummingPlan(t *testing.T) {
	plan := mustPlan(t, splitplan.ModeProportions, []splitplan.Target{
		{Name: "a", Proportion: 0.3},
		{Name: "b", Proportion: 0.1},
	}, 0)
	a := New(plan, 3)

	counts := make(map[string]uint64)
	for i := uint64(0); i < 1000; i++ {
		target, err := a.Assign(i)
		require.NoError(t, err)
		counts[target]++
	}

	// Every row gets a target even though proportions sum to 0.4.
	assert.Equal(t, uint64(1000), counts["a"]+counts["b"])
	assert.InDelta(t, 750, float64(counts["a"]), 100)
}

func TestDeterminismAcrossRuns(t *testing.T) {
	build := func() *Assigner {
		plan := mustPlan(t, splitplan.ModeProportions, []splitplan.Target{
			{Name: "train", Proportion: 0.8},
			{Name: "test", Proportion: 0.2},
		}, 500)
		return New(plan, 31337)
	}

	first := build()
	second := build()
	for i := uint64(0); i < 500; i++ {
		a, err := first.Assign(i)
		require.NoError(t, err)
		b, err := second.Assign(i)
		require.NoError(t, err)
		require.Equal(t, a, b, "assignment diverged at index %d", i)
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	build := func(seed uint64) []string {
		plan := mustPlan(t, splitplan.ModeProportions, []splitplan.Target{
			{Name: "a", Proportion: 0.5},
			{Name: "b", Proportion: 0.5},
		}, 200)
		a := New(plan, seed)
		out := make([]string, 0, 200)
		for i := uint64(0); i < 200; i++ {
			target, err := a.Assign(i)
			require.NoError(t, err)
			out = append(out, target)
		}
		return out
	}

	assert.NotEqual(t, build(1), build(2))
}
