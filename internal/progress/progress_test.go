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

package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReporter(interval time.Duration, totalRows uint64) (*Reporter, *bytes.Buffer, *time.Time) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewReporter(logger, interval, totalRows)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, &buf, &now
}

func TestObserveRateLimits(t *testing.T) {
	r, buf, now := testReporter(time.Second, 0)

	r.Observe(1)
	assert.Empty(t, buf.String(), "first observation starts the clock, no log yet")

	*now = now.Add(500 * time.Millisecond)
	r.Observe(2)
	assert.Empty(t, buf.String())

	*now = now.Add(600 * time.Millisecond)
	r.Observe(3)
	output := buf.String()
	require.NotEmpty(t, output)
	assert.Contains(t, output, "records=3")
	assert.Equal(t, 1, strings.Count(output, "msg=progress"))
}

func TestObserveWithTotalIncludesPercent(t *testing.T) {
	r, buf, now := testReporter(time.Second, 200)

	r.Observe(1)
	*now = now.Add(2 * time.Second)
	r.Observe(100)

	output := buf.String()
	assert.Contains(t, output, "total=200")
	assert.Contains(t, output, "pct=50")
}

func TestDoneAlwaysLogs(t *testing.T) {
	r, buf, _ := testReporter(time.Hour, 0)

	r.Observe(5)
	r.Done(10)

	output := buf.String()
	assert.Contains(t, output, "msg=finished")
	assert.Contains(t, output, "records=10")
}

func TestDefaultsApplied(t *testing.T) {
	r := NewReporter(nil, 0, 0)
	assert.Equal(t, time.Second, r.interval)
	require.NotNil(t, r.ll)
}
