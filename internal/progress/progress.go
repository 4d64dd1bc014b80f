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

// Package progress reports how far a split run has advanced. The reporter
// is driven synchronously from the record loop (the core stays
// single-threaded) and rate-limits its own log output.
package progress

import (
	"log/slog"
	"time"
)

// Reporter logs periodic progress lines for a run.
type Reporter struct {
	ll        *slog.Logger
	interval  time.Duration
	totalRows uint64

	started  time.Time
	lastLog  time.Time
	lastSeen uint64
	now      func() time.Time
}

// NewReporter creates a reporter that logs at most once per interval.
// totalRows of 0 means the total is unknown and percentages are omitted.
func NewReporter(logger *slog.Logger, interval time.Duration, totalRows uint64) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Reporter{
		ll:        logger.With("component", "progress"),
		interval:  interval,
		totalRows: totalRows,
		now:       time.Now,
	}
}

// Observe records that records rows have been processed so far. It is
// cheap when no log line is due.
func (r *Reporter) Observe(records uint64) {
	now := r.now()
	if r.started.IsZero() {
		r.started = now
		r.lastLog = now
	}
	r.lastSeen = records
	if now.Sub(r.lastLog) < r.interval {
		return
	}
	r.lastLog = now
	r.log("progress", records, now)
}

// Done emits the final progress line unconditionally.
func (r *Reporter) Done(records uint64) {
	now := r.now()
	if r.started.IsZero() {
		r.started = now
	}
	r.lastSeen = records
	r.log("finished", records, now)
}

func (r *Reporter) log(msg string, records uint64, now time.Time) {
	elapsed := now.Sub(r.started)
	args := []any{
		slog.Uint64("records", records),
		slog.Duration("elapsed", elapsed.Round(time.Millisecond)),
	}
	if seconds := elapsed.Seconds(); seconds > 0 {
		args = append(args, slog.Float64("rows_per_sec", float64(records)/seconds))
	}
	if r.totalRows > 0 {
		args = append(args,
			slog.Uint64("total", r.totalRows),
			slog.Float64("pct", 100*float64(records)/float64(r.totalRows)))
	}
	r.ll.Info(msg, args...)
}
