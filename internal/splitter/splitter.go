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

// Package splitter drives a split run end to end: capture the header,
// assign each record to a target, hand it to the chunk writer, and
// finalize every output file. One pass, one goroutine, no buffering of
// the dataset.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cardinalhq/ttv/internal/assigner"
	"github.com/cardinalhq/ttv/internal/chunkwriter"
	"github.com/cardinalhq/ttv/internal/filereader"
	"github.com/cardinalhq/ttv/internal/logctx"
)

// ErrEmptyInput is returned when a header is expected but the input has no
// records at all.
var ErrEmptyInput = errors.New("splitter: input is empty")

// Config wires the collaborators of one run. Source and Assigner are
// injected so tests can drive the pipeline with fixed seeds and in-memory
// streams.
type Config struct {
	// Source produces the input records.
	Source filereader.Reader

	// Assigner decides the target of every record.
	Assigner *assigner.Assigner

	// Output configures the chunk writer. Its Header field is overwritten
	// with the captured header when HasHeader is set.
	Output chunkwriter.Config

	// HasHeader captures the first record and re-emits it into every
	// chunk.
	HasHeader bool

	// OnRecord, when non-nil, is invoked after each record with the number
	// of records processed so far. Used for progress reporting.
	OnRecord func(records uint64)
}

// Summary describes a completed run.
type Summary struct {
	// Records is the number of data records processed, header excluded.
	Records uint64

	// Files lists every chunk file written.
	Files []chunkwriter.Result
}

// Run executes one split pass. On any failure the chunk writer is aborted:
// already-written files stay on disk but are not guaranteed complete.
func Run(ctx context.Context, cfg Config) (*Summary, error) {
	ll := logctx.FromContext(ctx)

	if cfg.HasHeader {
		header, err := cfg.Source.Next()
		if err == io.EOF {
			return nil, ErrEmptyInput
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		// The source reuses its record buffer, so the header must be
		// copied before the next read.
		cfg.Output.Header = append([]byte(nil), header...)
		ll.Debug("captured header", "bytes", len(cfg.Output.Header))
	}

	writer := chunkwriter.NewWriter(cfg.Output)

	var records uint64
	for {
		if err := ctx.Err(); err != nil {
			writer.Abort()
			return nil, err
		}

		record, err := cfg.Source.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			writer.Abort()
			return nil, fmt.Errorf("read record %d: %w", records, err)
		}

		target, err := cfg.Assigner.Assign(records)
		if err != nil {
			writer.Abort()
			return nil, err
		}

		if err := writer.Write(target, record); err != nil {
			writer.Abort()
			return nil, err
		}

		records++
		if cfg.OnRecord != nil {
			cfg.OnRecord(records)
		}
	}

	files, err := writer.Close()
	if err != nil {
		return nil, err
	}
	ll.Debug("split pass complete", "records", records, "files", len(files))

	return &Summary{Records: records, Files: files}, nil
}
