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

// Package chunkwriter manages the per-target output files of a split run.
// Each target owns at most one open chunk at a time; chunks rotate when the
// configured row limit is reached, the captured header is re-emitted into
// every chunk, and output is optionally gzip-compressed on the fly.
package chunkwriter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Common errors returned by the writer.
var (
	ErrWriterClosed = errors.New("chunkwriter: writer is already closed")
)

// Config controls output naming, rotation and compression.
type Config struct {
	// Prefix is prepended to every chunk filename. It may include
	// directory components; missing directories are created.
	Prefix string

	// ChunkSize is the maximum number of data rows per chunk, or 0 for a
	// single unbounded chunk per target.
	ChunkSize uint64

	// Header, when non-nil, is written as the first record of every chunk.
	Header []byte

	// Compress wraps every chunk in a streaming gzip encoder and appends
	// ".gz" to the filename.
	Compress bool

	// GzipLevel is the compression level when Compress is set. The zero
	// value selects gzip.DefaultCompression.
	GzipLevel int

	// IndexWidth is the zero-pad width of the chunk index suffix. The zero
	// value selects 4, matching names like "train.0007".
	IndexWidth int
}

// Result describes one finished chunk file.
type Result struct {
	// Target is the split this chunk belongs to.
	Target string

	// FileName is the path of the created chunk file.
	FileName string

	// RecordCount is the number of data rows written, header excluded.
	RecordCount int64
}

// chunkState tracks the open chunk of a single target. A target with no
// open chunk has no state at all; the state machine is {absent,
// open(index, rows)} and rotation replaces the state wholesale.
type chunkState struct {
	target string
	index  int
	rows   uint64

	file *os.File
	buf  *bufio.Writer
	gz   *gzip.Writer
	out  io.Writer
}

// Writer owns the set of open chunk files for a split run.
type Writer struct {
	config Config
	states map[string]*chunkState
	order  []string
	result []Result
	closed bool
}

// NewWriter creates a writer. No files are opened until the first row for
// a target arrives.
func NewWriter(config Config) *Writer {
	if config.GzipLevel == 0 {
		config.GzipLevel = gzip.DefaultCompression
	}
	if config.IndexWidth <= 0 {
		config.IndexWidth = 4
	}
	return &Writer{
		config: config,
		states: make(map[string]*chunkState),
	}
}

// Write appends one record to the target's current chunk, opening or
// rotating the chunk first when needed. Any filesystem or compressor
// failure is fatal to the run and is returned unretried.
func (w *Writer) Write(target string, record []byte) error {
	if w.closed {
		return ErrWriterClosed
	}

	state, ok := w.states[target]
	if !ok {
		opened, err := w.openChunk(target, 0)
		if err != nil {
			return err
		}
		w.states[target] = opened
		w.order = append(w.order, target)
		state = opened
	} else if w.config.ChunkSize > 0 && state.rows >= w.config.ChunkSize {
		if err := w.closeChunk(state); err != nil {
			return err
		}
		opened, err := w.openChunk(target, state.index+1)
		if err != nil {
			return err
		}
		w.states[target] = opened
		state = opened
	}

	if err := state.writeRecord(record); err != nil {
		return fmt.Errorf("write row to %s: %w", state.file.Name(), err)
	}
	state.rows++
	return nil
}

// openChunk creates the chunk file for (target, index), wiring up the
// buffered writer and optional gzip encoder, and emits the header.
func (w *Writer) openChunk(target string, index int) (*chunkState, error) {
	name := w.chunkFileName(target, index)
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}

	file, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("open chunk %s: %w", name, err)
	}

	state := &chunkState{
		target: target,
		index:  index,
		file:   file,
		buf:    bufio.NewWriter(file),
	}
	if w.config.Compress {
		gz, err := gzip.NewWriterLevel(state.buf, w.config.GzipLevel)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("create gzip writer for %s: %w", name, err)
		}
		state.gz = gz
		state.out = gz
	} else {
		state.out = state.buf
	}

	if w.config.Header != nil {
		if err := state.writeRecord(w.config.Header); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("write header to %s: %w", name, err)
		}
	}
	return state, nil
}

// chunkFileName builds "{prefix}{target}{suffix}{ext}". The index suffix
// appears only when rotation is enabled; the extension tracks compression.
func (w *Writer) chunkFileName(target string, index int) string {
	suffix := ""
	if w.config.ChunkSize > 0 {
		suffix = fmt.Sprintf(".%0*d", w.config.IndexWidth, index)
	}
	ext := ".csv"
	if w.config.Compress {
		ext += ".gz"
	}
	return w.config.Prefix + target + suffix + ext
}

func (s *chunkState) writeRecord(record []byte) error {
	if _, err := s.out.Write(record); err != nil {
		return err
	}
	_, err := s.out.Write([]byte{'\n'})
	return err
}

// closeChunk flushes the gzip trailer and buffers before closing the file.
// Skipping any of these leaves a truncated chunk, so every step's error is
// surfaced.
func (w *Writer) closeChunk(state *chunkState) error {
	name := state.file.Name()
	if state.gz != nil {
		if err := state.gz.Close(); err != nil {
			_ = state.file.Close()
			return fmt.Errorf("finish gzip stream for %s: %w", name, err)
		}
	}
	if err := state.buf.Flush(); err != nil {
		_ = state.file.Close()
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := state.file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	w.result = append(w.result, Result{
		Target:      state.target,
		FileName:    name,
		RecordCount: int64(state.rows),
	})
	return nil
}

// Close finalizes every open chunk and returns metadata for all chunk
// files created over the writer's lifetime. The writer cannot be used
// afterwards.
func (w *Writer) Close() ([]Result, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	w.closed = true

	for _, target := range w.order {
		if err := w.closeChunk(w.states[target]); err != nil {
			return nil, err
		}
	}
	w.states = nil
	return w.result, nil
}

// Abort drops all open handles without flushing. Partially written chunks
// stay on disk and must be treated as invalid by downstream consumers.
// Safe to call multiple times.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	for _, state := range w.states {
		_ = state.file.Close()
	}
	w.states = nil
}
