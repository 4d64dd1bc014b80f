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

package filereader

import (
	"bufio"
	"fmt"
	"io"
)

// DefaultMaxRecordSize bounds how long a single input record may be before
// the run fails rather than buffering without limit.
const DefaultMaxRecordSize = 16 * 1024 * 1024

// LineReader reads newline-delimited records. It takes ownership of the
// closer and will close it when Close is called.
type LineReader struct {
	scanner      *bufio.Scanner
	closer       io.Closer
	closed       bool
	totalRecords int64
}

var _ Reader = (*LineReader)(nil)

// NewLineReader creates a LineReader over the given stream. maxRecordSize
// caps the length of a single record; values <= 0 select
// DefaultMaxRecordSize.
func NewLineReader(reader io.ReadCloser, maxRecordSize int) *LineReader {
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}
	initial := 64 * 1024
	if maxRecordSize < initial {
		initial = maxRecordSize
	}
	// The scanner's limit is the larger of the max and the initial buffer
	// capacity, so the initial buffer must never exceed the cap.
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, initial), maxRecordSize)

	return &LineReader{
		scanner: scanner,
		closer:  reader,
	}
}

func (r *LineReader) Next() ([]byte, error) {
	if r.closed {
		return nil, io.EOF
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("scanner error after record %d: %w", r.totalRecords, err)
		}
		r.closed = true
		return nil, io.EOF
	}
	r.totalRecords++
	return r.scanner.Bytes(), nil
}

// Close closes the reader and the underlying stream.
func (r *LineReader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	r.closed = true
	return err
}

// TotalRecordsReturned returns how many records Next has produced so far.
func (r *LineReader) TotalRecordsReturned() int64 {
	return r.totalRecords
}
