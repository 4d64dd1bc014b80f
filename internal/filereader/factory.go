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
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

// StdinPath is the input argument meaning "read from standard input".
const StdinPath = "-"

// Options configures how input is opened and framed.
type Options struct {
	// CSV selects CSV framing instead of newline framing. Only needed when
	// rows contain embedded newlines.
	CSV bool

	// Decompress wraps the input in a gzip decoder.
	Decompress bool

	// MaxRecordSize caps the length of a single newline-framed record.
	// Values <= 0 select DefaultMaxRecordSize.
	MaxRecordSize int
}

// multiReadCloser wraps a reader and closes all closers in order when done.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var firstErr error
	for _, closer := range m.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// nopCloser shields stdin from being closed by a reader that owns its
// stream.
type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }

// Open opens path (or stdin when path is "-") and returns a record reader
// for it, applying gzip decompression and the requested framing.
func Open(path string, opts Options) (Reader, error) {
	var stream io.ReadCloser
	if path == StdinPath {
		stream = nopCloser{os.Stdin}
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", path, err)
		}
		stream = file
	}

	if opts.Decompress {
		gzReader, err := gzip.NewReader(stream)
		if err != nil {
			_ = stream.Close()
			return nil, fmt.Errorf("create gzip reader for %s: %w", path, err)
		}
		stream = &multiReadCloser{
			Reader:  gzReader,
			closers: []io.Closer{gzReader, stream},
		}
	}

	if opts.CSV {
		return NewCSVReader(stream), nil
	}
	return NewLineReader(stream, opts.MaxRecordSize), nil
}
