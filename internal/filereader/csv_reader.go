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
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// CSVReader frames records with CSV parsing rules, so rows with embedded
// newlines stay intact. Records are re-encoded with minimal RFC 4180
// quoting, which canonicalizes quoting but preserves field values exactly.
// The reader takes ownership of the closer.
type CSVReader struct {
	reader       *csv.Reader
	closer       io.Closer
	closed       bool
	totalRecords int64

	buf bytes.Buffer
	enc *csv.Writer
}

var _ Reader = (*CSVReader)(nil)

// NewCSVReader creates a CSVReader over the given stream.
func NewCSVReader(reader io.ReadCloser) *CSVReader {
	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1 // Allow variable number of fields

	r := &CSVReader{
		reader: csvReader,
		closer: reader,
	}
	r.enc = csv.NewWriter(&r.buf)
	return r
}

func (r *CSVReader) Next() ([]byte, error) {
	if r.closed {
		return nil, io.EOF
	}
	fields, err := r.reader.Read()
	if err == io.EOF {
		r.closed = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("CSV read error after record %d: %w", r.totalRecords, err)
	}

	r.buf.Reset()
	if err := r.enc.Write(fields); err != nil {
		return nil, fmt.Errorf("CSV encode error after record %d: %w", r.totalRecords, err)
	}
	r.enc.Flush()
	if err := r.enc.Error(); err != nil {
		return nil, fmt.Errorf("CSV encode error after record %d: %w", r.totalRecords, err)
	}
	r.totalRecords++
	return bytes.TrimSuffix(r.buf.Bytes(), []byte{'\n'}), nil
}

// Close closes the reader and the underlying stream.
func (r *CSVReader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	r.closed = true
	return err
}

// TotalRecordsReturned returns how many records Next has produced so far.
func (r *CSVReader) TotalRecordsReturned() int64 {
	return r.totalRecords
}
