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

// Package filereader produces the lazy record stream a split run consumes.
// Records are opaque byte sequences framed either by newlines or by CSV
// rules; input may be gzip-compressed or arrive on stdin.
package filereader

// Reader is the core interface for reading records from a delimited input.
type Reader interface {
	// Next returns the next record, without its trailing newline.
	// Returns io.EOF when there are no more records.
	// The returned slice is only valid until the next call to Next.
	Next() ([]byte, error)

	// Close releases any resources held by the reader.
	Close() error
}
