// Package data imports historical tick archives into the per-day store.
// Two source formats are supported, a duckdb tick database and a packed
// little-endian binary dump.
package data

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"golang.org/x/exp/mmap"

	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

var ErrEOF = errors.New("EOF")

// DumpRecordSize is the packed on-disk size of one dump tick: unix time
// int64, bid float64, ask float64, all little-endian.
const DumpRecordSize = 24

// DumpReader random-accesses a packed tick dump through a memory map, so
// multi-gigabyte archives can be imported without reading them into memory.
type DumpReader struct {
	path   string
	reader *mmap.ReaderAt
	buffer []byte
}

func NewDumpReader(path string) *DumpReader {
	return &DumpReader{
		path:   path,
		buffer: make([]byte, DumpRecordSize),
	}
}

func (r *DumpReader) Open() error {
	reader, err := mmap.Open(r.path)
	if err != nil {
		return fmt.Errorf("unable to open dump %q: %w", r.path, err)
	}
	r.reader = reader
	return nil
}

func (r *DumpReader) Close() {
	_ = r.reader.Close()
}

// Read decodes the record at index into a tick. Past the last record it
// returns ErrEOF.
func (r *DumpReader) Read(index int64) (model.Tick, error) {
	n, err := r.reader.ReadAt(r.buffer, index*DumpRecordSize)
	if err != nil && err != io.EOF {
		return model.Tick{}, fmt.Errorf("unable to read dump record %d: %w", index, err)
	}
	if n < DumpRecordSize {
		return model.Tick{}, ErrEOF
	}

	unixTime := int64(binary.LittleEndian.Uint64(r.buffer[0:8]))
	bid := math.Float64frombits(binary.LittleEndian.Uint64(r.buffer[8:16]))
	ask := math.Float64frombits(binary.LittleEndian.Uint64(r.buffer[16:24]))

	return model.Tick{
		Time: time.Unix(unixTime, 0).UTC(),
		Bid:  fixed.FromFloat64(bid),
		Ask:  fixed.FromFloat64(ask),
	}, nil
}

// EntryCount derives the record count from the file size and rejects
// truncated dumps.
func (r *DumpReader) EntryCount() (int64, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		return 0, fmt.Errorf("unable to stat dump %q: %w", r.path, err)
	}
	if info.Size()%DumpRecordSize != 0 {
		return 0, fmt.Errorf("dump %q is truncated, %d trailing bytes",
			r.path, info.Size()%DumpRecordSize)
	}
	return info.Size() / DumpRecordSize, nil
}
