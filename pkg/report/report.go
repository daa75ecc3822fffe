// Package report parses the tab-separated output of benchmark units and
// archives it as Parquet.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/eunmann/bvbench/internal/logctx"
	"github.com/eunmann/bvbench/pkg/fileutil"
	"github.com/eunmann/bvbench/pkg/logging"
	"github.com/eunmann/bvbench/pkg/protocol"
	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
)

// ErrMalformedRow is returned when a report line does not match the
// protocol's columns.
var ErrMalformedRow = errors.New("malformed report row")

// Record is one report row tagged with the unit that produced it.
type Record struct {
	Unit            string  `parquet:"unit"`
	Target          uint64  `parquet:"target"`
	BufferSize      uint64  `parquet:"buffer_size"`
	LeafCapacity    uint64  `parquet:"leaf_capacity"`
	BranchingFactor uint64  `parquet:"branching_factor"`
	BitsSize        uint64  `parquet:"bits_size"`
	ResidentSet     int64   `parquet:"resident_set"`
	RemoveUS        float64 `parquet:"remove_us"`
	InsertUS        float64 `parquet:"insert_us"`
	AccessUS        float64 `parquet:"access_us"`
	RankUS          float64 `parquet:"rank_us"`
	SelectUS        float64 `parquet:"select_us"`
	Checksum        uint64  `parquet:"checksum"`
}

// Parse reads a report: the header line followed by data rows.
func Parse(r io.Reader, unit string) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty report: %w", unit, ErrMalformedRow)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", unit, err)
	}
	if !slices.Equal(header, protocol.Columns) {
		return nil, fmt.Errorf("%s: unexpected header %q: %w", unit, strings.Join(header, "\t"), ErrMalformedRow)
	}

	var records []Record
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", unit, line, err)
		}
		rec, err := parseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", unit, line, err)
		}
		rec.Unit = unit
		records = append(records, rec)
	}
}

func parseRow(fields []string) (Record, error) {
	if len(fields) != len(protocol.Columns) {
		return Record{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformedRow, len(fields), len(protocol.Columns))
	}

	p := fieldParser{fields: fields}
	rec := Record{
		Target:          p.u64(0),
		BufferSize:      p.u64(1),
		LeafCapacity:    p.u64(2),
		BranchingFactor: p.u64(3),
		BitsSize:        p.u64(4),
		ResidentSet:     p.i64(5),
		RemoveUS:        p.f64(6),
		InsertUS:        p.f64(7),
		AccessUS:        p.f64(8),
		RankUS:          p.f64(9),
		SelectUS:        p.f64(10),
		Checksum:        p.u64(11),
	}
	return rec, p.err
}

// fieldParser keeps the first conversion error.
type fieldParser struct {
	fields []string
	err    error
}

func (p *fieldParser) fail(i int, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: column %q: %w", ErrMalformedRow, protocol.Columns[i], err)
	}
}

func (p *fieldParser) u64(i int) uint64 {
	v, err := strconv.ParseUint(p.fields[i], 10, 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *fieldParser) i64(i int) int64 {
	v, err := strconv.ParseInt(p.fields[i], 10, 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *fieldParser) f64(i int) float64 {
	v, err := strconv.ParseFloat(p.fields[i], 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

// ZstdExt marks a zstd-compressed report, e.g. "t12.tsv.zst".
const ZstdExt = ".zst"

// UnitName derives the unit name from a report path: "out/t12.tsv" and
// "out/t12.tsv.zst" are both "t12".
func UnitName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ZstdExt)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseFile parses the report at path, naming the unit after the file.
// Files ending in ZstdExt are decompressed on the fly.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(path, ZstdExt) {
		return Parse(f, UnitName(path))
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open zstd report: %w", err)
	}
	defer dec.Close()
	return Parse(dec, UnitName(path))
}

// Collect parses every report in paths, in order.
func Collect(ctx context.Context, paths []string) ([]Record, error) {
	log := logctx.FromContext(ctx)
	start := time.Now()
	progress := logging.NewProgressTracker("collect", int64(len(paths)), log)

	var records []Record
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !fileutil.IsNonEmpty(path) {
			progress.RecordSkip()
			log.Warn().Str("path", path).Msg("report is empty")
			continue
		}
		began := time.Now()
		recs, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			progress.RecordSkip()
			log.Warn().Str("path", path).Msg("report has no rows")
			continue
		}
		records = append(records, recs...)
		progress.RecordCompletion(time.Since(began))
	}

	logging.PhaseComplete(log, "collect", time.Since(start)).
		Int("reports", len(paths)).
		Int("rows", len(records)).
		Log("reports collected")
	return records, nil
}

// WriteParquet writes records to path through a temporary file.
func WriteParquet(path string, records []Record) error {
	return fileutil.WriteTmpThenMove(filepath.Dir(path), path, func(tmpPath string) error {
		if err := parquet.WriteFile(tmpPath, records); err != nil {
			return fmt.Errorf("write parquet: %w", err)
		}
		return nil
	})
}

// ReadParquet reads records written by WriteParquet.
func ReadParquet(path string) ([]Record, error) {
	records, err := parquet.ReadFile[Record](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return records, nil
}
