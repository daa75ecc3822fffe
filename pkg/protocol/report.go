package protocol

import (
	"encoding/csv"
	"io"
	"strconv"
)

// Columns is the header of a benchmark report.
var Columns = []string{
	"Size",
	"buffer size",
	"leaf size",
	"branching factor",
	"bits size",
	"resident set",
	"remove",
	"insert",
	"access",
	"rank",
	"select",
	"checksum",
}

// Row is one report line. Latencies are mean microseconds per operation.
type Row struct {
	Target          uint64
	BufferSize      uint64
	LeafCapacity    uint64
	BranchingFactor uint64
	// Size is the structural size sampled right after the first insert pass.
	Size uint64
	// ResidentSet is the peak RSS in bits, or -1 when unavailable.
	ResidentSet int64
	Remove      float64
	Insert      float64
	Access      float64
	Rank        float64
	Select      float64
	Checksum    uint64
}

// Fields renders r in column order.
func (r Row) Fields() []string {
	return []string{
		strconv.FormatUint(r.Target, 10),
		strconv.FormatUint(r.BufferSize, 10),
		strconv.FormatUint(r.LeafCapacity, 10),
		strconv.FormatUint(r.BranchingFactor, 10),
		strconv.FormatUint(r.Size, 10),
		strconv.FormatInt(r.ResidentSet, 10),
		FormatLatency(r.Remove),
		FormatLatency(r.Insert),
		FormatLatency(r.Access),
		FormatLatency(r.Rank),
		FormatLatency(r.Select),
		strconv.FormatUint(r.Checksum, 10),
	}
}

// FormatLatency prints a latency with six significant digits.
func FormatLatency(us float64) string {
	return strconv.FormatFloat(us, 'g', 6, 64)
}

// ReportWriter writes a tab-separated report. The header is written
// before the first row.
type ReportWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewReportWriter returns a writer emitting to w.
func NewReportWriter(w io.Writer) *ReportWriter {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return &ReportWriter{w: cw}
}

// WriteHeader writes the header if it has not been written yet.
func (rw *ReportWriter) WriteHeader() error {
	if rw.wroteHeader {
		return nil
	}
	rw.wroteHeader = true
	if err := rw.w.Write(Columns); err != nil {
		return err
	}
	rw.w.Flush()
	return rw.w.Error()
}

// Write writes one row and flushes it, so partial reports survive a
// killed unit.
func (rw *ReportWriter) Write(r Row) error {
	if err := rw.WriteHeader(); err != nil {
		return err
	}
	if err := rw.w.Write(r.Fields()); err != nil {
		return err
	}
	rw.w.Flush()
	return rw.w.Error()
}
