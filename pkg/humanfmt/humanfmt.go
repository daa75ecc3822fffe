// Package humanfmt renders byte counts, bit counts, durations and per-op
// latencies for the human-readable companion fields of log events.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

type unit struct {
	size float64
	name string
}

// Largest first.
var (
	binaryUnits = []unit{{TiB, " TiB"}, {GiB, " GiB"}, {MiB, " MiB"}, {KiB, " KiB"}}
	metricUnits = []unit{{1e9, "B"}, {1e6, "M"}, {1e3, "K"}}
)

// Microseconds per unit, largest first.
var latencyUnits = []unit{{1e6, "s"}, {1e3, "ms"}, {1, "µs"}}

// Bytes formats a byte count using IEC binary units, e.g. "1.23 GiB".
func Bytes(b int64) string {
	if b < 0 {
		return strconv.FormatInt(b, 10) + " B"
	}
	return scaleBinary(float64(b), "")
}

// Bits formats a bit count as the equivalent number of bytes. The RSS
// column of a benchmark report is measured in bits; -1 marks a failed
// sample.
func Bits(bits int64) string {
	if bits < 0 {
		return "n/a"
	}
	return Bytes(bits / 8)
}

// Duration formats a duration compactly.
// Examples: "1.23s", "45.6ms", "789.0µs", "1m30s", "2h15m".
func Duration(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d >= time.Hour:
		return wholeUnits(d, time.Hour, "h", time.Minute, "m")
	case d >= time.Minute:
		return wholeUnits(d, time.Minute, "m", time.Second, "s")
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return strconv.FormatInt(d.Nanoseconds(), 10) + "ns"
	}
}

// wholeUnits renders d as "<n><big>[<m><small>]", dropping a zero remainder.
func wholeUnits(d, big time.Duration, bigName string, small time.Duration, smallName string) string {
	s := strconv.FormatInt(int64(d/big), 10) + bigName
	if rem := (d % big) / small; rem != 0 {
		s += strconv.FormatInt(int64(rem), 10) + smallName
	}
	return s
}

// Latency formats a per-operation latency given in microseconds, the unit
// of the report columns: "153ns", "1.53µs", "2.1ms". Zero means the phase
// did not run and formats as "-".
func Latency(us float64) string {
	if us <= 0 {
		return "-"
	}
	if us < 1 {
		return strconv.FormatFloat(us*1000, 'f', 0, 64) + "ns"
	}
	for _, u := range latencyUnits {
		if us >= u.size {
			return strconv.FormatFloat(us/u.size, 'g', 3, 64) + u.name
		}
	}
	return "-"
}

// Throughput formats bytes per duration, e.g. "123.45 MiB/s".
func Throughput(bytes int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	return scaleBinary(float64(bytes)/d.Seconds(), "/s")
}

// Count formats a count with a metric suffix.
// Examples: "1.23M", "456.00K", "789".
func Count(n int64) string {
	for _, u := range metricUnits {
		if float64(n) >= u.size {
			return fmt.Sprintf("%.2f%s", float64(n)/u.size, u.name)
		}
	}
	return strconv.FormatInt(n, 10)
}

func scaleBinary(v float64, suffix string) string {
	for _, u := range binaryUnits {
		if v >= u.size {
			return fmt.Sprintf("%.2f%s%s", v/u.size, u.name, suffix)
		}
	}
	return fmt.Sprintf("%.0f B%s", v, suffix)
}
