package confspace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRange is returned for malformed list items and ranges.
var ErrInvalidRange = errors.New("invalid parameter range")

// maxRangeLen bounds how many values a single range item may expand to.
const maxRangeLen = 1 << 16

// ParseList parses a comma-separated list of non-negative integers. An item
// may also be a range "start:stop[:step]" with stop exclusive and step
// defaulting to 1, so "0:8:2,100" is [0 2 4 6 100]. Blank input parses to
// an empty list.
func ParseList(s string) ([]uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var out []uint64
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		vals, err := parseItem(item)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", item, err)
		}
		out = append(out, vals...)
	}
	return out, nil
}

func parseItem(item string) ([]uint64, error) {
	if !strings.Contains(item, ":") {
		v, err := parseUint(item)
		if err != nil {
			return nil, err
		}
		return []uint64{v}, nil
	}

	parts := strings.Split(item, ":")
	if len(parts) > 3 {
		return nil, fmt.Errorf("%w: want start:stop[:step]", ErrInvalidRange)
	}
	start, err := parseUint(parts[0])
	if err != nil {
		return nil, err
	}
	stop, err := parseUint(parts[1])
	if err != nil {
		return nil, err
	}
	step := uint64(1)
	if len(parts) == 3 {
		if step, err = parseUint(parts[2]); err != nil {
			return nil, err
		}
		if step == 0 {
			return nil, fmt.Errorf("%w: step must be positive", ErrInvalidRange)
		}
	}
	if stop < start {
		return nil, fmt.Errorf("%w: stop %d before start %d", ErrInvalidRange, stop, start)
	}

	// start+i*step < stop for every i < n, so the values never wrap.
	n := (stop - start) / step
	if (stop-start)%step != 0 {
		n++
	}
	if n > maxRangeLen {
		return nil, fmt.Errorf("%w: range expands to more than %d values", ErrInvalidRange, maxRangeLen)
	}
	vals := make([]uint64, n)
	for i := range n {
		vals[i] = start + i*step
	}
	return vals, nil
}

func parseUint(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidRange, s)
	}
	return v, nil
}

// FormatList renders values as a comma-separated list that ParseList reads back.
func FormatList(vals []uint64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return strings.Join(parts, ",")
}
