package confspace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Sweep names the three parameter sequences of a generation run.
type Sweep struct {
	Buffers  List `yaml:"buffers"`
	Leafs    List `yaml:"leafs"`
	Branches List `yaml:"branches"`
}

// List is a parameter sequence. In YAML it is either a sequence whose
// items are integers or range strings, or a single string in ParseList
// syntax.
type List []uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *List) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		vals, err := ParseList(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*l = vals
		return nil
	case yaml.SequenceNode:
		var out []uint64
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: %w: nested value", item.Line, ErrInvalidRange)
			}
			vals, err := parseItem(item.Value)
			if err != nil {
				return fmt.Errorf("line %d: parse %q: %w", item.Line, item.Value, err)
			}
			out = append(out, vals...)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: %w: expected a list or a string", node.Line, ErrInvalidRange)
	}
}

// DefaultSweep returns the standard sweep: buffers 0..30 step 2, leaf
// capacities 0..15360 step 1024, branching factors 4..64 step 4, 4096
// units in total.
func DefaultSweep() Sweep {
	const n = 16
	s := Sweep{
		Buffers:  make(List, n),
		Leafs:    make(List, n),
		Branches: make(List, n),
	}
	for i := range uint64(n) {
		s.Buffers[i] = 2 * i
		s.Leafs[i] = 1024 * i
		s.Branches[i] = 4 * (i + 1)
	}
	return s
}

// LoadSweep reads a YAML sweep file. Sequences missing from the file keep
// their DefaultSweep values.
func LoadSweep(path string) (Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sweep{}, fmt.Errorf("read sweep: %w", err)
	}
	s := DefaultSweep()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sweep{}, fmt.Errorf("parse sweep %s: %w", path, err)
	}
	return s, nil
}

// Count returns the number of units of the sweep.
func (s Sweep) Count() uint64 {
	return Count(s.Buffers, s.Leafs, s.Branches)
}

// Units enumerates the sweep.
func (s Sweep) Units() []Unit {
	return Enumerate(s.Buffers, s.Leafs, s.Branches)
}
