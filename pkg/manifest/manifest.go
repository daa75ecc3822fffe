// Package manifest records the units of a generation run: a JSON manifest
// for tooling and a Makefile with one build target per unit.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/eunmann/bvbench/pkg/confspace"
	"github.com/eunmann/bvbench/pkg/emit"
	"github.com/eunmann/bvbench/pkg/fileutil"
)

// Version is the current manifest format version.
const Version = 1

// ErrChecksumMismatch is returned by Verify when a unit source changed
// after generation.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Manifest describes a generated output directory. It carries no
// timestamps, so identical inputs produce identical bytes.
type Manifest struct {
	Version int    `json:"version"`
	Package string `json:"package"`
	// Targets are listed in emission order.
	Targets []Target `json:"targets"`
}

// Target describes one unit.
type Target struct {
	ID       uint64                  `json:"id"`
	Name     string                  `json:"name"`
	Source   string                  `json:"source"`
	Size     int64                   `json:"size"`
	Checksum string                  `json:"checksum"` // SHA-256 hex
	Config   confspace.Configuration `json:"config"`
}

// Build assembles the manifest of artifacts without touching the disk.
func Build(pkg string, artifacts []emit.Artifact) *Manifest {
	m := &Manifest{
		Version: Version,
		Package: pkg,
		Targets: make([]Target, 0, len(artifacts)),
	}
	for _, a := range artifacts {
		sum := sha256.Sum256(a.Source)
		m.Targets = append(m.Targets, Target{
			ID:       a.Unit.ID,
			Name:     a.Name,
			Source:   a.RelPath(),
			Size:     int64(len(a.Source)),
			Checksum: hex.EncodeToString(sum[:]),
			Config:   a.Unit.Config,
		})
	}
	return m
}

// Write writes manifest.json and the Makefile for artifacts into dir.
func Write(dir, pkg string, artifacts []emit.Artifact) (*Manifest, error) {
	m := Build(pkg, artifacts)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	if err := fileutil.WriteFile(filepath.Join(dir, emit.ManifestFile), data); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := fileutil.WriteFile(filepath.Join(dir, emit.MakefileFile), Makefile(m)); err != nil {
		return nil, fmt.Errorf("write makefile: %w", err)
	}
	if err := syncDir(dir); err != nil {
		return nil, fmt.Errorf("sync %s: %w", dir, err)
	}
	return m, nil
}

// Read reads the manifest from dir.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, emit.ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	return &m, nil
}

// Verify checks every target source in dir against its size and checksum.
func Verify(dir string, m *Manifest) error {
	for _, t := range m.Targets {
		path := filepath.Join(dir, filepath.FromSlash(t.Source))

		stat, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("target %s: %w", t.Name, err)
		}
		if stat.Size() != t.Size {
			return fmt.Errorf("target %s: size %d, want %d: %w", t.Name, stat.Size(), t.Size, ErrChecksumMismatch)
		}

		checksum, err := checksumFile(path)
		if err != nil {
			return fmt.Errorf("checksum %s: %w", t.Name, err)
		}
		if checksum != t.Checksum {
			return fmt.Errorf("target %s: %w", t.Name, ErrChecksumMismatch)
		}
	}
	return nil
}

// Makefile renders a Makefile building every target of m into $(BIN).
func Makefile(m *Manifest) []byte {
	var b bytes.Buffer
	b.WriteString("# Code generated by bvbench generate. DO NOT EDIT.\n\n")
	b.WriteString("GO ?= go\nBIN ?= bin\n\n")

	b.WriteString("TARGETS :=")
	for i, t := range m.Targets {
		if i > 0 && i%16 == 0 {
			b.WriteString(" \\\n\t")
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(t.Name)
	}
	b.WriteString("\n\n.PHONY: all clean $(TARGETS)\n\nall: $(TARGETS)\n")

	for _, t := range m.Targets {
		dir := strings.TrimSuffix(t.Source, "/"+emit.SourceFile)
		fmt.Fprintf(&b, "\n%s:\n\t$(GO) build -o $(BIN)/%s ./%s\n", t.Name, t.Name, dir)
	}

	b.WriteString("\nclean:\n\trm -rf $(BIN)\n")
	return b.Bytes()
}

// checksumFile computes the SHA-256 checksum of a file.
func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// syncDir fsyncs a directory to ensure entries are persisted.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
