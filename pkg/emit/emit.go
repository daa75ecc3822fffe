// Package emit renders one Go main package per benchmark unit.
//
// A unit binds its configuration by value and delegates to protocol.Main,
// so every configuration builds into its own binary and runs in its own
// process.
package emit

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"regexp"
	"text/template"
	"time"

	"github.com/eunmann/bvbench/internal/logctx"
	"github.com/eunmann/bvbench/pkg/confspace"
	"github.com/eunmann/bvbench/pkg/fileutil"
	"github.com/eunmann/bvbench/pkg/logging"
)

// DefaultModulePath is the import path generated units import the
// protocol from.
const DefaultModulePath = "github.com/eunmann/bvbench"

// Files written next to the unit directories. Emit removes stale copies.
const (
	ManifestFile = "manifest.json"
	MakefileFile = "Makefile"
	SourceFile   = "main.go"
)

var unitDirPattern = regexp.MustCompile(`^t[0-9]+$`)

// IsUnitDir reports whether name is a generated unit directory name.
func IsUnitDir(name string) bool {
	return unitDirPattern.MatchString(name)
}

// Artifact is one rendered unit.
type Artifact struct {
	Unit confspace.Unit
	// Name is the unit name, "t<ID>".
	Name string
	// Path is the written source file, "<OutDir>/t<ID>/main.go".
	Path string
	// Source is the rendered, gofmt'ed program.
	Source []byte
}

// RelPath returns the source path relative to the output directory.
func (a Artifact) RelPath() string {
	return filepath.ToSlash(filepath.Join(a.Name, SourceFile))
}

var unitTemplate = template.Must(template.New("unit").Parse(`// Code generated by bvbench generate. DO NOT EDIT.

// Command {{.Name}} benchmarks the bit vector with buffer size {{.Config.BufferSize}},
// leaf capacity {{.Config.LeafCapacity}} and branching factor {{.Config.BranchingFactor}}.
//
// Usage: {{.Name}} <size> <steps>
package main

import (
	"os"

	"{{.ModulePath}}/pkg/confspace"
	"{{.ModulePath}}/pkg/protocol"
)

func main() {
	os.Exit(protocol.Main(os.Args[1:], confspace.Configuration{
		BufferSize: {{.Config.BufferSize}},
		LeafCapacity: {{.Config.LeafCapacity}},
		BranchingFactor: {{.Config.BranchingFactor}},
	}))
}
`))

// Emitter writes unit programs under OutDir.
type Emitter struct {
	OutDir string
	// ModulePath is the import path of this module; DefaultModulePath if empty.
	ModulePath string
}

func (e Emitter) modulePath() string {
	if e.ModulePath == "" {
		return DefaultModulePath
	}
	return e.ModulePath
}

// Render returns the gofmt'ed source of the unit. The output depends only
// on the unit and the module path.
func (e Emitter) Render(u confspace.Unit) ([]byte, error) {
	var buf bytes.Buffer
	err := unitTemplate.Execute(&buf, struct {
		Name       string
		ModulePath string
		Config     confspace.Configuration
	}{u.Name(), e.modulePath(), u.Config})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", u.Name(), err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", u.Name(), err)
	}
	return src, nil
}

// Emit clears the output of a previous run from OutDir and writes one
// program per unit. Artifacts are returned in unit order.
func (e Emitter) Emit(ctx context.Context, units []confspace.Unit) ([]Artifact, error) {
	log := logctx.FromContext(ctx)
	start := time.Now()

	if err := os.MkdirAll(e.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if err := e.removeStale(); err != nil {
		return nil, err
	}

	progress := logging.NewProgressTracker("generate", int64(len(units)), log)
	artifacts := make([]Artifact, 0, len(units))
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("emit canceled after %d units: %w", len(artifacts), err)
		}

		began := time.Now()
		src, err := e.Render(u)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(e.OutDir, u.Name(), SourceFile)
		if err := fileutil.WriteFile(path, src); err != nil {
			return nil, fmt.Errorf("write %s: %w", u.Name(), err)
		}

		unitLog := logctx.FromContext(logctx.WithUnit(ctx, u.Name(), u.ID))
		unitLog.Debug().Int("bytes", len(src)).Msg("unit written")
		artifacts = append(artifacts, Artifact{Unit: u, Name: u.Name(), Path: path, Source: src})
		progress.RecordCompletion(time.Since(began))
	}

	logging.PhaseComplete(log, "generate", time.Since(start)).
		Int("units", len(artifacts)).
		Str("out_dir", e.OutDir).
		Log("units emitted")
	return artifacts, nil
}

func (e Emitter) removeStale() error {
	_, err := fileutil.RemoveMatching(e.OutDir, func(name string, isDir bool) bool {
		if isDir {
			return IsUnitDir(name)
		}
		return name == ManifestFile || name == MakefileFile
	})
	if err != nil {
		return fmt.Errorf("remove stale units: %w", err)
	}
	if _, err := fileutil.CleanupTmpFiles(e.OutDir); err != nil {
		return fmt.Errorf("remove tmp files: %w", err)
	}
	return nil
}
