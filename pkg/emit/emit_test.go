package emit

import (
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/eunmann/bvbench/pkg/confspace"
	"github.com/eunmann/bvbench/pkg/fileutil"
	"github.com/stretchr/testify/require"
)

func testUnits() []confspace.Unit {
	return confspace.Enumerate([]uint64{0, 2, 4}, []uint64{0, 1024, 2048}, []uint64{4, 8, 12})
}

func TestRender(t *testing.T) {
	e := Emitter{}
	u := confspace.Unit{ID: 17, Config: confspace.Configuration{BufferSize: 6, LeafCapacity: 2048, BranchingFactor: 12}}

	src, err := e.Render(u)
	require.NoError(t, err)

	for _, want := range []string{
		"package main",
		`"github.com/eunmann/bvbench/pkg/protocol"`,
		"BufferSize:      6,",
		"LeafCapacity:    2048,",
		"BranchingFactor: 12,",
		"Usage: t17 <size> <steps>",
		"DO NOT EDIT",
	} {
		require.Contains(t, string(src), want)
	}

	f, err := parser.ParseFile(token.NewFileSet(), "main.go", src, parser.ParseComments)
	require.NoError(t, err, "rendered source does not parse")
	require.Equal(t, "main", f.Name.Name)
}

func TestRender_Deterministic(t *testing.T) {
	e := Emitter{ModulePath: "example.com/bench"}
	u := confspace.Unit{ID: 3, Config: confspace.Configuration{BufferSize: 2, LeafCapacity: 1024, BranchingFactor: 8}}

	a, err := e.Render(u)
	require.NoError(t, err)
	b, err := e.Render(u)
	require.NoError(t, err)
	require.Equal(t, a, b, "two renders of the same unit differ")
	require.Contains(t, string(a), `"example.com/bench/pkg/confspace"`)

	other, err := e.Render(confspace.Unit{ID: 3, Config: confspace.Configuration{BufferSize: 4, LeafCapacity: 1024, BranchingFactor: 8}})
	require.NoError(t, err)
	require.NotEqual(t, a, other, "different configurations rendered identically")
}

func TestEmit(t *testing.T) {
	dir := t.TempDir()
	e := Emitter{OutDir: dir}

	artifacts, err := e.Emit(context.Background(), testUnits())
	require.NoError(t, err)
	require.Len(t, artifacts, 27)

	for i, a := range artifacts {
		wantName := confspace.UnitName(uint64(i))
		require.Equal(t, wantName, a.Name)
		require.Equal(t, wantName+"/main.go", a.RelPath())
		got, err := os.ReadFile(a.Path)
		require.NoError(t, err)
		require.Equal(t, a.Source, got, "%s on disk differs from artifact source", a.Name)
	}
}

func TestEmit_RemovesStaleOutput(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"t99", "t5", "tools", "t1x"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, d), 0o755))
	}
	stale := []string{
		filepath.Join(dir, "t99", "main.go"),
		filepath.Join(dir, ManifestFile),
		filepath.Join(dir, MakefileFile),
		filepath.Join(dir, "t5", "main.go.tmp"),
	}
	for _, p := range append(stale, filepath.Join(dir, "tools", "keep.go"), filepath.Join(dir, "notes.txt")) {
		require.NoError(t, os.WriteFile(p, []byte("old"), 0o644))
	}

	e := Emitter{OutDir: dir}
	_, err := e.Emit(context.Background(), testUnits()[:3])
	require.NoError(t, err)

	for _, p := range stale {
		require.False(t, fileutil.Exists(p), "stale %s still exists", p)
	}
	for _, p := range []string{"t99", "t5"} {
		require.False(t, fileutil.Exists(filepath.Join(dir, p)), "stale unit dir %s still exists", p)
	}
	for _, p := range []string{"tools/keep.go", "notes.txt", "t1x", "t0/main.go", "t2/main.go"} {
		require.True(t, fileutil.Exists(filepath.Join(dir, p)), "%s should exist", p)
	}
}

func TestEmit_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Emitter{OutDir: t.TempDir()}.Emit(ctx, testUnits())
	require.ErrorIs(t, err, context.Canceled)
}

func TestEmit_Empty(t *testing.T) {
	artifacts, err := Emitter{OutDir: t.TempDir()}.Emit(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, artifacts)
}

func TestIsUnitDir(t *testing.T) {
	tests := map[string]bool{
		"t0":    true,
		"t4095": true,
		"t":     false,
		"t1x":   false,
		"x1":    false,
		"T1":    false,
	}
	for name, want := range tests {
		require.Equal(t, want, IsUnitDir(name), name)
	}
}

func writeGoMod(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(content), 0o644))
}

func TestCheckOutDir(t *testing.T) {
	tests := []struct {
		name    string
		gomod   string
		wantErr bool
	}{
		{"same module", "module github.com/eunmann/bvbench\n\ngo 1.25\n", false},
		{"requires module", "module example.com/sweep\n\nrequire github.com/eunmann/bvbench v0.1.0\n", false},
		{"requires in block", "module example.com/sweep\n\nrequire (\n\tgithub.com/rs/zerolog v1.34.0\n\tgithub.com/eunmann/bvbench v0.1.0\n)\n", false},
		{"unrelated module", "module example.com/other\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeGoMod(t, root, tt.gomod)

			// The output directory does not exist yet.
			err := CheckOutDir(filepath.Join(root, "gen", "units"), DefaultModulePath)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrOutsideModule)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFindModFile(t *testing.T) {
	root := t.TempDir()
	writeGoMod(t, root, "module example.com/sweep\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	path, err := FindModFile(nested)
	require.NoError(t, err)
	want, err := filepath.Abs(filepath.Join(root, "go.mod"))
	require.NoError(t, err)
	require.Equal(t, want, path)
}
