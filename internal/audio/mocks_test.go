package audio_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/alnah/go-vidindex/internal/audio"
	"github.com/alnah/go-vidindex/internal/ffmpeg"
)

var testToolchain = ffmpeg.Toolchain{FFmpeg: "/bin/ffmpeg", FFprobe: "/bin/ffprobe"}

// Compile-time checks that the mocks satisfy the injected interfaces.
var (
	_ audio.CommandRunner  = (*mockCommandRunner)(nil)
	_ audio.FileStatter    = (*mockFS)(nil)
	_ audio.FileRemover    = (*mockFS)(nil)
	_ audio.FileLinker     = (*mockFS)(nil)
	_ audio.TempDirCreator = (*mockTempDirCreator)(nil)
)

// ---------------------------------------------------------------------------
// mockCommandRunner
// ---------------------------------------------------------------------------

type mockCall struct {
	name string
	args []string
}

type mockCommandRunner struct {
	mu      sync.Mutex
	runFunc func(ctx context.Context, name string, args []string) (ffmpeg.Output, error)
	calls   []mockCall
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args []string) (ffmpeg.Output, error) {
	m.mu.Lock()
	m.calls = append(m.calls, mockCall{name: name, args: slices.Clone(args)})
	m.mu.Unlock()
	if m.runFunc != nil {
		return m.runFunc(ctx, name, args)
	}
	return ffmpeg.Output{}, nil
}

func (m *mockCommandRunner) callsTo(name string) []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockCall
	for _, c := range m.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// mockFS - in-memory file sizes plus a removal log
// ---------------------------------------------------------------------------

type mockFS struct {
	mu        sync.Mutex
	sizes     map[string]int64
	removed   []string
	removeErr error
}

func newMockFS(files map[string]int64) *mockFS {
	m := &mockFS{sizes: make(map[string]int64)}
	for k, v := range files {
		m.sizes[k] = v
	}
	return m
}

func (m *mockFS) put(path string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes[path] = size
}

func (m *mockFS) Stat(name string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	size, ok := m.sizes[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &mockFileInfo{name: filepath.Base(name), size: size}, nil
}

func (m *mockFS) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, name)
	delete(m.sizes, name)
	return m.removeErr
}

func (m *mockFS) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, path)
	for p := range m.sizes {
		if filepath.Dir(p) == path {
			delete(m.sizes, p)
		}
	}
	return m.removeErr
}

func (m *mockFS) Link(oldname, newname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	size, ok := m.sizes[oldname]
	if !ok {
		return os.ErrNotExist
	}
	if _, ok := m.sizes[newname]; ok {
		return os.ErrExist
	}
	m.sizes[newname] = size
	return nil
}

// paths lists the files currently present.
func (m *mockFS) paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sizes))
	for p := range m.sizes {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (m *mockFS) wasRemoved(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.removed, path)
}

func (m *mockFS) exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sizes[path]
	return ok
}

type mockTempDirCreator struct {
	dir string
	err error
}

func (m *mockTempDirCreator) MkdirTemp(dir, pattern string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.dir, nil
}

type mockFileInfo struct {
	name string
	size int64
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return 0o644 }
func (m *mockFileInfo) ModTime() time.Time { return time.Now() }
func (m *mockFileInfo) IsDir() bool        { return false }
func (m *mockFileInfo) Sys() any           { return nil }
