package audio

import (
	"context"
	"os"

	"github.com/alnah/go-vidindex/internal/ffmpeg"
)

// commandRunner executes toolchain binaries and captures their output.
// *ffmpeg.Executor implements it.
type commandRunner interface {
	Run(ctx context.Context, path string, args []string) (ffmpeg.Output, error)
}

// tempDirCreator creates temporary directories.
type tempDirCreator interface {
	MkdirTemp(dir, pattern string) (string, error)
}

// fileStatter retrieves file information.
type fileStatter interface {
	Stat(name string) (os.FileInfo, error)
}

// fileRemover removes files and directories.
type fileRemover interface {
	Remove(name string) error
	RemoveAll(path string) error
}

// fileLinker creates a hard link, failing when newname exists.
type fileLinker interface {
	Link(oldname, newname string) error
}

var _ commandRunner = (*ffmpeg.Executor)(nil)

// --- Default implementations using real OS functions ---

type osTempDirCreator struct{}

func (osTempDirCreator) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

type osFileStatter struct{}

func (osFileStatter) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

type osFileRemover struct{}

func (osFileRemover) Remove(name string) error {
	return os.Remove(name)
}

func (osFileRemover) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

type osFileLinker struct{}

func (osFileLinker) Link(oldname, newname string) error {
	return os.Link(oldname, newname)
}
