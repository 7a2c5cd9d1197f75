package audio

// Export internal functions for testing.
// This file is only compiled during tests (suffix _test.go).

// ParseDuration exports parseDuration for testing.
var ParseDuration = parseDuration

// FormatSeconds exports formatSeconds for testing.
var FormatSeconds = formatSeconds

// --- Dependency injection exports ---

// CommandRunner exports commandRunner interface for testing.
type CommandRunner = commandRunner

// TempDirCreator exports tempDirCreator interface for testing.
type TempDirCreator = tempDirCreator

// FileRemover exports fileRemover interface for testing.
type FileRemover = fileRemover

// FileLinker exports fileLinker interface for testing.
type FileLinker = fileLinker

// FileStatter exports fileStatter interface for testing.
type FileStatter = fileStatter

// SplitDirPrefix exports splitDirPrefix for testing.
const SplitDirPrefix = splitDirPrefix
