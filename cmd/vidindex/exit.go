package main

import (
	"context"
	"errors"
	"strings"

	"github.com/alnah/go-vidindex/internal/apierr"
	"github.com/alnah/go-vidindex/internal/audio"
	"github.com/alnah/go-vidindex/internal/chunk"
	"github.com/alnah/go-vidindex/internal/cli"
	"github.com/alnah/go-vidindex/internal/config"
	"github.com/alnah/go-vidindex/internal/embed"
	"github.com/alnah/go-vidindex/internal/ffmpeg"
	"github.com/alnah/go-vidindex/internal/interrupt"
	"github.com/alnah/go-vidindex/internal/pipeline"
	"github.com/alnah/go-vidindex/internal/store"
	"github.com/alnah/go-vidindex/internal/transcribe"
	"github.com/alnah/go-vidindex/internal/transcript"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitGeneral       = 1
	ExitUsage         = 2
	ExitSetup         = 3
	ExitValidation    = 4
	ExitTranscription = 5
	ExitEmbedding     = 6
	ExitInterrupt     = interrupt.ExitInterrupt
)

// exitCode maps errors to exit codes. The first matching class wins, so a
// run that failed while embedding reports ExitEmbedding even when the
// provider error is also an apierr sentinel.
func exitCode(ctx context.Context, err error) int {
	if err == nil {
		return ExitOK
	}

	if interrupt.Is(ctx, err) || errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Cobra doesn't expose typed errors, so we check for known error message patterns.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	if isAny(err, ffmpeg.ErrNotFound, audio.ErrExtractionUnavailable,
		cli.ErrAPIKeyMissing, transcribe.ErrAPIKeyMissing, cli.ErrInvalidProvider,
		config.ErrInvalidKey, config.ErrInvalidValue, config.ErrInvalidSyntax,
		config.ErrNotDirectory, config.ErrNotWritable) {
		return ExitSetup
	}

	if isAny(err, cli.ErrFileNotFound, cli.ErrOutputExists, cli.ErrConflictingFlags,
		audio.ErrFileNotFound, audio.ErrOutputExists, config.ErrInvalidTunables, embed.ErrInvalidOptions,
		chunk.ErrConfigInvalid, chunk.ErrChunkValidationFailed,
		transcript.ErrMalformed, transcript.ErrInvalidLanguage, store.ErrNotFound) {
		return ExitValidation
	}

	if errors.Is(err, embed.ErrEmbeddingFailed) {
		return ExitEmbedding
	}
	if isAny(err, transcribe.ErrTranscriptionFailed, audio.ErrExtractionFailed,
		audio.ErrSplitFailed, audio.ErrDurationProbeFailed, ffmpeg.ErrTimeout,
		apierr.ErrRateLimit, apierr.ErrQuotaExceeded, apierr.ErrTimeout,
		apierr.ErrAuthFailed, apierr.ErrBadRequest) {
		return ExitTranscription
	}

	var se *pipeline.StageError
	if errors.As(err, &se) && errors.Is(err, pipeline.ErrStageTimeout) {
		switch se.Stage {
		case pipeline.StageEmbed:
			return ExitEmbedding
		case pipeline.StageExtract, pipeline.StageSplit, pipeline.StageTranscribe:
			return ExitTranscription
		}
	}

	return ExitGeneral
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// These patterns are stable across Cobra versions (tested with v1.8+).
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"unknown command",           // Subcommand doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
