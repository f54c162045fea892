// Package audio converts arbitrary uploaded audio into the canonical
// 16 kHz mono 16-bit PCM WAV the transcription model expects.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrTimeout means the transcoder exceeded its deadline and was killed.
	ErrTimeout = errors.New("audio: conversion timed out")
	// ErrConvertFailed means the transcoder exited non-zero or produced no usable output.
	ErrConvertFailed = errors.New("audio: conversion failed")
)

type Normalizer struct {
	ffmpegBin string
	timeout   time.Duration
}

func NewNormalizer(ffmpegBin string, timeout time.Duration) *Normalizer {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Normalizer{ffmpegBin: ffmpegBin, timeout: timeout}
}

// Normalize converts inputPath to a canonical WAV next to it and returns the
// new path. The input artifact is removed before returning, success or not;
// on failure any partial output is removed as well. On success the caller
// owns the returned file.
func (n *Normalizer) Normalize(ctx context.Context, inputPath string) (string, error) {
	outputPath := inputPath + ".norm.wav"
	defer os.Remove(inputPath)

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	args := []string{
		"-nostdin", "-y", "-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-vn", "-sn", "-dn",
		"-ar", "16000",
		"-ac", "1",
		"-sample_fmt", "s16",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, n.ffmpegBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		os.Remove(outputPath)
		slog.Warn("ffmpeg conversion timed out, process killed",
			"input", inputPath,
			"timeout", n.timeout)
		return "", fmt.Errorf("%w after %s", ErrTimeout, n.timeout)
	}
	if err != nil {
		os.Remove(outputPath)
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("%w: %s", ErrConvertFailed, detail)
	}

	// A reported success with a missing or empty output is still a failure.
	info, statErr := os.Stat(outputPath)
	if statErr != nil || info.Size() == 0 {
		os.Remove(outputPath)
		return "", fmt.Errorf("%w: transcoder produced no output", ErrConvertFailed)
	}

	slog.Debug("Audio normalized",
		"output", outputPath,
		"size_bytes", info.Size(),
		"duration_ms", time.Since(start).Milliseconds())

	return outputPath, nil
}
