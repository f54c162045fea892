package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/aigoflow/stt-service/internal/models"
)

// CLIEngine drives the whisper.cpp CLI as an external process and parses
// its JSON output. The model stays loaded only for the duration of a call;
// readiness is tracked by the Loader, not here.
type CLIEngine struct {
	binPath   string
	modelPath string
}

func NewCLIEngine(binPath, modelPath string) *CLIEngine {
	return &CLIEngine{binPath: binPath, modelPath: modelPath}
}

func (e *CLIEngine) Transcribe(ctx context.Context, wavPath string, opts Options) (*models.TranscriptionResult, error) {
	outPrefix := strings.TrimSuffix(wavPath, ".wav")
	jsonPath := outPrefix + ".json"
	defer os.Remove(jsonPath)

	args := []string{
		"-m", e.modelPath,
		"-f", wavPath,
		"--output-json",
		"--output-file", outPrefix,
		"--no-prints",
	}
	if opts.BeamSize > 0 {
		args = append(args, "--beam-size", strconv.Itoa(opts.BeamSize))
	}
	if opts.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(opts.Threads))
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	} else {
		args = append(args, "--language", "auto")
	}

	cmd := exec.CommandContext(ctx, e.binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrInference, detail)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("%w: no transcription output: %v", ErrInference, err)
	}

	result, err := parseOutput(data)
	if err != nil {
		return nil, err
	}

	slog.Debug("Whisper CLI completed",
		"wav", wavPath,
		"segments", len(result.Segments),
		"language", result.Language,
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// cliOutput mirrors the whisper.cpp JSON layout; offsets are milliseconds.
type cliOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseOutput(data []byte) (*models.TranscriptionResult, error) {
	var out cliOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: malformed transcription output: %v", ErrInference, err)
	}

	segments := make([]models.Segment, 0, len(out.Transcription))
	texts := make([]string, 0, len(out.Transcription))
	for _, s := range out.Transcription {
		text := strings.TrimSpace(s.Text)
		segments = append(segments, models.Segment{
			Start: float64(s.Offsets.From) / 1000.0,
			End:   float64(s.Offsets.To) / 1000.0,
			Text:  text,
		})
		if text != "" {
			texts = append(texts, text)
		}
	}

	language := out.Result.Language
	if language == "" {
		language = "unknown"
	}

	return &models.TranscriptionResult{
		Text:     strings.Join(texts, " "),
		Language: language,
		Segments: segments,
	}, nil
}
