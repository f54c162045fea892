package whisper

import (
	"context"
	"errors"

	"github.com/aigoflow/stt-service/internal/models"
)

// ErrInference means the model rejected the audio or failed internally
// despite the input having passed normalization.
var ErrInference = errors.New("whisper: inference failed")

// Options configures one decoding run.
type Options struct {
	Language string // empty or "auto" lets the model detect
	BeamSize int
	Threads  int
}

// Engine is the transcription model collaborator: normalized audio in,
// recognized language, full text and ordered timed segments out.
type Engine interface {
	Transcribe(ctx context.Context, wavPath string, opts Options) (*models.TranscriptionResult, error)
}
