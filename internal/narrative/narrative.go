// Package narrative writes the plain-language summary shown above a
// report. A chat model is used when one is configured; otherwise, or
// when the model fails, a fixed template is filled in.
package narrative

import (
	"context"
	"log/slog"

	"github.com/hyperengineering/grantscan/internal/profile"
	"github.com/hyperengineering/grantscan/internal/types"
)

// Summarizer generates a summary for one scan.
type Summarizer interface {
	Summarize(ctx context.Context, in Input) (string, error)
	ModelName() string
}

// Input is everything a summary is written from.
type Input struct {
	Profile    profile.Profile
	Matches    []types.GrantMatch
	TotalValue float64
}

// InputFor builds the summary input of a scan response.
func InputFor(p profile.Profile, resp *types.ScanResponse) Input {
	in := Input{Profile: p}
	if resp != nil {
		in.Matches = resp.Matches()
		in.TotalValue = resp.TotalPotentialValue
	}
	return in
}

// Writer picks between the configured summarizer and the template.
type Writer struct {
	summarizer Summarizer
	logger     *slog.Logger
}

// NewWriter creates a Writer. A nil summarizer always uses the template.
func NewWriter(s Summarizer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{summarizer: s, logger: logger}
}

// Enabled reports whether a model is configured.
func (w *Writer) Enabled() bool {
	return w.summarizer != nil
}

// Write returns a summary for in. It never fails.
func (w *Writer) Write(ctx context.Context, in Input) string {
	if w.summarizer == nil {
		return Fallback(in)
	}

	text, err := w.summarizer.Summarize(ctx, in)
	if err != nil {
		w.logger.Warn("summary generation failed, using template",
			"model", w.summarizer.ModelName(),
			"error", err,
		)
		return Fallback(in)
	}
	return text
}

// Fill sets resp.Summary when the service returned none. It returns
// true when a summary was written.
func (w *Writer) Fill(ctx context.Context, p profile.Profile, resp *types.ScanResponse) bool {
	if resp == nil || resp.Summary != "" {
		return false
	}
	resp.Summary = w.Write(ctx, InputFor(p, resp))
	return true
}
