package handler

import (
	"math"
	"time"

	"lumina-research/internal/synthesis"
)

var synthesisCaptions = []string{
	"Reading your papers...",
	"Connecting key findings...",
	"Looking for common themes...",
	"Drafting the synthesis...",
}

const (
	captionInterval  = 3 * time.Second
	progressHalfLife = 8 * time.Second
	progressCeiling  = 95
)

type synthesisView struct {
	synthesis.Status
	Synthesis string `json:"synthesis"`
	Progress  int    `json:"progress"`
}

// newSynthesisView decorates a status with a display progress value and a
// rotating caption while a run is in flight. Neither is tied to real work.
func newSynthesisView(status synthesis.Status, text string, now time.Time) synthesisView {
	view := synthesisView{Status: status, Synthesis: text}
	switch {
	case status.State == synthesis.StateRunning:
		elapsed := now.Sub(status.StartedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		view.Progress = runningProgress(elapsed)
		view.Caption = synthesisCaptions[int(elapsed/captionInterval)%len(synthesisCaptions)]
	case text != "":
		view.Progress = 100
	}
	return view
}

// runningProgress rises towards progressCeiling and never reaches it.
func runningProgress(elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	frac := 1 - math.Pow(0.5, float64(elapsed)/float64(progressHalfLife))
	p := int(frac * progressCeiling)
	if p >= progressCeiling {
		p = progressCeiling - 1
	}
	return p
}
