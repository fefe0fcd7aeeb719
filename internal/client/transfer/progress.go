// Package transfer implements the client-side upload and download
// orchestration on top of the transport client and the crypto codecs.
package transfer

import (
	"os"

	"github.com/schollz/progressbar/v3"
)

// Status is the terminal state of a transfer as seen by progress consumers.
// Cancelled is deliberately distinct from Failed so UIs do not present a
// user-initiated cancellation as an error.
type Status int

const (
	StatusFinished Status = iota
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Reporter receives transfer progress. Progress is called with strictly
// increasing cumulative byte counts, at least on chunk boundaries and never
// twice with the same value. Done is called exactly once.
type Reporter interface {
	Progress(transferred, total int64)
	Done(status Status, err error)
}

type nopReporter struct{}

func (nopReporter) Progress(int64, int64) {}
func (nopReporter) Done(Status, error)    {}

// NopReporter discards all progress.
var NopReporter Reporter = nopReporter{}

// BarReporter renders transfer progress as a terminal progress bar.
type BarReporter struct {
	bar *progressbar.ProgressBar
}

// NewBarReporter creates a byte-count progress bar with the given label.
func NewBarReporter(description string, total int64) *BarReporter {
	return &BarReporter{
		bar: progressbar.NewOptions64(total,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (r *BarReporter) Progress(transferred, total int64) {
	_ = r.bar.Set64(transferred)
}

func (r *BarReporter) Done(status Status, err error) {
	if status == StatusFinished {
		_ = r.bar.Finish()
		return
	}
	_ = r.bar.Exit()
}
