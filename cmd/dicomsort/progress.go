package main

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// startProgress renders percentages received on progress until the channel
// is closed. The returned func blocks until rendering has finished.
func startProgress(w io.Writer, progress <-chan int) func() {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Sorting"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for percent := range progress {
			_ = bar.Set(percent)
		}
		_ = bar.Finish()
	}()
	return func() { <-done }
}
