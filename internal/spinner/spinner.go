package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const frameInterval = 80 * time.Millisecond

// Start displays an animated spinner with the given message on w.
// Call the returned function to stop the spinner and clear the line.
func Start(w io.Writer, message string) (stop func()) {
	return run(w, func(frame string) string {
		return fmt.Sprintf("%s %s", frame, message)
	})
}

// StartCount displays an animated spinner with a live done/total counter
// after the message. The returned tick advances the counter by one; stop
// halts the animation and clears the line.
func StartCount(w io.Writer, message string, total int) (tick, stop func()) {
	var done atomic.Int64
	stop = run(w, func(frame string) string {
		return fmt.Sprintf("%s %s %d/%d", frame, message, done.Load(), total)
	})
	return func() { done.Add(1) }, stop
}

func run(w io.Writer, render func(frame string) string) (stop func()) {
	done := make(chan struct{})
	cleared := make(chan struct{})
	var stopOnce sync.Once
	go func() {
		i := 0
		width := 0
		for {
			select {
			case <-done:
				fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", width)) //nolint:errcheck
				close(cleared)
				return
			case <-time.After(frameInterval):
				line := render(frames[i%len(frames)])
				// Terminal cells, not bytes: the braille frames are
				// three bytes but one cell wide.
				if lw := runewidth.StringWidth(line); lw > width {
					width = lw
				}
				fmt.Fprintf(w, "\r%s", line) //nolint:errcheck
				i++
			}
		}
	}()
	return func() {
		stopOnce.Do(func() {
			close(done)
		})
		<-cleared
	}
}
