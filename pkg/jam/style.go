package jam

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// StyleListener watches an input stream for style-change requests: a line
// containing just "s" (or "style") prompts for a free-text phrase, and the
// next non-empty line becomes the new style directive. It runs concurrently
// with the session loop and communicates only through the apply callback, so
// an in-flight cycle is never disturbed.
type StyleListener struct {
	in    io.Reader
	out   io.Writer
	apply func(string)
	log   *Logger
}

func NewStyleListener(in io.Reader, out io.Writer, apply func(string)) *StyleListener {
	return &StyleListener{
		in:    in,
		out:   out,
		apply: apply,
		log:   GetGlobalLogger().WithComponent("StyleListener"),
	}
}

// Run reads lines until the input closes or the context is done.
func (l *StyleListener) Run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(l.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	awaitingPhrase := false
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if awaitingPhrase {
				awaitingPhrase = false
				if line == "" {
					fmt.Fprintln(l.out, "style unchanged")
					continue
				}
				l.apply(line)
				fmt.Fprintf(l.out, "playing style set to: %s\n", line)
				continue
			}
			switch strings.ToLower(line) {
			case "s", "style":
				fmt.Fprintln(l.out, "describe your playing style:")
				awaitingPhrase = true
			}
		}
	}
}
