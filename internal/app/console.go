package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/vaani/internal/orchestrator"
	"github.com/MrWong99/vaani/internal/session"
	"github.com/MrWong99/vaani/pkg/audio"
)

const (
	greeting    = "Start chatting with Bharat Bhai (say 'exit' or 'quit' to end the conversation)."
	exitMessage = "Exiting conversation."
)

// maxRecordFailures ends the voice loop after this many consecutive device
// errors.
const maxRecordFailures = 3

// RunVoice records an utterance, answers it, plays the reply and repeats
// until the user says an exit keyword or ctx is cancelled. A failed turn is
// reported and the loop keeps listening.
func (a *App) RunVoice(ctx context.Context) error {
	if a.recorder == nil {
		return errors.New("app: voice mode needs a recorder")
	}
	st := a.store.New()
	fmt.Fprintln(a.out, greeting)

	failures := 0
	for ctx.Err() == nil {
		fmt.Fprintln(a.out, "\nListening... (speak now; recording stops when you pause)")
		clip, err := a.recorder.Record(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, audio.ErrNoSpeech):
			failures = 0
			continue
		case err != nil:
			failures++
			fmt.Fprintf(a.out, "Recording failed: %v\n", err)
			if failures >= maxRecordFailures {
				return fmt.Errorf("app: record: %w", err)
			}
			continue
		}
		failures = 0
		if a.converse(ctx, st, orchestrator.Input{Audio: clip}) {
			return nil
		}
	}
	return nil
}

// RunText answers typed lines until an exit keyword, end of input, or ctx
// cancellation.
func (a *App) RunText(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	st := a.store.New()
	fmt.Fprintln(a.out, greeting)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		fmt.Fprint(a.out, "\nYou: ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(a.out)
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("app: read input: %w", err)
					}
				default:
				}
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if a.converse(ctx, st, orchestrator.Input{Text: line}) {
				return nil
			}
		}
	}
}

// converse runs one turn on st and prints its outcome. It reports whether
// the conversation has ended.
func (a *App) converse(ctx context.Context, st *session.State, in orchestrator.Input) bool {
	st.Lock()
	res, err := a.orch.RunTurn(ctx, in, st)
	st.Unlock()

	if res != nil && !in.Audio.Empty() && res.Transcript != "" {
		fmt.Fprintf(a.out, "Transcribed: %s\n", res.Transcript)
	}
	switch {
	case errors.Is(err, orchestrator.ErrEmptyTranscript):
		fmt.Fprintln(a.out, "Sorry, I didn't catch that.")
		return false
	case err == nil && res.Exit:
		fmt.Fprintln(a.out, exitMessage)
		return true
	}

	if res != nil && res.Reply != "" {
		fmt.Fprintf(a.out, "Language: %s (%s)\n", res.Language.Code, res.Language.Source)
		cached := ""
		if res.CacheHit {
			cached = " (cached)"
		}
		fmt.Fprintf(a.out, "Bot%s: %s\n", cached, res.Reply)
	}
	if err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
		return false
	}

	if a.player != nil && !res.Audio.Empty() {
		if err := a.player.Play(ctx, res.Audio); err != nil && ctx.Err() == nil {
			fmt.Fprintf(a.out, "Playback failed: %v\n", err)
		}
	}
	return false
}
