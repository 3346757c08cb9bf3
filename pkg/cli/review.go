package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/curator/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// readlineReviewer asks for a new name for every event on the terminal
type readlineReviewer struct {
	rl     *readline.Instance
	out    io.Writer
	closed bool
}

func newReadlineReviewer(in io.ReadCloser, out io.Writer) (*readlineReviewer, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "> ",
		Stdin:  in,
		Stdout: out,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize readline")
	}
	return &readlineReviewer{rl: rl, out: out}, nil
}

func (r *readlineReviewer) Review(ctx context.Context, group *model.EventGroup, result *model.AnalysisResult) (string, error) {
	if r.closed {
		return "", nil
	}

	best := group.Assets[result.BestIndex]
	fmt.Fprintf(r.out, "\n%s, %d photo(s) from %s, best %s (score %d)\n",
		result.EventName, group.Len(), group.Start().Format("2006-01-02 15:04"),
		best.Name(), result.ScoreAt(result.BestIndex))
	if result.Reason != "" {
		fmt.Fprintf(r.out, "  %s\n", result.Reason)
	}
	r.rl.SetPrompt(fmt.Sprintf("Event name [%s]: ", result.EventName))

	line, err := r.rl.Readline()
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		return "", goerr.New("review interrupted")
	case errors.Is(err, io.EOF):
		// keep every remaining name
		r.closed = true
		return "", nil
	case err != nil:
		return "", goerr.Wrap(err, "failed to read event name")
	}

	return strings.TrimSpace(line), nil
}

func (r *readlineReviewer) Close() error {
	return r.rl.Close()
}
