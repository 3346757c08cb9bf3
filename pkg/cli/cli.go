package cli

import (
	"context"
	"errors"
	"io"

	"github.com/m-mizutani/curator/pkg/usecase/curate"
	"github.com/m-mizutani/curator/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	ExitOK      = 0
	ExitRuntime = 1
	ExitConfig  = 2
	ExitNoInput = 3
)

type Error struct {
	Code    int
	Message string
}

type Option func(*cli.Command)

// WithWriter replaces stdout, mainly for tests
func WithWriter(w io.Writer) Option {
	return func(cmd *cli.Command) {
		cmd.Writer = w
	}
}

// WithErrWriter replaces stderr, which receives logs and progress
func WithErrWriter(w io.Writer) Option {
	return func(cmd *cli.Command) {
		cmd.ErrWriter = w
	}
}

func Run(ctx context.Context, argv []string, opts ...Option) *Error {
	cmd := newRootCommand()
	for _, opt := range opts {
		opt(cmd)
	}

	if err := cmd.Run(ctx, argv); err != nil {
		code := exitCode(err)
		if code == ExitNoInput {
			logging.Default().Warn("nothing to do", "error", err)
		} else {
			logging.Default().Error("curator failed", "error", err)
		}
		return &Error{
			Code:    code,
			Message: err.Error(),
		}
	}

	return nil
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errConfig):
		return ExitConfig
	case errors.Is(err, curate.ErrNoAssets):
		return ExitNoInput
	default:
		return ExitRuntime
	}
}

// newRootCommand runs the pipeline itself. Subcommands are utilities only, so
// pipeline flags have exactly one owner.
func newRootCommand() *cli.Command {
	cmd := curateCommand()
	cmd.Commands = []*cli.Command{
		schemaCommand(),
	}
	return cmd
}
