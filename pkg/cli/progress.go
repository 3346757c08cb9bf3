package cli

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
)

type spinnerProgress struct {
	spinner *spinner.Spinner
}

func newSpinnerProgress(w io.Writer) *spinnerProgress {
	return &spinnerProgress{
		spinner: spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w)),
	}
}

func (p *spinnerProgress) Start(message string) {
	p.spinner.Suffix = " " + message
	p.spinner.Start()
}

func (p *spinnerProgress) Stop() {
	p.spinner.Stop()
}
