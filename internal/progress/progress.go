// Package progress renders transfer progress on the terminal. Two renderers
// exist: a single-bar reporter for one-off transfers and a multi-bar batch
// view driven by the event bus.
package progress

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter is the minimal progress surface for a single transfer.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
}

// SingleBar renders one progress bar on stderr.
type SingleBar struct {
	bar *progressbar.ProgressBar
}

func NewSingleBar() *SingleBar {
	return &SingleBar{}
}

func (p *SingleBar) Start(total int64, description string) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (p *SingleBar) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

func (p *SingleBar) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func (p *SingleBar) Error(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
	}
}

// Silent is a reporter that renders nothing.
type Silent struct{}

func (Silent) Start(total int64, description string) {}
func (Silent) Update(current int64)                  {}
func (Silent) Finish()                               {}
func (Silent) Error(err error)                       {}

var (
	_ Reporter = (*SingleBar)(nil)
	_ Reporter = Silent{}
)
