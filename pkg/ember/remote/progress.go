// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/emberscm/ember/modules/strengthen"
)

// barProgress renders one transfer (fetch or push) as a terminal progress
// bar, the same mpb/decor combination the teacher's transfer driver uses
// for object transfer reporting.
type barProgress struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

// NewBarProgress returns a Progress that draws a live bar to stderr when
// stderr is a terminal, and Noop otherwise — matching the teacher's
// isatty-gated decision to suppress bars when output is redirected.
func NewBarProgress(task string) Progress {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return Noop
	}
	p := mpb.New(mpb.WithOutput(os.Stderr), mpb.WithAutoRefresh())
	bar := p.AddBar(0,
		mpb.BarStyle().Filler(ansi.Color("#", "green")).Padding(" "),
		mpb.PrependDecorators(
			decor.Name(task, decor.WC{W: len(task), C: decor.DindentRight}),
			decor.Any(func(s decor.Statistics) string {
				return fmt.Sprintf("%s / %s", strengthen.FormatSize(s.Current), strengthen.FormatSize(s.Total))
			}, decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.EwmaETA(decor.ET_STYLE_GO, 30), "done"),
		),
	)
	return &barProgress{p: p, bar: bar}
}

func (b *barProgress) SetTotal(total int) { b.bar.SetTotal(int64(total), false) }
func (b *barProgress) Advance(n int)      { b.bar.IncrBy(n) }
func (b *barProgress) Done() {
	b.bar.SetTotal(-1, true)
	b.p.Wait()
}
