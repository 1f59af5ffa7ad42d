package analysis

import (
	"context"
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progressBar is a single mpb bar. A nil *progressBar is valid and silent.
type progressBar struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

// newProgressBar returns a bar of total steps rendered to w, or nil when w is
// nil or there is nothing to do.
func newProgressBar(ctx context.Context, w io.Writer, name string, total int) *progressBar {
	if w == nil || total <= 0 {
		return nil
	}
	p := mpb.NewWithContext(ctx, mpb.WithOutput(w), mpb.WithWidth(64))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name+" "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done"),
		),
	)
	return &progressBar{p: p, bar: bar}
}

// Increment advances the bar by one step.
func (pb *progressBar) Increment() {
	if pb == nil {
		return
	}
	pb.bar.Increment()
}

// Done stops rendering. An unfinished bar is aborted and left on screen.
func (pb *progressBar) Done() {
	if pb == nil {
		return
	}
	if !pb.bar.Completed() {
		pb.bar.Abort(false)
	}
	pb.p.Wait()
}
