package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/moffa90/go-stk500/bootloader"
)

// progressBar renders upload progress on a single terminal line.
type progressBar struct {
	w     io.Writer
	width int
	phase string
}

func newProgressBar(w io.Writer, width int) *progressBar {
	return &progressBar{w: w, width: width}
}

func (pb *progressBar) render(percentage int) string {
	filled := pb.width * percentage / 100
	if filled > pb.width {
		filled = pb.width
	}
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(".", pb.width-filled), percentage)
}

// update is a bootloader.ProgressCallback.
func (pb *progressBar) update(p bootloader.Progress) {
	if p.Phase != pb.phase && pb.phase != "" {
		fmt.Fprintln(pb.w)
	}
	pb.phase = p.Phase

	fmt.Fprintf(pb.w, "\r%-9s %s  section %d/%d  %s",
		p.Phase, pb.render(p.Percentage), p.Section, p.Sections, p.ElapsedTime.Round(time.Millisecond))

	if p.Percentage == 100 {
		fmt.Fprintln(pb.w)
	}
}
