package ui

import (
	"fmt"
	"strings"
)

// ProgressBar renders a fraction as a horizontal bar
type ProgressBar struct {
	width      int
	percentage float64
}

// NewProgressBar creates a new progress bar
func NewProgressBar(width int) *ProgressBar {
	return &ProgressBar{width: width}
}

// SetProgress sets the progress percentage (0.0 to 1.0)
func (p *ProgressBar) SetProgress(percentage float64) {
	p.percentage = min(max(percentage, 0), 1)
}

// SetWidth sets the progress bar width
func (p *ProgressBar) SetWidth(width int) {
	p.width = width
}

// Render renders the progress bar
func (p *ProgressBar) Render() string {
	barWidth := max(p.width-8, 10)
	filled := int(float64(barWidth) * p.percentage)

	var b strings.Builder
	b.WriteString(ProgressFullStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(ProgressEmptyStyle.Render(strings.Repeat("░", barWidth-filled)))
	b.WriteString(" ")
	b.WriteString(ValueStyle.Render(fmt.Sprintf("%5.1f%%", p.percentage*100)))
	return b.String()
}

// Spinner is an indeterminate activity indicator
type Spinner struct {
	frame   int
	running bool
}

// Tick advances the animation
func (s *Spinner) Tick() {
	if s.running {
		s.frame = (s.frame + 1) % len(SpinnerChars)
	}
}

// SetRunning starts or stops the animation
func (s *Spinner) SetRunning(running bool) {
	s.running = running
}

// Render renders the current frame
func (s *Spinner) Render() string {
	if !s.running {
		return "✓"
	}
	return SpinnerChars[s.frame]
}
