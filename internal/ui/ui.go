package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jobbridge/ingest/internal/models"
	"github.com/muesli/termenv"
)

type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ANSI palette indexes
const (
	colorRed    = "1"
	colorGreen  = "2"
	colorYellow = "3"
	colorBlue   = "4"
)

type UI struct {
	Out          io.Writer
	Err          io.Writer
	Output       *termenv.Output
	ErrOutput    *termenv.Output
	ColorEnabled bool
}

func New(out io.Writer, err io.Writer, mode ColorMode, disableColor bool) *UI {
	output := termenv.NewOutput(out)
	errOutput := termenv.NewOutput(err)

	return &UI{
		Out:          out,
		Err:          err,
		Output:       output,
		ErrOutput:    errOutput,
		ColorEnabled: shouldEnableColor(output, mode, disableColor),
	}
}

func shouldEnableColor(output *termenv.Output, mode ColorMode, disableColor bool) bool {
	if disableColor {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}

	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return output.ColorProfile() != termenv.Ascii
	}
}

func (u *UI) Errorf(format string, args ...any) {
	u.println(u.Err, u.ErrOutput, colorRed, format, args...)
}

func (u *UI) Warnf(format string, args ...any) {
	u.println(u.Err, u.ErrOutput, colorYellow, format, args...)
}

func (u *UI) Infof(format string, args ...any) {
	u.println(u.Out, u.Output, colorBlue, format, args...)
}

func (u *UI) Successf(format string, args ...any) {
	u.println(u.Out, u.Output, colorGreen, format, args...)
}

func (u *UI) println(w io.Writer, output *termenv.Output, color string, format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	if u.ColorEnabled {
		msg = output.String(msg).Foreground(output.Color(color)).String()
	}
	fmt.Fprintln(w, msg)
}

// Report prints a one-line run summary, colored by outcome.
func (u *UI) Report(r models.RunReport) {
	summary := FormatReport(r)
	switch {
	case r.Error != "":
		u.Errorf("%s", summary)
	case r.Canceled || r.Failed > 0:
		u.Warnf("%s", summary)
	default:
		u.Successf("%s", summary)
	}
}

func FormatReport(r models.RunReport) string {
	line := fmt.Sprintf("%s: saved %d of %d fetched (%d duplicate, %d invalid, %d failed) in %s",
		r.Source, r.Saved, r.Fetched, r.Duplicates, r.Invalid, r.Failed, r.Duration().Round(time.Millisecond))
	switch {
	case r.Error != "":
		line += ": " + r.Error
	case r.Canceled:
		line += ", canceled"
	}
	return line
}

func NormalizeColorMode(value string) ColorMode {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case string(ColorAlways):
		return ColorAlways
	case string(ColorNever):
		return ColorNever
	default:
		return ColorAuto
	}
}
