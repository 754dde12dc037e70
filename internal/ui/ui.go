package ui

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/cli"
)

const ansiEscapeStr = "[][[\\]()#;?]*(?:(?:(?:[a-zA-Z\\d]*(?:;[a-zA-Z\\d]*)*)?)|(?:(?:\\d{1,4}(?:;\\d{0,4})*)?[\\dA-PRZcf-ntqry=><~]))"

// IsTTY is true when stdout appears to be a tty
var IsTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

// IsCI is true when we appear to be running in a non-interactive context.
// There is no remote-CI-provider fingerprinting here (no analog in this
// domain): stdout not being a tty, or a non-empty CI env var, is enough
// to decide whether progress bars should render.
var IsCI = !IsTTY || os.Getenv("CI") != ""

var gray = color.New(color.Faint)
var bold = color.New(color.Bold)

// ErrorPrefix is a colored label for error-level output.
var ErrorPrefix = color.New(color.Bold, color.FgRed, color.ReverseVideo).Sprint(" ERROR ")

// WarningPrefix is a colored label for warning-level output.
var WarningPrefix = color.New(color.Bold, color.FgYellow, color.ReverseVideo).Sprint(" WARNING ")

// InfoPrefix is a colored label for info-level output.
var InfoPrefix = color.New(color.Bold, color.FgWhite, color.ReverseVideo).Sprint(" INFO ")

var ansiRegex = regexp.MustCompile(ansiEscapeStr)

// Dim prints out dimmed text.
func Dim(str string) string {
	return gray.Sprint(str)
}

// Bold prints out bold text.
func Bold(str string) string {
	return bold.Sprint(str)
}

type stripAnsiWriter struct {
	wrappedWriter io.Writer
}

func (into *stripAnsiWriter) Write(p []byte) (int, error) {
	n, err := into.wrappedWriter.Write(ansiRegex.ReplaceAll(p, []byte{}))
	if err != nil {
		return n, err
	}
	return len(p), nil
}

// Default returns the default colored ui.
func Default() *cli.ColoredUi {
	return BuildColoredUi(ColorModeUndefined)
}

// BuildColoredUi constructs a cli.Ui honoring the given color mode.
func BuildColoredUi(colorMode ColorMode) *cli.ColoredUi {
	colorMode = applyColorMode(colorMode)

	var outWriter, errWriter io.Writer

	if colorMode == ColorModeSuppressed {
		outWriter = &stripAnsiWriter{wrappedWriter: os.Stdout}
		errWriter = &stripAnsiWriter{wrappedWriter: os.Stderr}
	} else {
		outWriter = os.Stdout
		errWriter = os.Stderr
	}

	return &cli.ColoredUi{
		Ui: &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      outWriter,
			ErrorWriter: errWriter,
		},
		OutputColor: cli.UiColorNone,
		InfoColor:   cli.UiColorNone,
		WarnColor:   cli.UiColor{Code: int(color.FgYellow), Bold: false},
		ErrorColor:  cli.UiColorRed,
	}
}

// Printf is a small convenience wrapper matching the rest of the tree's
// colored-prefix output style.
func Printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
