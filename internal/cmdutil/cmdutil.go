// Package cmdutil holds functionality to run artifexctl via cobra. That
// includes flag parsing and configuration of components common to all
// subcommands.
package cmdutil

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/pflag"

	"github.com/artifex-pm/artifexctl/internal/config"
	"github.com/artifex-pm/artifexctl/internal/ui"
)

// Helper is a struct used to hold configuration values passed via flag, env
// vars, etc. It is not intended for direct use by commands; it drives the
// creation of CmdBase, which is then used by the commands themselves.
type Helper struct {
	// Version is the version of artifexctl that is currently executing.
	Version string

	forceColor bool
	noColor    bool

	cleanupsMu sync.Mutex
	cleanups   []io.Closer
}

// NewHelper returns a new helper instance to hold configuration values for
// the root command.
func NewHelper(version string) *Helper {
	return &Helper{Version: version}
}

// RegisterCleanup saves a function to be run after execution, even if the
// command that runs returns an error.
func (h *Helper) RegisterCleanup(cleanup io.Closer) {
	h.cleanupsMu.Lock()
	defer h.cleanupsMu.Unlock()
	h.cleanups = append(h.cleanups, cleanup)
}

// Cleanup runs the registered cleanup handlers.
func (h *Helper) Cleanup(flags *pflag.FlagSet) {
	h.cleanupsMu.Lock()
	defer h.cleanupsMu.Unlock()
	var terminal cli.Ui
	for _, cleanup := range h.cleanups {
		if err := cleanup.Close(); err != nil {
			if terminal == nil {
				terminal = h.getUI(flags)
			}
			terminal.Warn(fmt.Sprintf("failed cleanup: %v", err))
		}
	}
}

func (h *Helper) getUI(flags *pflag.FlagSet) cli.Ui {
	colorMode := ui.GetColorModeFromEnv()
	if flags != nil {
		if flags.Changed("no-color") && h.noColor {
			colorMode = ui.ColorModeSuppressed
		}
		if flags.Changed("color") && h.forceColor {
			colorMode = ui.ColorModeForced
		}
	}
	return ui.BuildColoredUi(colorMode)
}

// AddFlags adds common flags to the given flagset and binds them to this
// instance of Helper.
func (h *Helper) AddFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&h.forceColor, "color", false, "force color usage in the terminal")
	flags.BoolVar(&h.noColor, "no-color", false, "suppress color usage in the terminal")
	config.AddFlags(flags)
}

// GetCmdBase resolves a Config from flags and builds the CmdBase shared by
// every subcommand.
func (h *Helper) GetCmdBase(flags *pflag.FlagSet) (*CmdBase, error) {
	terminal := h.getUI(flags)

	cfg, err := config.Load(flags, h.Version)
	if err != nil {
		return nil, err
	}

	return &CmdBase{
		UI:     terminal,
		Logger: cfg.Logger,
		Config: cfg,
	}, nil
}

// CmdBase encompasses configured components common to all commands.
type CmdBase struct {
	UI     cli.Ui
	Logger hclog.Logger
	Config *config.Config
}

// LogError prints an error to the UI.
func (b *CmdBase) LogError(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	b.Logger.Error("error", err)
	b.UI.Error(fmt.Sprintf("%s%s", ui.ErrorPrefix, color.RedString(" %v", err)))
}

// LogWarning logs an error and outputs it to the UI.
func (b *CmdBase) LogWarning(prefix string, err error) {
	b.Logger.Warn(prefix, "warning", err)
	if prefix != "" {
		prefix = " " + prefix + ": "
	}
	b.UI.Warn(fmt.Sprintf("%s%s%s", ui.WarningPrefix, prefix, color.YellowString(" %v", err)))
}

// LogInfo logs a message and outputs it to the UI.
func (b *CmdBase) LogInfo(msg string) {
	b.Logger.Info(msg)
	b.UI.Info(fmt.Sprintf("%s%s", ui.InfoPrefix, color.WhiteString(" %v", msg)))
}
