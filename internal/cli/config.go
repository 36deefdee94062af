package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/actionflow/pkg/actionflow/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with pipeline settings files",
	}
	cmd.AddCommand(newConfigCheckCommand(rootOpts))
	return cmd
}

func newConfigCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a settings file and print the effective settings",
		Long: `Validate a YAML or JSON settings file.

Checks the document against the settings schema, compiles every
"when" filter and prints the settings a pipeline would run with.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigCheck(rootOpts, args[0], cmd)
		},
	}
}

func runConfigCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	f.VerboseLog("loading %s", path)

	s, err := config.LoadFile(path)
	if err != nil {
		if outErr := f.Error("invalid_settings", err.Error()); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "invalid settings", err)
	}
	return f.Success(newSettingsView(s))
}

// settingsView is the printable form of config.Settings.
type settingsView struct {
	WarnTimeout string               `json:"warn_timeout"`
	StrictTypes bool                 `json:"strict_types"`
	DeadLetter  deadLetterView       `json:"dead_letter"`
	Logics      map[string]logicView `json:"logics,omitempty"`
}

type deadLetterView struct {
	Driver  string `json:"driver,omitempty"`
	Path    string `json:"path,omitempty"`
	MaxSize int    `json:"max_size,omitempty"`
}

type logicView struct {
	Latest      *bool  `json:"latest,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
	WarnTimeout string `json:"warn_timeout,omitempty"`
	When        string `json:"when,omitempty"`
}

func newSettingsView(s config.Settings) settingsView {
	v := settingsView{
		WarnTimeout: s.WarnTimeout.String(),
		StrictTypes: s.StrictTypes,
		DeadLetter: deadLetterView{
			Driver:  s.DeadLetter.Driver,
			Path:    s.DeadLetter.Path,
			MaxSize: s.DeadLetter.MaxSize,
		},
	}
	if len(s.Logics) > 0 {
		v.Logics = make(map[string]logicView, len(s.Logics))
	}
	for name, ls := range s.Logics {
		lv := logicView{Latest: ls.Latest, Disabled: ls.Disabled}
		if ls.WarnTimeout != 0 {
			lv.WarnTimeout = ls.WarnTimeout.String()
		}
		if ls.When != nil {
			lv.When = ls.When.String()
		}
		v.Logics[name] = lv
	}
	return v
}

func (v settingsView) WriteText(w io.Writer) error {
	var b strings.Builder
	b.WriteString("settings: valid\n")
	fmt.Fprintf(&b, "warn_timeout: %s\n", v.WarnTimeout)
	fmt.Fprintf(&b, "strict_types: %t\n", v.StrictTypes)

	switch v.DeadLetter.Driver {
	case config.DriverNone:
		b.WriteString("dead_letter: none\n")
	case config.DriverSQLite:
		fmt.Fprintf(&b, "dead_letter: sqlite (%s)\n", v.DeadLetter.Path)
	default:
		if v.DeadLetter.MaxSize > 0 {
			fmt.Fprintf(&b, "dead_letter: %s (max %d)\n", v.DeadLetter.Driver, v.DeadLetter.MaxSize)
		} else {
			fmt.Fprintf(&b, "dead_letter: %s\n", v.DeadLetter.Driver)
		}
	}

	if len(v.Logics) > 0 {
		b.WriteString("logics:\n")
		names := make([]string, 0, len(v.Logics))
		for name := range v.Logics {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %s\n", name, v.Logics[name].summary())
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (lv logicView) summary() string {
	if lv.Disabled {
		return "disabled"
	}
	var parts []string
	if lv.Latest != nil {
		parts = append(parts, fmt.Sprintf("latest=%t", *lv.Latest))
	}
	if lv.WarnTimeout != "" {
		parts = append(parts, "warn_timeout="+lv.WarnTimeout)
	}
	if lv.When != "" {
		parts = append(parts, fmt.Sprintf("when=%q", lv.When))
	}
	if len(parts) == 0 {
		return "(defaults)"
	}
	return strings.Join(parts, " ")
}
