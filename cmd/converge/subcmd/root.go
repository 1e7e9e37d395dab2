package subcmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/michaelquigley/figlet/figletlib"
	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/edgeops/converge/kernel/model"
)

// Exit codes for calling scripts: 0 converged / no divergence, 1 validation
// or usage error, 2 partially failed.
const (
	exitOK              = 0
	exitValidationError = 1
	exitPartiallyFailed = 2
)

// errPartiallyFailed marks a completed run that did not fully converge.
var errPartiallyFailed = errors.New("reconciliation partially failed")

var verbose bool

func init() {
	pfxlog.GlobalInit(logrus.InfoLevel, pfxlog.DefaultOptions().SetTrimPrefix("github.com/edgeops/"))
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

var RootCmd = &cobra.Command{
	Use:   "converge",
	Short: "Declarative deployment-state reconciler",
	Long: `converge reads a desired-state document describing DNS records, service
units, proxy routes, certificate bindings and environment files, probes the
live environment, and drives it to match.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func Execute() {
	banner()
	if err := RootCmd.Execute(); err != nil {
		pfxlog.Logger().Error(err)
		if errors.Is(err, errPartiallyFailed) {
			os.Exit(exitPartiallyFailed)
		}
		os.Exit(exitValidationError)
	}
	os.Exit(exitOK)
}

// banner stays off non-interactive streams; the mcp-server command owns
// stdout for its protocol.
func banner() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}
	fontsDir := os.Getenv("CONVERGE_FIGLET_FONTS")
	if fontsDir == "" {
		return
	}
	font, err := figletlib.GetFontByName(fontsDir, "standard")
	if err != nil {
		return
	}
	figletlib.FPrintMsg(os.Stdout, "converge", font, 80, font.Settings(), "left")
	fmt.Println()
}

// tryLoadConfig loads the per-user config, falling back to defaults when no
// file exists.
func tryLoadConfig() *model.Config {
	cfgDir, err := model.ConfigDir()
	if err != nil {
		return model.DefaultConfig()
	}
	configFile := filepath.Join(cfgDir, model.ConfigFileName)
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return model.DefaultConfig()
	}
	cfg, err := model.LoadConfig(configFile)
	if err != nil {
		pfxlog.Logger().WithError(err).Warnf("ignoring unreadable config [%s]", configFile)
		return model.DefaultConfig()
	}
	return cfg
}
