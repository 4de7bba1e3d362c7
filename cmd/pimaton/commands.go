package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cjeanneret/pimaton/internal/config"
	"github.com/cjeanneret/pimaton/internal/debug"
	"github.com/cjeanneret/pimaton/internal/hw/input"
	"github.com/cjeanneret/pimaton/internal/logic/booth"
)

const defaultWebPort = 8080

type runOptions struct {
	configPath string
	envFile    string
	single     bool
	debugLevel int
	web        webPortFlag
}

var runOpts = runOptions{web: webPortFlag{defaultPort: defaultWebPort}}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the photo booth loop",
	Long: `Run waits for a trigger, takes the pictures, composes the final image,
prints and syncs it, then waits for the next trigger.

SIGINT or SIGTERM stop the loop after the current step.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runBooth(ctx, runOpts)
	},
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Load and validate a configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(runOpts.configPath, runOpts.envFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d pictures, input %s, print %t, sync %t, web %t)\n",
			runOpts.configPath, cfg.Picamera.NumberOfPicturesToTake, cfg.Input.Type,
			cfg.PrintEnabled(), cfg.SyncEnabled(), cfg.WebEnabled())
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, checkConfigCmd} {
		cmd.Flags().StringVarP(&runOpts.configPath, "config", "c", filepath.Join("configs", "default.yaml"), "path to config file")
		cmd.Flags().StringVar(&runOpts.envFile, "env-file", "", "dotenv file loaded before the config is expanded")
	}

	runCmd.Flags().BoolVar(&runOpts.single, "single", false, "run a single session and exit (overrides pimaton.single_loop)")
	runCmd.Flags().IntVar(&runOpts.debugLevel, "debug-level", -1, "0=off 1=info 2=live 3=verbose 4=trace (default from config)")
	webFlag := runCmd.Flags().VarPF(&runOpts.web, "web", "", "start the web panel; --web for port 8080, --web=8980 for a custom port")
	webFlag.NoOptDefVal = strconv.Itoa(defaultWebPort)
}

// loadConfig loads the optional dotenv file, then the YAML configuration.
func loadConfig(path, envFile string) (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func runBooth(ctx context.Context, opts runOptions) error {
	cfg, err := loadConfig(opts.configPath, opts.envFile)
	if err != nil {
		return err
	}
	applyFlags(cfg, opts)

	debug.Init(cfg.Pimaton.DebugLevel)
	defer debug.Sync()
	debug.Section("Initialization")
	debug.Value("Config path", opts.configPath)
	debug.Value("Debug level", cfg.Pimaton.DebugLevel)

	app, err := newApp(cfg)
	if err != nil {
		debug.Error(err)
		return err
	}
	defer app.Close()

	err = app.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, input.ErrInterrupted):
		debug.Info("Pimaton stopped")
		return nil
	default:
		debug.Error(err)
		return fmt.Errorf("%s error: %w", booth.Kind(err), err)
	}
}

// applyFlags lets command line flags override the configuration.
func applyFlags(cfg *config.Config, opts runOptions) {
	if opts.single {
		cfg.Pimaton.SingleLoop = true
	}
	if opts.debugLevel >= 0 {
		cfg.Pimaton.DebugLevel = opts.debugLevel
	}
	if port := opts.web.port(); port > 0 {
		if cfg.Web == nil {
			cfg.Web = &config.WebConfig{Name: "Pimaton"}
		}
		cfg.Web.Enabled = true
		cfg.Web.Port = port
	}
}
