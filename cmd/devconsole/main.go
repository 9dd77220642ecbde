package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"strings"

	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/config"
	"github.com/tomek7667/devconsole/internal/drill"
	"github.com/tomek7667/devconsole/internal/http"
	"github.com/tomek7667/devconsole/internal/logging"
	"github.com/tomek7667/devconsole/internal/rescache"
	"github.com/tomek7667/devconsole/internal/tui"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	config.LoadDotEnv()

	app := &cli.App{
		Name:        "devconsole",
		Description: "local developer console: installed tools, listening ports, processes, caches, disk usage and config files",
		Usage:       "serve the dashboard or use one of the subcommands",
		Version:     appVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				EnvVars: []string{"DEVCONSOLE_HOST"},
				Usage:   "address to listen on (overrides server.host); anything but loopback exposes the API",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				EnvVars: []string{"PORT"},
				Usage:   "HTTP port (overrides server.port)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"DEVCONSOLE_CONFIG"},
				Usage:   "path to the YAML config file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"DEVCONSOLE_LOG_LEVEL"},
				Usage:   "debug, info, warn or error (overrides log.level)",
			},
			&cli.StringFlag{
				Name:    "backend",
				EnvVars: []string{"DEVCONSOLE_BACKEND"},
				Usage:   `"local" or the URL of a devconsole server to drive remotely`,
			},
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdDisk(),
			cmdInvoke(),
			cmdCheckUpdate(),
			cmdUpdate(),
			cmdVersion(),
		},
		CommandNotFound: func(c *cli.Context, command string) {
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
			cli.ShowAppHelpAndExit(c, 1)
		},
		Action:       serve,
		BashComplete: cli.ShowCompletions,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// env is what every subcommand needs: the effective config, a logger and
// the backend commands go through.
type env struct {
	cfg config.Config
	log *zap.Logger
	inv backend.Invoker
}

func setup(c *cli.Context, quiet bool) (*env, error) {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("host") {
		cfg.Server.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if b := c.String("backend"); b != "" {
		if b == config.BackendLocal {
			cfg.Backend.Mode = config.BackendLocal
		} else {
			cfg.Backend.Mode = config.BackendRemote
			cfg.Backend.URL = b
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if quiet {
		logging.Set(zap.NewNop())
	} else if err := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, OutputPath: "stderr"}); err != nil {
		return nil, fmt.Errorf("failed to init logging: %w", err)
	}
	logger := logging.L()

	var inv backend.Invoker
	switch cfg.Backend.Mode {
	case config.BackendRemote:
		inv, err = backend.NewRemote(cfg.Backend.URL, cfg.Backend.Timeout, logger)
	default:
		inv, err = backend.NewLocal(backend.Options{
			ConfigDirs:     cfg.ConfigDirs,
			Templates:      cfg.Templates,
			Version:        releaseVersion(),
			UpdateOwner:    cfg.Update.Owner,
			UpdateRepo:     cfg.Update.Repository,
			CommandTimeout: cfg.Backend.Timeout,
			Logger:         logger,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", cfg.Backend.Mode, err)
	}
	logger.Debug("backend ready", zap.String("mode", cfg.Backend.Mode))
	return &env{cfg: cfg, log: logger, inv: inv}, nil
}

func cmdServe() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the dashboard and the JSON API (default)",
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	e, err := setup(c, false)
	if err != nil {
		return err
	}
	defer logging.Sync()

	cache := rescache.New(e.inv, rescache.Options{
		DefaultTTL: e.cfg.Cache.DefaultTTL,
		TTL:        e.cfg.CacheTTLs(),
		Logger:     e.log,
	})
	loading := rescache.NewLoading()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	if e.cfg.Cache.AutoRefresh > 0 {
		go cache.AutoRefresh(ctx, e.cfg.Cache.AutoRefresh, loading)
	}

	server := http.New(http.Options{
		Host:         e.cfg.Server.Host,
		Port:         e.cfg.Server.Port,
		Invoker:      e.inv,
		Cache:        cache,
		Loading:      loading,
		SessionLimit: e.cfg.Server.SessionLimit,
		SessionTTL:   e.cfg.Server.SessionTTL,
		Version:      appVersion(),
		Logger:       e.log,
	})
	return server.Serve(ctx)
}

func cmdDisk() *cli.Command {
	return &cli.Command{
		Name:  "disk",
		Usage: "Explore disk usage in the terminal",
		Action: func(c *cli.Context) error {
			e, err := setup(c, true)
			if err != nil {
				return err
			}
			return tui.Run(c.Context, drill.BackendFetcher{Invoker: e.inv})
		},
	}
}

func cmdInvoke() *cli.Command {
	return &cli.Command{
		Name:      "invoke",
		Usage:     "Run one backend command and print its JSON result",
		ArgsUsage: "<command> [key=value ...]",
		BashComplete: func(c *cli.Context) {
			for _, cmd := range backend.Commands() {
				fmt.Println(cmd)
			}
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.ShowSubcommandHelp(c)
			}
			cmd, err := backend.ParseCommand(c.Args().First())
			if err != nil {
				return err
			}
			args, err := parseArgs(c.Args().Tail())
			if err != nil {
				return err
			}
			e, err := setup(c, false)
			if err != nil {
				return err
			}
			defer logging.Sync()

			raw, err := e.inv.Invoke(c.Context, cmd, args)
			if err != nil {
				return err
			}
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			out, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

// parseArgs turns key=value pairs into command arguments. Values stay
// strings; the backend converts them where it expects numbers or booleans.
func parseArgs(pairs []string) (backend.Args, error) {
	args := backend.Args{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value", p)
		}
		args[k] = v
	}
	return args, nil
}

func cmdVersion() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version",
		Action: func(c *cli.Context) error {
			fmt.Println(appVersion())
			return nil
		},
	}
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return "unknown"
	}
	return metaFromBuildInfo(bi).String()
}
