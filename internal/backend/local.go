package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomek7667/devconsole/internal/domain"
	"github.com/tomek7667/devconsole/internal/metrics"
	"go.uber.org/zap"
)

// Runner executes an external program in dir and returns its combined output.
type Runner func(ctx context.Context, dir, name string, args ...string) (string, error)

func execRunner(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			return out.String(), err
		}
		return out.String(), fmt.Errorf("%w: %s", err, msg)
	}
	return out.String(), nil
}

type Options struct {
	// Home is the directory scanned for tools, caches and dotfiles.
	Home string
	// ConfigDirs are scanned for config files in addition to the defaults.
	ConfigDirs []string
	// Templates extend the built-in project templates.
	Templates []domain.ProjectTemplate

	Version     string
	UpdateOwner string
	UpdateRepo  string

	// CommandTimeout bounds every command; zero means no bound.
	CommandTimeout time.Duration

	Runner Runner
	Latest LatestFunc
	Logger *zap.Logger
}

type handlerFunc func(ctx context.Context, args Args) (any, error)

// Local executes commands in-process against the machine it runs on.
type Local struct {
	opts      Options
	run       Runner
	latest    LatestFunc
	log       *zap.Logger
	templates []domain.ProjectTemplate
	handlers  map[Command]handlerFunc
}

func NewLocal(opts Options) (*Local, error) {
	if opts.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		opts.Home = home
	}
	home, err := filepath.Abs(opts.Home)
	if err != nil {
		return nil, fmt.Errorf("failed to make home absolute: %w", err)
	}
	opts.Home = home

	l := &Local{
		opts:      opts,
		run:       opts.Runner,
		latest:    opts.Latest,
		log:       opts.Logger,
		templates: mergeTemplates(builtinTemplates, opts.Templates),
	}
	if l.run == nil {
		l.run = execRunner
	}
	if l.latest == nil {
		l.latest = githubLatest
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	l.handlers = map[Command]handlerFunc{
		CmdScanTools:        l.scanTools,
		CmdScanPorts:        l.scanPorts,
		CmdScanProcesses:    l.scanProcesses,
		CmdScanCaches:       l.scanCaches,
		CmdScanVolumes:      l.scanVolumes,
		CmdScanSystem:       l.scanSystem,
		CmdScanDiskUsage:    l.scanDiskUsage,
		CmdDiskUsageAtPath:  l.diskUsageAtPath,
		CmdScanOrphans:      l.scanOrphans,
		CmdReadConfigFile:   l.readConfigFile,
		CmdWriteConfigFile:  l.writeConfigFile,
		CmdListConfigDirs:   l.listConfigDirs,
		CmdListConfigFiles:  l.listConfigFiles,
		CmdListTemplates:    l.listTemplates,
		CmdCreateProject:    l.createProject,
		CmdCheckUpdate:      l.checkUpdate,
		CmdUninstallPackage: l.uninstallPackage,
		CmdTerminateProcess: l.terminateProcess,
		CmdGetProxyConfigs:  l.getProxyConfigs,
		CmdSetProxyConfig:   l.setProxyConfig,
	}
	return l, nil
}

func (l *Local) Invoke(ctx context.Context, cmd Command, args Args) (json.RawMessage, error) {
	h, ok := l.handlers[cmd]
	if !ok {
		return nil, &CommandError{Command: cmd, Err: ErrUnknownCommand}
	}
	if args == nil {
		args = Args{}
	}
	if l.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.CommandTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := h(ctx, args)
	elapsed := time.Since(start)
	metrics.RecordCommand(string(cmd), elapsed, err)
	if err != nil {
		l.log.Warn("command failed", zap.String("command", string(cmd)), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, &CommandError{Command: cmd, Err: err}
	}
	l.log.Debug("command completed", zap.String("command", string(cmd)), zap.Duration("elapsed", elapsed))

	raw, err := json.Marshal(res)
	if err != nil {
		return nil, &CommandError{Command: cmd, Err: fmt.Errorf("encode result: %w", err)}
	}
	return raw, nil
}

// absPath validates a path argument: it must be absolute and is returned cleaned.
func absPath(args Args, key string) (string, error) {
	p, err := args.String(key)
	if err != nil {
		return "", err
	}
	p = filepath.Clean(p)
	if !filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: %q must be an absolute path", ErrBadArgs, key)
	}
	return p, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
