// Package backend is the single request/response command interface between
// the console and the privileged system-inspection side. Every command takes
// named arguments and returns one JSON-encoded result or one error.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CmdScanTools        Command = "scan_tools"
	CmdScanPorts        Command = "scan_ports"
	CmdScanProcesses    Command = "scan_processes"
	CmdScanCaches       Command = "scan_caches"
	CmdScanVolumes      Command = "scan_volumes"
	CmdScanSystem       Command = "scan_system"
	CmdScanDiskUsage    Command = "scan_disk_usage"
	CmdDiskUsageAtPath  Command = "disk_usage_at_path"
	CmdScanOrphans      Command = "scan_orphan_dependencies"
	CmdReadConfigFile   Command = "read_config_file"
	CmdWriteConfigFile  Command = "write_config_file"
	CmdListConfigDirs   Command = "list_config_dirs"
	CmdListConfigFiles  Command = "list_config_files"
	CmdListTemplates    Command = "list_project_templates"
	CmdCreateProject    Command = "create_project"
	CmdCheckUpdate      Command = "check_update"
	CmdUninstallPackage Command = "uninstall_package"
	CmdTerminateProcess Command = "kill_process"
	CmdGetProxyConfigs  Command = "get_proxy_configs"
	CmdSetProxyConfig   Command = "set_proxy_config"
)

var commands = []Command{
	CmdScanTools, CmdScanPorts, CmdScanProcesses, CmdScanCaches, CmdScanVolumes, CmdScanSystem,
	CmdScanDiskUsage, CmdDiskUsageAtPath, CmdScanOrphans,
	CmdReadConfigFile, CmdWriteConfigFile, CmdListConfigDirs, CmdListConfigFiles,
	CmdListTemplates, CmdCreateProject, CmdCheckUpdate, CmdUninstallPackage, CmdTerminateProcess,
	CmdGetProxyConfigs, CmdSetProxyConfig,
}

// Commands lists every command a backend understands.
func Commands() []Command {
	return append([]Command(nil), commands...)
}

func ParseCommand(s string) (Command, error) {
	for _, c := range commands {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgs        = errors.New("bad arguments")
)

// CommandError wraps every failure returned through an Invoker.
type CommandError struct {
	Command Command
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Invoker runs one command and returns its JSON result.
type Invoker interface {
	Invoke(ctx context.Context, cmd Command, args Args) (json.RawMessage, error)
}

// Call invokes cmd and decodes the result into T.
func Call[T any](ctx context.Context, inv Invoker, cmd Command, args Args) (T, error) {
	var out T
	raw, err := inv.Invoke(ctx, cmd, args)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &CommandError{Command: cmd, Err: fmt.Errorf("decode result: %w", err)}
	}
	return out, nil
}

// Args are the named arguments of a command. Values arrive either as Go
// values or as whatever encoding/json produced on the wire.
type Args map[string]any

func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing %q", ErrBadArgs, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string", ErrBadArgs, key)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %q is empty", ErrBadArgs, key)
	}
	return s, nil
}

// RawString is like String but allows an empty value.
func (a Args) RawString(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing %q", ErrBadArgs, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string", ErrBadArgs, key)
	}
	return s, nil
}

func (a Args) Int(key string) (int64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: missing %q", ErrBadArgs, key)
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("%w: %q must be an integer", ErrBadArgs, key)
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q must be an integer", ErrBadArgs, key)
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q must be an integer", ErrBadArgs, key)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: %q must be an integer", ErrBadArgs, key)
}

func (a Args) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}
