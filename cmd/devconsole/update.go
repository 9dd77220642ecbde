package main

import (
	"context"
	"debug/buildinfo"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/domain"
	"github.com/tomek7667/devconsole/internal/logging"
	"github.com/urfave/cli/v2"
)

const goInstallTarget = "github.com/tomek7667/devconsole/cmd/devconsole@latest"

type buildMeta struct {
	version  string
	revision string
	modified bool
}

func metaFromBuildInfo(bi *debug.BuildInfo) buildMeta {
	if bi == nil {
		return buildMeta{}
	}
	m := buildMeta{version: bi.Main.Version}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			m.revision = s.Value
		case "vcs.modified":
			m.modified = s.Value == "true"
		}
	}
	return m
}

// release is the tagged module version, or "dev" for local builds.
func (m buildMeta) release() string {
	if m.version == "" || m.version == "(devel)" {
		return "dev"
	}
	return m.version
}

func (m buildMeta) String() string {
	if r := m.release(); r != "dev" {
		return r
	}
	if m.revision != "" {
		if m.modified {
			return m.revision + " (modified)"
		}
		return m.revision
	}
	if m.version != "" {
		return m.version
	}
	return "unknown"
}

func (m buildMeta) sameBuild(o buildMeta) bool {
	if m.release() != "dev" && m.release() == o.release() {
		return true
	}
	if m.revision != "" && m.revision == o.revision && !m.modified && !o.modified {
		return true
	}
	return m == o
}

func releaseVersion() string {
	bi, _ := debug.ReadBuildInfo()
	return metaFromBuildInfo(bi).release()
}

func cmdCheckUpdate() *cli.Command {
	return &cli.Command{
		Name:  "check-update",
		Usage: "Report whether a newer release is published",
		Action: func(c *cli.Context) error {
			e, err := setup(c, false)
			if err != nil {
				return err
			}
			defer logging.Sync()

			info, err := backend.Call[domain.UpdateInfo](c.Context, e.inv, backend.CmdCheckUpdate, nil)
			if err != nil {
				return err
			}
			switch {
			case info.Outdated:
				fmt.Printf("a new version is available: %s (you have %s)\n", info.Latest, info.Current)
				fmt.Printf("download it from %s or run `devconsole update`\n", info.URL)
			case info.Latest == "":
				fmt.Printf("running %s; no release to compare against\n", info.Current)
			default:
				fmt.Printf("you are using the latest version: %s\n", info.Current)
			}
			return nil
		},
	}
}

func cmdUpdate() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Install the latest release over this binary (the old one is kept as a backup)",
		Action: func(c *cli.Context) error {
			return runUpdate(c.Context)
		},
	}
}

func runUpdate(ctx context.Context) error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve current executable path: %w", err)
	}
	if exePath, err = filepath.EvalSymlinks(exePath); err != nil {
		return fmt.Errorf("failed to resolve current executable path: %w", err)
	}
	bi, _ := debug.ReadBuildInfo()
	current := metaFromBuildInfo(bi)
	fmt.Printf("current version: %s\n", current)

	goExe, err := exec.LookPath("go")
	if err != nil {
		return fmt.Errorf("go not found in PATH; cannot self-update (try: `go install %s`)", goInstallTarget)
	}
	tmpDir, err := os.MkdirTemp("", "devconsole-update-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	fmt.Printf("fetching latest via `go install %s`...\n", goInstallTarget)
	cmd := exec.CommandContext(ctx, goExe, "install", goInstallTarget)
	cmd.Env = append(os.Environ(), "GOBIN="+tmpDir)
	if out, err := cmd.CombinedOutput(); err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("go install failed: %w\n\n%s", err, msg)
		}
		return fmt.Errorf("go install failed: %w", err)
	}

	fresh, err := installedBinary(tmpDir)
	if err != nil {
		return err
	}
	freshBI, err := buildinfo.ReadFile(fresh)
	if err != nil {
		return fmt.Errorf("failed to read build info from %s: %w", fresh, err)
	}
	latest := metaFromBuildInfo(freshBI)
	fmt.Printf("latest available: %s\n", latest)
	if current.sameBuild(latest) {
		fmt.Println("already up to date")
		return nil
	}
	if runtime.GOOS == "windows" {
		return fmt.Errorf("cannot replace a running executable on windows; the new binary is at %s", fresh)
	}

	info, err := os.Stat(exePath)
	if err != nil {
		return err
	}
	backup := fmt.Sprintf("%s.backup-%s", exePath, time.Now().UTC().Format("20060102T150405Z"))
	if err := copyFile(exePath, backup, info.Mode()); err != nil {
		return fmt.Errorf("failed to back up %s: %w", exePath, err)
	}
	// Stage next to the target so the final rename stays on one filesystem.
	staged := exePath + ".new"
	if err := copyFile(fresh, staged, info.Mode()); err != nil {
		return fmt.Errorf("failed to stage new binary: %w", err)
	}
	if err := os.Rename(staged, exePath); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("failed to replace %s: %w", exePath, err)
	}
	fmt.Printf("updated %s to %s (backup: %s)\n", exePath, latest, backup)
	return nil
}

func installedBinary(dir string) (string, error) {
	name := "devconsole"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	p := filepath.Join(dir, name)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("could not find installed binary in %s", dir)
		}
		return "", err
	}
	return p, nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(dst)
		return copyErr
	}
	if closeErr != nil {
		_ = os.Remove(dst)
		return closeErr
	}
	return os.Chmod(dst, mode)
}
