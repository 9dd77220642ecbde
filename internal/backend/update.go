package backend

import (
	"context"
	"fmt"
	"strings"

	latest "github.com/tcnksm/go-latest"
	"github.com/tomek7667/devconsole/internal/domain"
)

// LatestFunc reports the newest release tag for owner/repo relative to current.
type LatestFunc func(owner, repo, current string) (*latest.CheckResponse, error)

func githubLatest(owner, repo, current string) (*latest.CheckResponse, error) {
	tag := &latest.GithubTag{
		Owner:      owner,
		Repository: repo,
	}
	return latest.Check(tag, current)
}

func (l *Local) checkUpdate(ctx context.Context, _ Args) (any, error) {
	current := strings.TrimPrefix(l.opts.Version, "v")
	info := domain.UpdateInfo{Current: l.opts.Version}
	if l.opts.UpdateOwner == "" || l.opts.UpdateRepo == "" {
		return nil, fmt.Errorf("update source is not configured")
	}
	info.URL = fmt.Sprintf("https://github.com/%s/%s/releases", l.opts.UpdateOwner, l.opts.UpdateRepo)
	if current == "" || current == "dev" || current == "(devel)" {
		// Development builds are never reported as outdated.
		return info, nil
	}

	type result struct {
		res *latest.CheckResponse
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := l.latest(l.opts.UpdateOwner, l.opts.UpdateRepo, current)
		done <- result{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("failed to check latest release: %w", r.err)
		}
		if r.res == nil {
			return info, nil
		}
		info.Latest = r.res.Current
		info.Outdated = r.res.Outdated
		return info, nil
	}
}
