package drill

import (
	"context"

	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/domain"
)

// BackendFetcher lists disk usage through a backend: the root is the
// per-category home scan and identifiers are absolute paths.
type BackendFetcher struct {
	Invoker backend.Invoker
}

func (f BackendFetcher) Root(ctx context.Context) ([]Row, error) {
	usage, err := backend.Call[[]domain.DiskUsage](ctx, f.Invoker, backend.CmdScanDiskUsage, nil)
	if err != nil {
		return nil, err
	}
	return rowsOf(usage), nil
}

func (f BackendFetcher) At(ctx context.Context, id string) ([]Row, error) {
	usage, err := backend.Call[[]domain.DiskUsage](ctx, f.Invoker, backend.CmdDiskUsageAtPath, backend.Args{"path": id})
	if err != nil {
		return nil, err
	}
	return rowsOf(usage), nil
}

func rowsOf(usage []domain.DiskUsage) []Row {
	rows := make([]Row, len(usage))
	for i, u := range usage {
		rows[i] = Row{Category: u.Category, ID: u.Path, SizeBytes: u.SizeBytes, ItemCount: u.ItemCount}
	}
	return rows
}
