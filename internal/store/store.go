// Package store persists download records.
package store

import (
	"context"

	"github.com/mediagrab/api/internal/model"
)

// DownloadStore is the record store of the download pipeline. Update merges
// a partial update into the stored record after validating it with
// model.Download.Apply and returns the merged record.
type DownloadStore interface {
	Insert(ctx context.Context, d *model.Download) error
	Get(ctx context.Context, id string) (*model.Download, error)
	Update(ctx context.Context, id string, u model.DownloadUpdate) (*model.Download, error)
}
