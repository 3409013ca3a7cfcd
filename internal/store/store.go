package store

import (
	"context"

	"github.com/AliBars19/apollova-publisher/pkg/models"
)

// VideoStore is the durable mapping of video id to publishing state. All
// read-modify-write sequences on a store must go through a single writer;
// both implementations serialize writes internally.
type VideoStore interface {
	List(ctx context.Context) ([]*models.Video, error)
	Get(ctx context.Context, id string) (*models.Video, error)
	SaveAll(ctx context.Context, videos []*models.Video) error
	Upsert(ctx context.Context, video *models.Video) error
	Delete(ctx context.Context, id string) error
}
