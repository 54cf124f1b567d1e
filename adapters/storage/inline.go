package storage

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// InlineSnapshotStore keeps snapshots inside the board as data URIs, used
// when no object store is configured
type InlineSnapshotStore struct{}

var _ repositories.SnapshotUploader = InlineSnapshotStore{}

// Upload returns png encoded as a data URI; the key is ignored
func (InlineSnapshotStore) Upload(ctx context.Context, key string, png []byte) (string, error) {
	if len(png) == 0 {
		return "", fmt.Errorf("snapshot is empty")
	}
	return "data:" + snapshotMediaType + ";base64," + base64.StdEncoding.EncodeToString(png), nil
}
