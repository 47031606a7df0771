// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/sua-org/titan-nvr/internal/core"
)

var ErrNotFound = errors.New("camera not found")

// Store é o system-of-record das câmeras. Os engines só leem e escrevem
// por aqui; a persistência em si é opaca para eles.
type Store interface {
	ListCameras(ctx context.Context) ([]core.CameraRecord, error)
	ListActive(ctx context.Context) ([]core.CameraRecord, error)
	GetCamera(ctx context.Context, id int64) (core.CameraRecord, error)
	CreateCamera(ctx context.Context, cam core.CameraRecord) (core.CameraRecord, error)
	UpdateCamera(ctx context.Context, cam core.CameraRecord) error
	DeleteCamera(ctx context.Context, id int64) error

	// SetRecordingMode é a única escrita que o schedule engine faz.
	SetRecordingMode(ctx context.Context, id int64, mode core.RecordingMode) error
}
