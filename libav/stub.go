//go:build !libav

package libav

import (
	"context"

	"github.com/torre76/accelhound/codec"
)

// New always fails: this binary was built without libav support.
func New(ctx context.Context, devicePaths map[string]string) (codec.Provider, error) {
	return nil, ErrNotBuilt
}
