package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// Public constants (alphabetical)

// ComponentField is the log field naming the part of accelhound that wrote
// an entry (selector, harness, ffmpeg...).
const ComponentField = "component"

// Public functions (alphabetical)

// FromContext returns the logger carried by ctx. Commands attach one in
// setup; library calls made without it log nothing.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithComponent tags every entry logged through the returned context with
// component. Call it once per component; nested calls repeat the field.
func WithComponent(ctx context.Context, component string) context.Context {
	tagged := FromContext(ctx).With().Str(ComponentField, component).Logger()
	return WithContext(ctx, tagged)
}

// WithContext attaches logger to ctx.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}
