// Package ffmpeg drives an installed ffmpeg executable as a codec provider.
// It detects the executable, reads the codec and hardware acceleration
// tables it reports, and runs encode sessions as child processes fed with
// raw video.
package ffmpeg

import (
	"fmt"
	"time"
)

// Private constants (alphabetical)
const (
	// defaultTimeout bounds every short ffmpeg invocation such as listing
	// codecs or probing a device.
	defaultTimeout = 30 * time.Second

	// deviceName is the name given to hardware devices created with
	// -init_hw_device.
	deviceName = "accelhound"

	// errorPrefix is used as a prefix for all error messages from this package.
	errorPrefix = "ffmpeg: "

	// helpWorkers caps concurrent "-h encoder=NAME" queries.
	helpWorkers = 8

	// startGrace is how long a freshly started encode process must stay
	// alive before its session counts as open.
	startGrace = 200 * time.Millisecond

	// stderrLimit caps how much child stderr is kept for error messages.
	stderrLimit = 4096
)

// Public constants (alphabetical)

// ProviderName identifies this provider in reports.
const ProviderName = "ffmpeg"

// Public functions (alphabetical)

// FormatError creates an error message with the package prefix.
func FormatError(format string, args ...interface{}) error {
	return fmt.Errorf(errorPrefix+format, args...)
}

// GetDefaultTimeout returns the timeout applied to short ffmpeg invocations.
func GetDefaultTimeout() time.Duration {
	return defaultTimeout
}
