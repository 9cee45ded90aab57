package ffmpeg

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
)

// Private types (alphabetical)

// tailBuffer is an io.Writer that keeps only the last limit bytes written.
// It is safe for concurrent use.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

// Private functions (alphabetical)

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

// String returns the kept bytes, trimmed.
func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

// suffix formats the kept output for appending to an error message.
func (t *tailBuffer) suffix() string {
	s := t.String()
	if s == "" {
		return ""
	}
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	return ": " + s
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

// run executes ffmpeg with args under the default timeout, feeding stdin
// when given, and returns stdout. Failures carry the last stderr line.
func (p *Provider) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, GetDefaultTimeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, p.info.Path, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout bytes.Buffer
	stderr := newTailBuffer(stderrLimit)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return nil, FormatError("%s: %w%s", summarizeArgs(args), err, stderr.suffix())
	}
	return stdout.Bytes(), nil
}

// summarizeArgs shortens an argument list for error messages by dropping
// the common leading flags.
func summarizeArgs(args []string) string {
	var kept []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-hide_banner", "-nostdin":
			continue
		case "-loglevel", "-v":
			i++
			continue
		}
		kept = append(kept, args[i])
	}
	return strings.Join(kept, " ")
}
