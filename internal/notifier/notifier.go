package notifier

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Deliverer sends rendered text to a channel of its target. An empty channel
// means the target's configured default.
type Deliverer interface {
	Deliver(ctx context.Context, channel, text string) error
}

// StdoutNotifier writes rendered grids to W.
type StdoutNotifier struct {
	W io.Writer
}

func (s *StdoutNotifier) Deliver(_ context.Context, _, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := io.WriteString(s.W, text); err != nil {
		return fmt.Errorf("write grid: %w", err)
	}
	return nil
}
