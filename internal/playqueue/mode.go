package playqueue

import (
	"fmt"
	"strings"
)

// Mode controls what Next and Previous do at the ends of the queue.
type Mode string

const (
	ModeSequential Mode = "sequential" // stop at either end
	ModeLoop       Mode = "loop"       // wrap around
	ModeSingle     Mode = "single"     // repeat the current entry
	ModeRandom     Mode = "random"     // any other entry
)

// ParseMode parses a play mode name. Empty means sequential.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeSequential, nil
	case ModeSequential, ModeLoop, ModeSingle, ModeRandom:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}
