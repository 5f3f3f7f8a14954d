package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bulkproc/bulkproc/internal/entity"
)

// summaryIDLimit caps how many literal IDs the confirmation summary
// lists; beyond it only a remainder count is shown.
const summaryIDLimit = 20

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// PromptResult contains the result of a confirmation prompt.
type PromptResult struct {
	// Accepted is true if the operator accepted the prompt.
	Accepted bool
	// Cancelled is true if input ended with a read error.
	Cancelled bool
}

// Summarize writes the pre-run summary for a selection: the callback,
// the count, and up to summaryIDLimit literal IDs plus a remainder
// count. Shown before any destructive work begins.
func Summarize(w io.Writer, entityType, callbackRef string, ids []entity.ID) {
	fmt.Fprintf(w, "About to apply %q to %d %s record(s):\n", callbackRef, len(ids), entityType)

	shown := ids
	if len(shown) > summaryIDLimit {
		shown = shown[:summaryIDLimit]
	}
	parts := make([]string, len(shown))
	for i, id := range shown {
		parts[i] = fmt.Sprintf("%d", id)
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, ", "))

	if rest := len(ids) - summaryIDLimit; rest > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", rest)
	}
}

// Confirm asks the operator for go/no-go and blocks until answered.
// Valid inputs "y"/"yes" (any case) accept; anything else, including
// empty input and EOF, declines. The prompt defaults to "No".
func Confirm(w io.Writer, r io.Reader) PromptResult {
	fmt.Fprint(w, "? Proceed? [y/N] ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if scanner.Err() != nil {
			return PromptResult{Cancelled: true}
		}
		return PromptResult{Accepted: false}
	}

	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return PromptResult{Accepted: true}
	default:
		return PromptResult{Accepted: false}
	}
}
