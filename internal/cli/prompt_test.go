package cli_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bulkproc/bulkproc/internal/cli"
	"github.com/bulkproc/bulkproc/internal/entity"
)

func makeIDs(n int) []entity.ID {
	ids := make([]entity.ID, n)
	for i := range ids {
		ids[i] = entity.ID(i + 1)
	}
	return ids
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("all IDs listed when at or below the limit", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cli.Summarize(&buf, "node", "save", makeIDs(20))
		out := buf.String()

		assert.Contains(t, out, `About to apply "save" to 20 node record(s):`)
		for i := 1; i <= 20; i++ {
			assert.Contains(t, out, fmt.Sprintf("%d", i))
		}
		assert.NotContains(t, out, "more")
	})

	t.Run("capped at 20 with remainder count", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cli.Summarize(&buf, "node", "save", makeIDs(57))
		out := buf.String()

		assert.Contains(t, out, "57 node record(s)")
		assert.Contains(t, out, "... and 37 more")
		assert.NotContains(t, out, " 21,", "IDs past the display limit are not listed")
	})

	t.Run("short list", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cli.Summarize(&buf, "node", "save", []entity.ID{12, 56})
		assert.Contains(t, buf.String(), "12, 56")
	})
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		accepted bool
	}{
		{name: "yes lowercase", input: "y\n", accepted: true},
		{name: "yes word", input: "yes\n", accepted: true},
		{name: "yes uppercase", input: "YES\n", accepted: true},
		{name: "no", input: "n\n", accepted: false},
		{name: "empty defaults to no", input: "\n", accepted: false},
		{name: "garbage declines", input: "sure why not\n", accepted: false},
		{name: "eof declines", input: "", accepted: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			result := cli.Confirm(&out, strings.NewReader(tt.input))
			assert.Equal(t, tt.accepted, result.Accepted)
			assert.False(t, result.Cancelled)
			assert.Contains(t, out.String(), "[y/N]")
		})
	}
}
