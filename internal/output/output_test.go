package output

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name    string
		emit    func(u *UI)
		want    string
		toError bool
	}{
		{"info", func(u *UI) { u.Info("board has %d bugs", 6) }, "board has 6 bugs", false},
		{"success", func(u *UI) { u.Success("Bug #%d logged", 7) }, "Bug #7 logged", false},
		{"warning", func(u *UI) { u.Warning("skipping %q", "x") }, `skipping "x"`, true},
		{"error", func(u *UI) { u.Error("Failed to delete bug #%d", 3) }, "Failed to delete bug #3", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, out, errOut := newTestUI()
			tt.emit(u)

			got, other := out, errOut
			if tt.toError {
				got, other = errOut, out
			}
			assert.Contains(t, got.String(), tt.want)
			assert.Empty(t, other.String())
		})
	}
}

func TestVerboseLog(t *testing.T) {
	u, out, _ := newTestUI()
	u.VerboseLog("hidden")
	assert.Empty(t, out.String())

	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestDryRunMsg(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRunMsg("would delete %s", "#2")
	assert.Empty(t, errOut.String())

	u.DryRun = true
	u.DryRunMsg("would delete %s", "#2")
	assert.Contains(t, errOut.String(), "[DRY-RUN] would delete #2")
}

func TestSetNoColor(t *testing.T) {
	prev := color.NoColor
	SetNoColor(true)
	defer SetNoColor(prev)

	u, out, _ := newTestUI()
	u.Success("plain")
	assert.Equal(t, "✓ plain\n", out.String())
	assert.Equal(t, "x", Red("x"))
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"ID", "Title"})
	require.NoError(t, table.Append([]string{"#1", "typo"}))
	require.NoError(t, table.Append([]string{"#2", "leak"}))
	require.NoError(t, table.Render())

	assert.Contains(t, out.String(), "typo")
	assert.Contains(t, out.String(), "leak")
}
