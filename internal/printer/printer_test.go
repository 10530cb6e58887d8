package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

// capture redirects package output to buffers with colour disabled.
func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prevOut, prevErr, prevNoColor := Stdout, Stderr, color.NoColor
	Stdout, Stderr, color.NoColor = &out, &errOut, true
	t.Cleanup(func() {
		Stdout, Stderr, color.NoColor = prevOut, prevErr, prevNoColor
	})
	return &out, &errOut
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
		require.Equal(t, "Test Error\n\nThis is a test error\n", stderr.String())
	})

	t.Run("single suggestion is printed bare", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.Equal(t, "Test Error", err.Error())
		require.Contains(t, stderr.String(), "\nTry this fix\n")
		require.NotContains(t, stderr.String(), "Either:")
	})

	t.Run("multiple suggestions are numbered", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "Explanation", []string{
			"First option",
			"Second option",
		})
		require.Equal(t, "Test Error", err.Error())
		require.Contains(t, stderr.String(), "Either:\n  1. First option\n  2. Second option\n")
	})
}

func TestErrorWithContext(t *testing.T) {
	t.Run("context keys are printed in sorted order", func(t *testing.T) {
		_, stderr := capture(t)
		context := map[string]string{
			"Workdir": "/data/ache",
			"Model":   "acetylcholinesterase_ki",
			"Stage":   "train",
		}
		err := ErrorWithContext("Training failed", "Explanation", context, nil)
		require.Equal(t, "Training failed", err.Error())
		require.Contains(t, stderr.String(),
			"  Model: acetylcholinesterase_ki\n  Stage: train\n  Workdir: /data/ache\n")
	})

	t.Run("empty explanation is skipped", func(t *testing.T) {
		_, stderr := capture(t)
		ErrorWithContext("Title", "", map[string]string{"Key": "Value"}, []string{"Fix it"})
		require.Equal(t, "Title\n\n\n  Key: Value\n\nFix it\n", stderr.String())
	})
}

func TestSection(t *testing.T) {
	out, _ := capture(t)
	Section("Run summary", []Field{
		{Key: "Run", Value: "1234"},
		{Key: "Predictions", Value: "10"},
		{Key: "Model", Value: ""},
	})

	require.Equal(t,
		"Run summary\n"+
			"  Run:          1234\n"+
			"  Predictions:  10\n"+
			"  Model:        -\n",
		out.String())
}

func TestSuccessAndWarningPrefixes(t *testing.T) {
	out, _ := capture(t)
	Success("done\n")
	Success("✓ already prefixed\n")
	Warning("careful\n")
	require.Equal(t, "✓ done\n✓ already prefixed\n⚠️  careful\n", out.String())
}
