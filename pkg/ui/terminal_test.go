package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		SetQuietMode(false)
		SetColorEnabled(false)
	})
	return &buf
}

func TestColorDisabled(t *testing.T) {
	SetColorEnabled(false)
	assert.Equal(t, "plain", Red("plain"))
}

func TestColorEnabled(t *testing.T) {
	SetColorEnabled(true)
	defer SetColorEnabled(false)
	assert.Equal(t, "\033[32mok\033[0m", Green("ok"))
}

func TestQuietModeKeepsErrorsAndResults(t *testing.T) {
	buf := capture(t)
	SetColorEnabled(false)
	SetQuietMode(true)

	PrintInfo("Query", "golang")
	PrintSuccess("done")
	PrintError("failed", "boom")
	PrintList([]string{"https://a.example/", "https://b.example/"})

	assert.Equal(t, "failed: boom\nhttps://a.example/\nhttps://b.example/\n", buf.String())
}

func TestPrintInfo(t *testing.T) {
	buf := capture(t)
	SetColorEnabled(false)

	PrintInfo("Collected", "3")
	assert.Equal(t, "Collected: 3\n", buf.String())
}
