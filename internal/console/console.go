// Package console captures prior console output for inclusion in the prompt.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultCaptureLines is used when --pipe-output is given without a count.
	DefaultCaptureLines = 10

	capturedOutputOpenTag  = "<previous_console_output>"
	capturedOutputCloseTag = "</previous_console_output>"

	warningNoPipedInput = "stdin is a terminal; --pipe-output captured nothing"
)

// TrailingLines reads the reader to the end and returns the last lineCount
// lines joined by newlines.
func TrailingLines(reader io.Reader, lineCount int) (string, error) {
	if lineCount <= 0 {
		lineCount = DefaultCaptureLines
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lines := make([]string, 0, lineCount)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > lineCount {
			lines = lines[1:]
		}
	}
	if scanError := scanner.Err(); scanError != nil {
		return "", fmt.Errorf("read console output: %w", scanError)
	}
	return strings.Join(lines, "\n"), nil
}

// CaptureStdin returns the trailing lines of piped standard input. A terminal
// stdin yields an empty capture with a warning; capture failures degrade the
// same way.
func CaptureStdin(lineCount int, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}
	stdinInfo, statError := os.Stdin.Stat()
	if statError != nil || stdinInfo.Mode()&os.ModeCharDevice != 0 {
		logger.Warn(warningNoPipedInput)
		return ""
	}
	captured, captureError := TrailingLines(os.Stdin, lineCount)
	if captureError != nil {
		logger.Warn(captureError.Error())
		return ""
	}
	return captured
}

// Wrap surrounds captured output with the tags the model is told to expect.
func Wrap(captured string) string {
	if captured == "" {
		return ""
	}
	return capturedOutputOpenTag + "\n" + captured + "\n" + capturedOutputCloseTag
}
