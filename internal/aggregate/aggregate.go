// Package aggregate reads source files and assembles the marker-wrapped
// prompt document submitted to the model, splitting it into bounded chunks.
package aggregate

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/presshq/press/internal/tokenizer"
	"github.com/presshq/press/internal/types"
)

const (
	fileMarkerOpenFormat  = "<file path=\"%s\" parts=\"%d\">\n"
	fileMarkerClose       = "</file>\n"
	partMarkerFormat      = "<part id=\"%d\"><![CDATA[%s]]></part>\n"
	cdataTerminator       = "]]>"
	cdataTerminatorEscape = "]]]]><![CDATA[>"
	pathQuoteEscape       = "&quot;"

	warningUnreadableFileFormat = "skipping unreadable file %s: %v"
	warningTokenCountFormat     = "token count unavailable for chunk %d: %v"
)

// Aggregator combines source files into prompt chunks.
type Aggregator struct {
	chunkSize int
	counter   tokenizer.Counter
	logger    *zap.Logger
}

// New constructs an Aggregator. A chunk size of zero or less disables
// splitting entirely; the whole document travels as one chunk with each file
// in a single part. A nil counter disables token accounting.
func New(chunkSize int, counter tokenizer.Counter, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{chunkSize: chunkSize, counter: counter, logger: logger}
}

// ReadSources loads content for every walked file. An unreadable file is
// skipped with a warning; it is not fatal to the run.
func (aggregator *Aggregator) ReadSources(files []types.SourceFile) []types.SourceFile {
	loaded := make([]types.SourceFile, 0, len(files))
	for _, file := range files {
		contentBytes, readError := os.ReadFile(file.Path)
		if readError != nil {
			aggregator.logger.Warn(fmt.Sprintf(warningUnreadableFileFormat, file.Path, readError))
			continue
		}
		file.Content = string(contentBytes)
		loaded = append(loaded, file)
	}
	return loaded
}

// BuildDocument concatenates every source file wrapped in the marker grammar,
// preserving walker order.
func (aggregator *Aggregator) BuildDocument(sources []types.SourceFile) string {
	var documentBuilder strings.Builder
	for _, source := range sources {
		documentBuilder.WriteString(aggregator.wrapFile(source))
	}
	return documentBuilder.String()
}

// Chunk splits the aggregated document into prompt chunks of at most the
// configured number of lines, never splitting mid-line. Concatenating chunk
// contents in index order reproduces the document exactly.
func (aggregator *Aggregator) Chunk(document string) []types.PromptChunk {
	segments := SplitAfterLines(document, aggregator.chunkSize)
	chunks := make([]types.PromptChunk, 0, len(segments))
	for segmentIndex, segment := range segments {
		chunk := types.PromptChunk{
			Index:   segmentIndex + 1,
			Total:   len(segments),
			Content: segment,
		}
		if aggregator.counter != nil {
			tokenCount, countError := aggregator.counter.CountString(segment)
			if countError != nil {
				aggregator.logger.Warn(fmt.Sprintf(warningTokenCountFormat, chunk.Index, countError))
			} else {
				chunk.Tokens = tokenCount
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// wrapFile renders one source file in the marker grammar, slicing its content
// into chunk-size parts so the model can return sparse updates.
func (aggregator *Aggregator) wrapFile(source types.SourceFile) string {
	parts := SplitAfterLines(source.Content, aggregator.chunkSize)
	if len(parts) == 0 {
		parts = []string{""}
	}

	var fileBuilder strings.Builder
	fileBuilder.WriteString(fmt.Sprintf(fileMarkerOpenFormat, EscapeMarkerPath(source.RelativePath), len(parts)))
	for partIndex, partContent := range parts {
		fileBuilder.WriteString(fmt.Sprintf(partMarkerFormat, partIndex+1, EscapeCData(partContent)))
	}
	fileBuilder.WriteString(fileMarkerClose)
	return fileBuilder.String()
}

// EscapeMarkerPath escapes double quotes so a path cannot terminate the
// marker attribute early.
func EscapeMarkerPath(relativePath string) string {
	return strings.ReplaceAll(relativePath, "\"", pathQuoteEscape)
}

// EscapeCData splits CDATA terminators embedded in content across two CDATA
// sections so the part body cannot be cut short.
func EscapeCData(content string) string {
	return strings.ReplaceAll(content, cdataTerminator, cdataTerminatorEscape)
}

// SplitAfterLines cuts text into segments of at most maxLines lines each,
// keeping newline bytes attached so concatenation is loss-free. A maxLines of
// zero or less returns the whole text as one segment.
func SplitAfterLines(text string, maxLines int) []string {
	if text == "" {
		return nil
	}
	if maxLines <= 0 {
		return []string{text}
	}

	var segments []string
	remaining := text
	for remaining != "" {
		cursor := 0
		lineCount := 0
		for lineCount < maxLines && cursor < len(remaining) {
			newlineOffset := strings.IndexByte(remaining[cursor:], '\n')
			if newlineOffset < 0 {
				cursor = len(remaining)
			} else {
				cursor += newlineOffset + 1
			}
			lineCount++
		}
		segments = append(segments, remaining[:cursor])
		remaining = remaining[cursor:]
	}
	return segments
}
