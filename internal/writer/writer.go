// Package writer dispatches parsed files to disk and records rollback data
// for every original it mutates.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/presshq/press/internal/aggregate"
	"github.com/presshq/press/internal/types"
)

const (
	warningWriteFailedFormat    = "failed to write %s: %v"
	warningDeleteSkippedFormat  = "delete of %s skipped: auto mode is off"
	warningDeleteFailedFormat   = "failed to delete %s: %v"
	warningPartOutOfRangeFormat = "part %d of %s out of range (%d parts); ignored"
	writeFilePermissions        = 0o644
	writeDirectoryPermissions   = 0o755
)

// Options configures a writer run.
type Options struct {
	// OutputDirectory receives parsed files when auto mode is off.
	OutputDirectory string
	// Auto overwrites matched originals in place instead.
	Auto bool
	// ChunkSize mirrors the aggregator's part size so sparse part updates
	// merge against the same slicing.
	ChunkSize int
}

// Result summarizes a dispatch run.
type Result struct {
	SavedFiles   int
	DeletedFiles int
	Failures     int
}

// Writer dispatches parsed files.
type Writer struct {
	options  Options
	recorder *rollbackRecorder
	logger   *zap.Logger
}

// New constructs a Writer.
func New(options Options, logger *zap.Logger) *Writer {
	if options.OutputDirectory == "" {
		options.OutputDirectory = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		options:  options,
		recorder: newRollbackRecorder(filepath.Join(options.OutputDirectory, types.OutputSubdirectoryName)),
		logger:   logger,
	}
}

// ArtifactDirectory returns the directory holding run artifacts.
func (writer *Writer) ArtifactDirectory() string {
	return filepath.Join(writer.options.OutputDirectory, types.OutputSubdirectoryName)
}

// Dispatch writes every parsed file. Each write is independent: a failure is
// reported and the remaining files still proceed. Pre-existing files at the
// destination are overwritten without prompting.
func (writer *Writer) Dispatch(parsedFiles []types.ParsedFile, sources []types.SourceFile) Result {
	var result Result
	for _, parsedFile := range parsedFiles {
		switch parsedFile.Kind {
		case types.ParsedFileKindDelete:
			writer.dispatchDelete(parsedFile, sources, &result)
		default:
			writer.dispatchWrite(parsedFile, sources, &result)
		}
	}
	if manifestError := writer.recorder.save(); manifestError != nil {
		writer.logger.Warn(fmt.Sprintf(warningWriteFailedFormat, rollbackManifestName, manifestError))
	}
	return result
}

// SaveRawResponse stores the unparsed concatenated model response under the
// artifact directory.
func (writer *Writer) SaveRawResponse(rawText string) error {
	artifactDirectory := writer.ArtifactDirectory()
	if makeDirectoryError := os.MkdirAll(artifactDirectory, writeDirectoryPermissions); makeDirectoryError != nil {
		return fmt.Errorf("create artifact directory %s: %w", artifactDirectory, makeDirectoryError)
	}
	logPath := filepath.Join(artifactDirectory, types.RawResponseLogName)
	if writeError := os.WriteFile(logPath, []byte(rawText), writeFilePermissions); writeError != nil {
		return fmt.Errorf("write %s: %w", logPath, writeError)
	}
	return nil
}

// dispatchWrite handles file, new_file, and note entries.
func (writer *Writer) dispatchWrite(parsedFile types.ParsedFile, sources []types.SourceFile, result *Result) {
	matchedSource := matchSource(parsedFile.RelativePath, sources)

	var targetPath string
	var content string
	if writer.options.Auto && matchedSource != nil && parsedFile.Kind != types.ParsedFileKindNote {
		targetPath = matchedSource.Path
		content = writer.mergeContent(parsedFile, matchedSource)
	} else {
		targetPath = filepath.Join(writer.options.OutputDirectory, filepath.FromSlash(parsedFile.RelativePath))
		content = parsedFile.Content
	}

	if backupError := writer.recorder.recordBeforeWrite(targetPath); backupError != nil {
		writer.logger.Warn(fmt.Sprintf(warningWriteFailedFormat, targetPath, backupError))
	}

	if parentDirectory := filepath.Dir(targetPath); parentDirectory != "" {
		if makeDirectoryError := os.MkdirAll(parentDirectory, writeDirectoryPermissions); makeDirectoryError != nil {
			writer.logger.Warn(fmt.Sprintf(warningWriteFailedFormat, targetPath, makeDirectoryError))
			result.Failures++
			return
		}
	}
	if writeError := os.WriteFile(targetPath, []byte(content), writeFilePermissions); writeError != nil {
		writer.logger.Warn(fmt.Sprintf(warningWriteFailedFormat, targetPath, writeError))
		result.Failures++
		return
	}
	result.SavedFiles++
}

// dispatchDelete removes a matched original; only auto mode may delete.
func (writer *Writer) dispatchDelete(parsedFile types.ParsedFile, sources []types.SourceFile, result *Result) {
	if !writer.options.Auto {
		writer.logger.Warn(fmt.Sprintf(warningDeleteSkippedFormat, parsedFile.RelativePath))
		return
	}
	matchedSource := matchSource(parsedFile.RelativePath, sources)
	if matchedSource == nil {
		writer.logger.Warn(fmt.Sprintf(warningDeleteFailedFormat, parsedFile.RelativePath, fmt.Errorf("no matching source file")))
		return
	}
	if backupError := writer.recorder.recordBeforeWrite(matchedSource.Path); backupError != nil {
		writer.logger.Warn(fmt.Sprintf(warningDeleteFailedFormat, matchedSource.Path, backupError))
	}
	if removeError := os.Remove(matchedSource.Path); removeError != nil {
		writer.logger.Warn(fmt.Sprintf(warningDeleteFailedFormat, matchedSource.Path, removeError))
		result.Failures++
		return
	}
	result.DeletedFiles++
}

// mergeContent produces the final content for an in-place overwrite. Sparse
// part updates replace only the corresponding chunk-size slices of the
// original; everything else is a full replacement.
func (writer *Writer) mergeContent(parsedFile types.ParsedFile, source *types.SourceFile) string {
	if parsedFile.Kind != types.ParsedFileKindFile || len(parsedFile.Parts) == 0 {
		return parsedFile.Content
	}

	originalParts := aggregate.SplitAfterLines(source.Content, writer.options.ChunkSize)
	if len(originalParts) == 0 {
		originalParts = []string{""}
	}
	if len(parsedFile.Parts) >= len(originalParts) && coversAllParts(parsedFile.Parts, len(originalParts)) {
		return parsedFile.Content
	}

	merged := make([]string, len(originalParts))
	copy(merged, originalParts)
	for _, part := range parsedFile.Parts {
		if part.ID < 1 || part.ID > len(merged) {
			writer.logger.Warn(fmt.Sprintf(warningPartOutOfRangeFormat, part.ID, parsedFile.RelativePath, len(merged)))
			continue
		}
		partContent := part.Content
		if part.ID < len(merged) && !strings.HasSuffix(partContent, "\n") {
			partContent += "\n"
		}
		merged[part.ID-1] = partContent
	}
	return strings.Join(merged, "")
}

// coversAllParts reports whether the parts include every id from 1 to total.
func coversAllParts(parts []types.FilePart, total int) bool {
	present := make(map[int]struct{}, len(parts))
	for _, part := range parts {
		present[part.ID] = struct{}{}
	}
	for partID := 1; partID <= total; partID++ {
		if _, covered := present[partID]; !covered {
			return false
		}
	}
	return true
}

// matchSource finds the walked source a parsed path refers to: an exact
// relative-path match first, then a suffix match against the absolute path.
func matchSource(relativePath string, sources []types.SourceFile) *types.SourceFile {
	for sourceIndex := range sources {
		if sources[sourceIndex].RelativePath == relativePath {
			return &sources[sourceIndex]
		}
	}
	suffix := filepath.FromSlash(relativePath)
	for sourceIndex := range sources {
		if strings.HasSuffix(sources[sourceIndex].Path, string(filepath.Separator)+suffix) {
			return &sources[sourceIndex]
		}
	}
	return nil
}
