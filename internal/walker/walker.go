// Package walker expands user-provided paths into the ordered list of source
// files a run will process.
package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"github.com/presshq/press/internal/types"
	"github.com/presshq/press/internal/utils"
)

const (
	gitDirectoryName  = ".git"
	gitIgnoreFileName = ".gitignore"

	warningSkipPathFormat = "skipping %s: %v"
	errorNoFilesMessage   = "no readable files found under the provided paths"
)

// textFileExtensions lists the extensions collected when walking a directory.
// Explicitly named files bypass this filter.
var textFileExtensions = map[string]struct{}{
	"txt": {}, "rs": {}, "ts": {}, "js": {}, "go": {}, "json": {},
	"py": {}, "cpp": {}, "c": {}, "h": {}, "hpp": {}, "css": {},
	"html": {}, "md": {}, "yaml": {}, "yml": {}, "toml": {}, "xml": {},
	"tsx": {},
}

// Options configures a walk.
type Options struct {
	// Paths are the files or directories to expand, in input order.
	Paths []string
	// IgnorePaths exclude any file or directory they prefix.
	IgnorePaths []string
	// UseGitignore applies .gitignore files found under walked directories.
	UseGitignore bool
}

// Walker expands paths into source files.
type Walker struct {
	options Options
	logger  *zap.Logger
}

// New constructs a Walker with the provided options.
func New(options Options, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{options: options, logger: logger}
}

// Collect resolves every configured path into source file entries with
// absolute and relative locations filled in. Content is left empty; the
// aggregator reads it. A path that resolves to nothing produces a warning;
// zero files overall is fatal.
func (walker *Walker) Collect() ([]types.SourceFile, error) {
	ignoredPrefixes := normalizeIgnorePrefixes(walker.options.IgnorePaths)

	var collected []types.SourceFile
	seenAbsolutePaths := make(map[string]struct{})

	appendFile := func(absolutePath, relativePath string) {
		if _, exists := seenAbsolutePaths[absolutePath]; exists {
			return
		}
		seenAbsolutePaths[absolutePath] = struct{}{}
		collected = append(collected, types.SourceFile{
			Path:         absolutePath,
			RelativePath: relativePath,
		})
	}

	for _, inputPath := range walker.options.Paths {
		absolutePath, absolutePathError := filepath.Abs(inputPath)
		if absolutePathError != nil {
			walker.logger.Warn(fmt.Sprintf(warningSkipPathFormat, inputPath, absolutePathError))
			continue
		}
		cleanPath := filepath.Clean(absolutePath)

		pathInfo, statError := os.Stat(cleanPath)
		if statError != nil {
			walker.logger.Warn(fmt.Sprintf(warningSkipPathFormat, inputPath, statError))
			continue
		}

		if isIgnoredByPrefix(cleanPath, inputPath, ignoredPrefixes) {
			continue
		}

		if !pathInfo.IsDir() {
			appendFile(cleanPath, markerRelativePath(inputPath, cleanPath))
			continue
		}

		directoryFiles, walkError := walker.collectDirectory(cleanPath, ignoredPrefixes)
		if walkError != nil {
			walker.logger.Warn(fmt.Sprintf(warningSkipPathFormat, inputPath, walkError))
			continue
		}
		for _, entry := range directoryFiles {
			appendFile(entry.Path, entry.RelativePath)
		}
	}

	if len(collected) == 0 {
		return nil, fmt.Errorf(errorNoFilesMessage)
	}
	return collected, nil
}

// collectDirectory walks a directory in lexical order collecting files with a
// recognized text extension, honoring ignore prefixes and .gitignore rules.
func (walker *Walker) collectDirectory(rootDirectory string, ignoredPrefixes []string) ([]types.SourceFile, error) {
	var ignoreMatcher *gitignore.GitIgnore
	if walker.options.UseGitignore {
		ignoreMatcher = loadGitignore(rootDirectory)
	}

	var entries []types.SourceFile
	walkError := filepath.WalkDir(rootDirectory, func(currentPath string, directoryEntry fs.DirEntry, entryError error) error {
		if entryError != nil {
			walker.logger.Warn(fmt.Sprintf(warningSkipPathFormat, currentPath, entryError))
			if directoryEntry != nil && directoryEntry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		relativePath := utils.RelativePathOrSelf(currentPath, rootDirectory)

		if directoryEntry.IsDir() {
			if directoryEntry.Name() == gitDirectoryName {
				return filepath.SkipDir
			}
			if isIgnoredByPrefix(currentPath, relativePath, ignoredPrefixes) {
				return filepath.SkipDir
			}
			if ignoreMatcher != nil && relativePath != "." && ignoreMatcher.MatchesPath(relativePath) {
				return filepath.SkipDir
			}
			return nil
		}

		if isIgnoredByPrefix(currentPath, relativePath, ignoredPrefixes) {
			return nil
		}
		if ignoreMatcher != nil && ignoreMatcher.MatchesPath(relativePath) {
			return nil
		}
		if !hasTextExtension(directoryEntry.Name()) {
			return nil
		}
		entries = append(entries, types.SourceFile{
			Path:         currentPath,
			RelativePath: relativePath,
		})
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}
	return entries, nil
}

// markerRelativePath produces the marker path for an explicitly named file.
// The input is used as given when it is already relative and stays inside the
// working tree; otherwise the path is taken relative to the working directory,
// falling back to the base name for files outside it. The result is never
// absolute and never escapes upward, matching what the response parser accepts.
func markerRelativePath(inputPath, absolutePath string) string {
	cleanInput := filepath.ToSlash(filepath.Clean(inputPath))
	if !filepath.IsAbs(inputPath) && cleanInput != ".." && !strings.HasPrefix(cleanInput, "../") {
		return cleanInput
	}
	if workingDirectory, workingDirectoryError := os.Getwd(); workingDirectoryError == nil {
		if relativePath, relativeError := filepath.Rel(workingDirectory, absolutePath); relativeError == nil &&
			relativePath != ".." && !strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(relativePath)
		}
	}
	return filepath.Base(absolutePath)
}

// loadGitignore compiles the root .gitignore when present. Nested ignore files
// are intentionally not merged; the root file governs the whole walk.
func loadGitignore(rootDirectory string) *gitignore.GitIgnore {
	ignoreFilePath := filepath.Join(rootDirectory, gitIgnoreFileName)
	if _, statError := os.Stat(ignoreFilePath); statError != nil {
		return nil
	}
	matcher, compileError := gitignore.CompileIgnoreFile(ignoreFilePath)
	if compileError != nil {
		return nil
	}
	return matcher
}

// normalizeIgnorePrefixes cleans and deduplicates the configured ignore paths,
// keeping both the given form and its absolute form for prefix checks.
func normalizeIgnorePrefixes(ignorePaths []string) []string {
	var prefixes []string
	for _, ignorePath := range ignorePaths {
		trimmed := strings.TrimSpace(ignorePath)
		if trimmed == "" {
			continue
		}
		prefixes = append(prefixes, filepath.Clean(trimmed))
		if absolutePath, absolutePathError := filepath.Abs(trimmed); absolutePathError == nil {
			prefixes = append(prefixes, filepath.Clean(absolutePath))
		}
	}
	return utils.DeduplicatePatterns(prefixes)
}

// isIgnoredByPrefix reports whether either path form falls under one of the
// ignore prefixes.
func isIgnoredByPrefix(absolutePath, relativePath string, ignoredPrefixes []string) bool {
	for _, prefix := range ignoredPrefixes {
		if pathHasPrefix(absolutePath, prefix) || pathHasPrefix(relativePath, prefix) {
			return true
		}
	}
	return false
}

// pathHasPrefix reports whether candidate equals prefix or sits beneath it.
func pathHasPrefix(candidate, prefix string) bool {
	cleanCandidate := filepath.Clean(candidate)
	if cleanCandidate == prefix {
		return true
	}
	return strings.HasPrefix(cleanCandidate, prefix+string(filepath.Separator))
}

// hasTextExtension reports whether the file name carries a recognized text
// extension.
func hasTextExtension(fileName string) bool {
	extension := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if extension == "" {
		return false
	}
	_, recognized := textFileExtensions[extension]
	return recognized
}
