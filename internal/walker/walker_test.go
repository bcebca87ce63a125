package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/presshq/press/internal/parse"
)

// writeTestFile creates a file with parent directories under a test root.
func writeTestFile(testingHandle *testing.T, filePath string, content string) {
	testingHandle.Helper()
	if makeDirectoryError := os.MkdirAll(filepath.Dir(filePath), 0o755); makeDirectoryError != nil {
		testingHandle.Fatalf("failed to create test directory: %v", makeDirectoryError)
	}
	if writeError := os.WriteFile(filePath, []byte(content), 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write test file: %v", writeError)
	}
}

// collectedRelativePaths runs a walk and returns the relative paths found.
func collectedRelativePaths(testingHandle *testing.T, options Options) []string {
	testingHandle.Helper()
	files, collectError := New(options, nil).Collect()
	if collectError != nil {
		testingHandle.Fatalf("collect failed: %v", collectError)
	}
	relativePaths := make([]string, 0, len(files))
	for _, file := range files {
		relativePaths = append(relativePaths, file.RelativePath)
	}
	return relativePaths
}

// TestCollectExpandsDirectoriesInOrder verifies extension filtering and
// lexical ordering of a directory walk.
func TestCollectExpandsDirectoriesInOrder(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "b.go"), "package b\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "a.txt"), "alpha\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "image.bin"), "\x00\x01")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "sub", "c.rs"), "fn c() {}\n")

	relativePaths := collectedRelativePaths(testingHandle, Options{Paths: []string{rootDirectory}})
	expected := []string{"a.txt", "b.go", "sub/c.rs"}
	if len(relativePaths) != len(expected) {
		testingHandle.Fatalf("got %v, expected %v", relativePaths, expected)
	}
	for pathIndex := range expected {
		if relativePaths[pathIndex] != expected[pathIndex] {
			testingHandle.Fatalf("got %v, expected %v", relativePaths, expected)
		}
	}
}

// TestCollectExplicitFileBypassesExtensionFilter verifies that an explicitly
// named file is collected regardless of extension.
func TestCollectExplicitFileBypassesExtensionFilter(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	dataPath := filepath.Join(rootDirectory, "notes.dat")
	writeTestFile(testingHandle, dataPath, "raw data\n")

	relativePaths := collectedRelativePaths(testingHandle, Options{Paths: []string{dataPath}})
	if len(relativePaths) != 1 {
		testingHandle.Fatalf("expected one file, got %v", relativePaths)
	}
}

// TestCollectAppliesIgnorePaths verifies that ignore prefixes exclude whole
// subtrees.
func TestCollectAppliesIgnorePaths(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "keep.go"), "package keep\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "vendor", "dep.go"), "package dep\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "vendor", "nested", "deep.go"), "package deep\n")

	relativePaths := collectedRelativePaths(testingHandle, Options{
		Paths:       []string{rootDirectory},
		IgnorePaths: []string{"vendor"},
	})
	if len(relativePaths) != 1 || relativePaths[0] != "keep.go" {
		testingHandle.Fatalf("ignore prefix not applied: %v", relativePaths)
	}
}

// TestCollectHonorsGitignore verifies root .gitignore rules exclude files when
// enabled.
func TestCollectHonorsGitignore(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, ".gitignore"), "generated/\n*.log.md\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "main.go"), "package main\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "trace.log.md"), "noise\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "generated", "out.go"), "package out\n")

	relativePaths := collectedRelativePaths(testingHandle, Options{
		Paths:        []string{rootDirectory},
		UseGitignore: true,
	})
	if len(relativePaths) != 1 || relativePaths[0] != "main.go" {
		testingHandle.Fatalf("gitignore rules not applied: %v", relativePaths)
	}
}

// TestCollectSkipsGitDirectory verifies .git contents never enter a run.
func TestCollectSkipsGitDirectory(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "main.go"), "package main\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, ".git", "config.txt"), "internal\n")

	relativePaths := collectedRelativePaths(testingHandle, Options{Paths: []string{rootDirectory}})
	if len(relativePaths) != 1 || relativePaths[0] != "main.go" {
		testingHandle.Fatalf(".git directory not skipped: %v", relativePaths)
	}
}

// TestCollectMissingPathIsWarningNotFatal verifies a missing path is skipped
// while the remaining paths still resolve.
func TestCollectMissingPathIsWarningNotFatal(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	presentPath := filepath.Join(rootDirectory, "present.txt")
	writeTestFile(testingHandle, presentPath, "here\n")

	relativePaths := collectedRelativePaths(testingHandle, Options{
		Paths: []string{filepath.Join(rootDirectory, "absent.txt"), presentPath},
	})
	if len(relativePaths) != 1 {
		testingHandle.Fatalf("expected the present file only, got %v", relativePaths)
	}
}

// TestCollectZeroFilesIsFatal verifies the run aborts when nothing resolves.
func TestCollectZeroFilesIsFatal(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	if _, collectError := New(Options{Paths: []string{filepath.Join(rootDirectory, "nowhere")}}, nil).Collect(); collectError == nil {
		testingHandle.Fatalf("expected an error when no files resolve")
	}
}

// TestCollectRelativizesExplicitAbsolutePath verifies an explicitly named
// absolute file gets a marker path that is relative and parser-acceptable.
func TestCollectRelativizesExplicitAbsolutePath(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	absolutePath := filepath.Join(rootDirectory, "a.txt")
	writeTestFile(testingHandle, absolutePath, "content\n")

	files, collectError := New(Options{Paths: []string{absolutePath}}, nil).Collect()
	if collectError != nil {
		testingHandle.Fatalf("collect failed: %v", collectError)
	}
	if len(files) != 1 {
		testingHandle.Fatalf("expected one file, got %v", files)
	}
	if filepath.IsAbs(files[0].RelativePath) {
		testingHandle.Fatalf("marker path is absolute: %q", files[0].RelativePath)
	}
	if cleaned, sanitizeError := parse.SanitizeRelativePath(files[0].RelativePath); sanitizeError != nil || cleaned == "" {
		testingHandle.Fatalf("marker path %q rejected by the parser: %v", files[0].RelativePath, sanitizeError)
	}
	if files[0].Path != absolutePath {
		testingHandle.Fatalf("absolute location lost: %+v", files[0])
	}
}

// TestCollectKeepsWorkingTreeRelativePath verifies a file inside the working
// directory keeps its directory-qualified relative path even when named
// absolutely or via a parent traversal.
func TestCollectKeepsWorkingTreeRelativePath(testingHandle *testing.T) {
	rootDirectory, symlinkError := filepath.EvalSymlinks(testingHandle.TempDir())
	if symlinkError != nil {
		testingHandle.Fatalf("failed to resolve test directory: %v", symlinkError)
	}
	absolutePath := filepath.Join(rootDirectory, "sub", "a.txt")
	writeTestFile(testingHandle, absolutePath, "content\n")
	originalDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		testingHandle.Fatalf("failed to read working directory: %v", workingDirectoryError)
	}
	if chdirError := os.Chdir(rootDirectory); chdirError != nil {
		testingHandle.Fatalf("failed to change working directory: %v", chdirError)
	}
	testingHandle.Cleanup(func() {
		if chdirError := os.Chdir(originalDirectory); chdirError != nil {
			testingHandle.Errorf("failed to restore working directory: %v", chdirError)
		}
	})

	for _, inputPath := range []string{absolutePath, filepath.Join("..", filepath.Base(rootDirectory), "sub", "a.txt")} {
		files, collectError := New(Options{Paths: []string{inputPath}}, nil).Collect()
		if collectError != nil {
			testingHandle.Fatalf("collect failed for %q: %v", inputPath, collectError)
		}
		if len(files) != 1 || files[0].RelativePath != "sub/a.txt" {
			testingHandle.Fatalf("input %q: expected marker path sub/a.txt, got %v", inputPath, files)
		}
	}
}

// TestCollectDeduplicatesOverlappingPaths verifies a file reachable through
// two inputs is collected once.
func TestCollectDeduplicatesOverlappingPaths(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	filePath := filepath.Join(rootDirectory, "once.go")
	writeTestFile(testingHandle, filePath, "package once\n")

	relativePaths := collectedRelativePaths(testingHandle, Options{Paths: []string{rootDirectory, filePath}})
	if len(relativePaths) != 1 {
		testingHandle.Fatalf("expected one entry, got %v", relativePaths)
	}
}
