package parse

import (
	"strings"
	"testing"

	"github.com/presshq/press/internal/aggregate"
	"github.com/presshq/press/internal/types"
)

// findEntry returns the parsed entry for a path, or nil.
func findEntry(entries []types.ParsedFile, relativePath string) *types.ParsedFile {
	for entryIndex := range entries {
		if entries[entryIndex].RelativePath == relativePath {
			return &entries[entryIndex]
		}
	}
	return nil
}

// TestParseSingleFile verifies the basic marker round for one file.
func TestParseSingleFile(testingHandle *testing.T) {
	parser := NewParser(nil)
	entries := parser.Parse("<file path=\"src/x.rs\" parts=\"1\">\n<part id=\"1\"><![CDATA[fn main() {}\n]]></part>\n</file>\n")

	if len(entries) != 1 {
		testingHandle.Fatalf("expected one entry, got %d: %+v", len(entries), entries)
	}
	entry := entries[0]
	if entry.RelativePath != "src/x.rs" || entry.Kind != types.ParsedFileKindFile {
		testingHandle.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Content != "fn main() {}\n" {
		testingHandle.Fatalf("unexpected content %q", entry.Content)
	}
}

// TestParseMultiPartJoinsInIDOrder verifies parts are reassembled by their
// declared ids even when they arrive out of order.
func TestParseMultiPartJoinsInIDOrder(testingHandle *testing.T) {
	parser := NewParser(nil)
	responseText := "<file path=\"a.txt\" parts=\"2\">\n" +
		"<part id=\"2\"><![CDATA[second\n]]></part>\n" +
		"<part id=\"1\"><![CDATA[first\n]]></part>\n" +
		"</file>\n"

	entries := parser.Parse(responseText)
	entry := findEntry(entries, "a.txt")
	if entry == nil {
		testingHandle.Fatalf("a.txt not parsed: %+v", entries)
	}
	if entry.Content != "first\nsecond\n" {
		testingHandle.Fatalf("unexpected joined content %q", entry.Content)
	}
	if len(entry.Parts) != 2 {
		testingHandle.Fatalf("expected two parts, got %d", len(entry.Parts))
	}
}

// TestParseDuplicatePathLastWriteWins verifies that a repeated path keeps the
// later content and the earlier position.
func TestParseDuplicatePathLastWriteWins(testingHandle *testing.T) {
	parser := NewParser(nil)
	responseText := "<file path=\"a.txt\" parts=\"1\"><part id=\"1\"><![CDATA[old\n]]></part></file>\n" +
		"<file path=\"b.txt\" parts=\"1\"><part id=\"1\"><![CDATA[middle\n]]></part></file>\n" +
		"<file path=\"a.txt\" parts=\"1\"><part id=\"1\"><![CDATA[new\n]]></part></file>\n"

	entries := parser.Parse(responseText)
	if len(entries) != 2 {
		testingHandle.Fatalf("expected two entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].RelativePath != "a.txt" || entries[0].Content != "new\n" {
		testingHandle.Fatalf("duplicate path did not keep later content: %+v", entries[0])
	}
	if entries[1].RelativePath != "b.txt" {
		testingHandle.Fatalf("entry order disturbed: %+v", entries)
	}
}

// TestParseNoMarkersYieldsCommentary verifies that marker-free text becomes a
// single commentary entry.
func TestParseNoMarkersYieldsCommentary(testingHandle *testing.T) {
	parser := NewParser(nil)
	entries := parser.Parse("Here is my analysis of the code.\nNothing to change.\n")

	if len(entries) != 1 {
		testingHandle.Fatalf("expected one commentary entry, got %d", len(entries))
	}
	if entries[0].RelativePath != types.NoteFileName || entries[0].Kind != types.ParsedFileKindNote {
		testingHandle.Fatalf("unexpected entry: %+v", entries[0])
	}
	if !strings.Contains(entries[0].Content, "my analysis") {
		testingHandle.Fatalf("commentary content lost: %q", entries[0].Content)
	}
}

// TestParseCommentaryAroundFiles verifies that prose before, between, and
// after markers accumulates into the commentary entry alongside file entries.
func TestParseCommentaryAroundFiles(testingHandle *testing.T) {
	parser := NewParser(nil)
	responseText := "Intro prose.\n" +
		"<file path=\"a.txt\" parts=\"1\"><part id=\"1\"><![CDATA[body\n]]></part></file>\n" +
		"<response>Summary of changes.</response>\n" +
		"Outro prose.\n"

	entries := parser.Parse(responseText)
	if findEntry(entries, "a.txt") == nil {
		testingHandle.Fatalf("file entry missing: %+v", entries)
	}
	commentary := findEntry(entries, types.NoteFileName)
	if commentary == nil {
		testingHandle.Fatalf("commentary entry missing: %+v", entries)
	}
	for _, expectedFragment := range []string{"Intro prose.", "Summary of changes.", "Outro prose."} {
		if !strings.Contains(commentary.Content, expectedFragment) {
			testingHandle.Fatalf("commentary missing %q: %q", expectedFragment, commentary.Content)
		}
	}
}

// TestParseNewFileAndDelete verifies kind mapping for the creation and
// deletion markers.
func TestParseNewFileAndDelete(testingHandle *testing.T) {
	parser := NewParser(nil)
	responseText := "<new_file path=\"docs/added.md\" parts=\"1\"><part id=\"1\"><![CDATA[added\n]]></part></new_file>\n" +
		"<delete_file path=\"old/gone.txt\" parts=\"1\"><part id=\"1\"><![CDATA[]]></part></delete_file>\n"

	entries := parser.Parse(responseText)
	added := findEntry(entries, "docs/added.md")
	if added == nil || added.Kind != types.ParsedFileKindNewFile || added.Content != "added\n" {
		testingHandle.Fatalf("new_file entry wrong: %+v", added)
	}
	removed := findEntry(entries, "old/gone.txt")
	if removed == nil || removed.Kind != types.ParsedFileKindDelete {
		testingHandle.Fatalf("delete_file entry wrong: %+v", removed)
	}
}

// TestParseRoundTripWithAggregator verifies that parsing a document built by
// the aggregator reproduces the original file contents byte for byte.
func TestParseRoundTripWithAggregator(testingHandle *testing.T) {
	sources := []types.SourceFile{
		{RelativePath: "a.go", Content: "package a\n\nfunc A() {}\n"},
		{RelativePath: "weird.txt", Content: "contains ]]> terminator\nand more\n"},
		{RelativePath: "noeol.txt", Content: "no trailing newline"},
	}

	for _, chunkSize := range []int{0, 1, 2, 100} {
		aggregator := aggregate.New(chunkSize, nil, nil)
		document := aggregator.BuildDocument(sources)

		parser := NewParser(nil)
		entries := parser.Parse(document)
		for _, source := range sources {
			entry := findEntry(entries, source.RelativePath)
			if entry == nil {
				testingHandle.Fatalf("chunk size %d: %s not parsed", chunkSize, source.RelativePath)
			}
			if entry.Content != source.Content {
				testingHandle.Fatalf("chunk size %d: %s round trip mismatch: got %q want %q",
					chunkSize, source.RelativePath, entry.Content, source.Content)
			}
		}
	}
}

// TestSanitizeRelativePath verifies the dispatch path invariant.
func TestSanitizeRelativePath(testingHandle *testing.T) {
	testCases := []struct {
		name        string
		markerPath  string
		expected    string
		expectError bool
	}{
		{name: "plain", markerPath: "src/x.rs", expected: "src/x.rs"},
		{name: "windows separators", markerPath: "src\\x.rs", expected: "src/x.rs"},
		{name: "redundant segments", markerPath: "src/./x.rs", expected: "src/x.rs"},
		{name: "internal parent collapses", markerPath: "src/sub/../x.rs", expected: "src/x.rs"},
		{name: "empty", markerPath: "", expectError: true},
		{name: "whitespace only", markerPath: "  ", expectError: true},
		{name: "absolute", markerPath: "/etc/passwd", expectError: true},
		{name: "parent escape", markerPath: "../x.rs", expectError: true},
		{name: "nested escape", markerPath: "a/../../x.rs", expectError: true},
	}

	for _, testCase := range testCases {
		testingHandle.Run(testCase.name, func(subtestHandle *testing.T) {
			cleanPath, sanitizeError := SanitizeRelativePath(testCase.markerPath)
			if testCase.expectError {
				if sanitizeError == nil {
					subtestHandle.Fatalf("expected error for %q, got %q", testCase.markerPath, cleanPath)
				}
				return
			}
			if sanitizeError != nil {
				subtestHandle.Fatalf("unexpected error for %q: %v", testCase.markerPath, sanitizeError)
			}
			if cleanPath != testCase.expected {
				subtestHandle.Fatalf("got %q expected %q", cleanPath, testCase.expected)
			}
		})
	}
}

// TestParseInvalidPathDropped verifies that an entry with a traversal path is
// dropped rather than dispatched.
func TestParseInvalidPathDropped(testingHandle *testing.T) {
	parser := NewParser(nil)
	entries := parser.Parse("<file path=\"../escape.txt\" parts=\"1\"><part id=\"1\"><![CDATA[x\n]]></part></file>\n")

	if findEntry(entries, "../escape.txt") != nil || findEntry(entries, "escape.txt") != nil {
		testingHandle.Fatalf("traversal path survived parsing: %+v", entries)
	}
}

// TestConcatenateOrdersByChunkIndex verifies chunk responses join in index
// order regardless of arrival order.
func TestConcatenateOrdersByChunkIndex(testingHandle *testing.T) {
	joined := Concatenate([]types.AiResponse{
		{ChunkIndex: 2, RawText: "second "},
		{ChunkIndex: 1, RawText: "first "},
		{ChunkIndex: 3, RawText: "third"},
	})
	if joined != "first second third" {
		testingHandle.Fatalf("unexpected concatenation %q", joined)
	}
}
