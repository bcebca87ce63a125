// Package types defines the cross-package data structures used by the press CLI.
package types

const (
	// ParsedFileKindFile marks content replacing an existing source file.
	ParsedFileKindFile = "file"
	// ParsedFileKindNewFile marks content for a file that did not exist before the run.
	ParsedFileKindNewFile = "new_file"
	// ParsedFileKindDelete marks a request to remove an existing source file.
	ParsedFileKindDelete = "delete_file"
	// ParsedFileKindNote marks assistant commentary not tied to any source file.
	ParsedFileKindNote = "note"

	// NoteFileName is the reserved relative path used for untagged assistant output.
	NoteFileName = "response.txt"

	// OutputSubdirectoryName is the directory created under the configured
	// output directory for run artifacts (raw response log, rollback data).
	// Parsed files themselves land directly under the output directory.
	OutputSubdirectoryName = "press.output"
	// RawResponseLogName stores the unparsed concatenated model response.
	RawResponseLogName = "raw_response.log"
)

// SourceFile is one file collected by the walker and read by the aggregator.
// It is immutable once read.
type SourceFile struct {
	// Path is the absolute location of the file on disk.
	Path string
	// RelativePath is the slash-separated path relative to the walk root,
	// used as the marker path in both request and response documents.
	RelativePath string
	// Content is the file's full text.
	Content string
}

// PromptChunk is a bounded slice of the aggregated marker document submitted
// as one API request. Index is 1-based. Concatenating Content over chunks in
// Index order reproduces the aggregated document exactly.
type PromptChunk struct {
	Index   int
	Total   int
	Content string
	Tokens  int
}

// AiResponse is the raw completion text returned for one PromptChunk.
type AiResponse struct {
	ChunkIndex int
	RawText    string
}

// FilePart is one part element of a parsed file, identified by its 1-based id.
type FilePart struct {
	ID      int
	Content string
}

// ParsedFile is one output unit recovered from the model response.
type ParsedFile struct {
	// RelativePath is non-empty, slash-cleaned, and never escapes the output
	// root; the parser rejects entries violating this invariant.
	RelativePath string
	// Content is the joined part content in part-id order.
	Content string
	// Parts preserves the individual part ids so the writer can merge sparse
	// updates into an existing file.
	Parts []FilePart
	// Kind is one of the ParsedFileKind constants.
	Kind string
}

// RetryState reports how many attempts a request consumed before the request
// succeeded or gave up. AttemptCount excludes the final successful call.
type RetryState struct {
	AttemptCount int
	MaxRetries   int
}
