// Package parse splits a model completion into per-file segments using the
// filename-marker grammar shared with the aggregator.
package parse

import (
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/presshq/press/internal/types"
)

const (
	fileElementName     = "file"
	newFileElementName  = "new_file"
	deleteElementName   = "delete_file"
	partElementName     = "part"
	responseElementName = "response"
	pathAttributeName   = "path"
	partIDAttributeName = "id"

	warningInvalidPathFormat   = "dropping response entry with invalid path %q"
	warningMalformedTailFormat = "response markup malformed after offset %d; trailing text treated as commentary"
)

// Parser turns raw completion text into parsed file entries.
type Parser struct {
	logger *zap.Logger
}

// NewParser constructs a Parser.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Concatenate joins chunk responses in chunk order into the single text the
// parser scans.
func Concatenate(responses []types.AiResponse) string {
	ordered := make([]types.AiResponse, len(responses))
	copy(ordered, responses)
	sort.SliceStable(ordered, func(left, right int) bool {
		return ordered[left].ChunkIndex < ordered[right].ChunkIndex
	})
	var joined strings.Builder
	for _, response := range ordered {
		joined.WriteString(response.RawText)
	}
	return joined.String()
}

// entryAccumulator tracks one file element while its parts stream in.
type entryAccumulator struct {
	kind  string
	path  string
	parts []types.FilePart
}

// Parse partitions the completion text into parsed files. Text outside any
// marker, content of <response> elements, and everything after a markup error
// accumulate into a single commentary entry named types.NoteFileName, so no
// model output is silently dropped. When the same path appears more than once
// the later occurrence wins; this is documented behavior, not an error.
func (parser *Parser) Parse(rawText string) []types.ParsedFile {
	decoder := xml.NewDecoder(strings.NewReader(rawText))
	decoder.Strict = false

	var orderedPaths []string
	entriesByPath := make(map[string]types.ParsedFile)
	var untagged strings.Builder

	var current *entryAccumulator
	partDepth := 0
	responseDepth := 0

	recordEntry := func(entry types.ParsedFile) {
		if _, seen := entriesByPath[entry.RelativePath]; !seen {
			orderedPaths = append(orderedPaths, entry.RelativePath)
		}
		entriesByPath[entry.RelativePath] = entry
	}

	finishCurrent := func() {
		if current == nil {
			return
		}
		entry := types.ParsedFile{
			RelativePath: current.path,
			Kind:         current.kind,
			Parts:        current.parts,
			Content:      joinParts(current.parts),
		}
		current = nil
		cleanPath, pathError := SanitizeRelativePath(entry.RelativePath)
		if pathError != nil {
			parser.logger.Warn(fmt.Sprintf(warningInvalidPathFormat, entry.RelativePath))
			return
		}
		entry.RelativePath = cleanPath
		recordEntry(entry)
	}

	for {
		token, tokenError := decoder.Token()
		if tokenError != nil {
			// Includes io.EOF. Any other failure degrades the unread tail to
			// commentary instead of failing the run.
			offset := int(decoder.InputOffset())
			if offset >= 0 && offset < len(rawText) {
				parser.logger.Warn(fmt.Sprintf(warningMalformedTailFormat, offset))
				untagged.WriteString(rawText[offset:])
			}
			break
		}

		switch typedToken := token.(type) {
		case xml.StartElement:
			switch typedToken.Name.Local {
			case fileElementName, newFileElementName, deleteElementName:
				finishCurrent()
				current = &entryAccumulator{
					kind: elementKind(typedToken.Name.Local),
					path: attributeValue(typedToken, pathAttributeName),
				}
				partDepth = 0
			case partElementName:
				if current != nil {
					partID := len(current.parts) + 1
					if attributeText := attributeValue(typedToken, partIDAttributeName); attributeText != "" {
						if parsedID, parseError := strconv.Atoi(attributeText); parseError == nil && parsedID > 0 {
							partID = parsedID
						}
					}
					current.parts = append(current.parts, types.FilePart{ID: partID})
					partDepth++
				}
			case responseElementName:
				responseDepth++
			}
		case xml.EndElement:
			switch typedToken.Name.Local {
			case fileElementName, newFileElementName, deleteElementName:
				finishCurrent()
			case partElementName:
				if partDepth > 0 {
					partDepth--
				}
			case responseElementName:
				if responseDepth > 0 {
					responseDepth--
				}
			}
		case xml.CharData:
			text := string(typedToken)
			if current != nil && partDepth > 0 && len(current.parts) > 0 {
				current.parts[len(current.parts)-1].Content += text
			} else {
				// Commentary, <response> content, and stray text between
				// parts all land in the untagged entry.
				untagged.WriteString(text)
			}
		}
	}
	finishCurrent()

	results := make([]types.ParsedFile, 0, len(orderedPaths)+1)
	for _, relativePath := range orderedPaths {
		results = append(results, entriesByPath[relativePath])
	}
	if strings.TrimSpace(untagged.String()) != "" {
		results = append(results, types.ParsedFile{
			RelativePath: types.NoteFileName,
			Content:      untagged.String(),
			Kind:         types.ParsedFileKindNote,
		})
	}
	return results
}

// joinParts concatenates parts in ascending id order. Parts carry their own
// trailing newlines from the marker grammar, so no separator is inserted.
func joinParts(parts []types.FilePart) string {
	ordered := make([]types.FilePart, len(parts))
	copy(ordered, parts)
	sort.SliceStable(ordered, func(left, right int) bool {
		return ordered[left].ID < ordered[right].ID
	})
	var joined strings.Builder
	for _, part := range ordered {
		joined.WriteString(part.Content)
	}
	return joined.String()
}

// elementKind maps a marker element name to its ParsedFile kind.
func elementKind(elementName string) string {
	switch elementName {
	case newFileElementName:
		return types.ParsedFileKindNewFile
	case deleteElementName:
		return types.ParsedFileKindDelete
	default:
		return types.ParsedFileKindFile
	}
}

// attributeValue returns the named attribute of an element, or empty.
func attributeValue(element xml.StartElement, attributeName string) string {
	for _, attribute := range element.Attr {
		if attribute.Name.Local == attributeName {
			return attribute.Value
		}
	}
	return ""
}

// SanitizeRelativePath cleans a marker path and enforces the dispatch
// invariant: non-empty, relative, and confined to the output root.
func SanitizeRelativePath(markerPath string) (string, error) {
	slashPath := strings.ReplaceAll(strings.TrimSpace(markerPath), "\\", "/")
	if slashPath == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.HasPrefix(slashPath, "/") {
		return "", fmt.Errorf("absolute path %q not permitted", markerPath)
	}
	cleanPath := path.Clean(slashPath)
	if cleanPath == "." || cleanPath == ".." || strings.HasPrefix(cleanPath, "../") {
		return "", fmt.Errorf("path %q escapes the output root", markerPath)
	}
	return cleanPath, nil
}
