// Package render turns extracted symbol trees into human- or
// machine-readable output, and prints a one-line progress status to
// stderr while an analysis run is in flight.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"codescope/internal/analyze/extractor"
	"codescope/internal/analyze/lsptypes"
	"codescope/internal/analyze/transport"
)

// Format selects an output renderer.
type Format int

const (
	Markdown Format = iota
	JSON
)

// ParseFormat maps a CLI flag value to a Format, defaulting to
// Markdown for anything unrecognized.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return JSON
	}
	return Markdown
}

// FileResult is one analyzed file's symbol tree, keyed by its path for
// multi-file rendering.
type FileResult struct {
	Path    string
	Symbols []extractor.SymbolInfo
}

// Render renders one or more files' results in the given format.
func Render(format Format, results []FileResult) string {
	switch format {
	case JSON:
		return renderJSON(results)
	default:
		return renderMarkdown(results)
	}
}

func renderMarkdown(results []FileResult) string {
	var b strings.Builder
	if len(results) == 1 {
		b.WriteString(formatFileMarkdown(results[0]))
		return b.String()
	}

	fmt.Fprintf(&b, "# Code Analysis\n\n")
	fmt.Fprintf(&b, "Analyzed %d file(s)\n\n", len(results))
	b.WriteString("---\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "## File: `%s`\n\n", r.Path)
		b.WriteString(formatFileMarkdown(r))
		b.WriteString("\n---\n\n")
	}
	return b.String()
}

func formatFileMarkdown(r FileResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Code Analysis: `%s`\n\n", r.Path)

	functions := extractor.Functions(r.Symbols)
	types := extractor.Types(r.Symbols)
	variables := extractor.Variables(r.Symbols)

	inSet := func(set []extractor.SymbolInfo, sym extractor.SymbolInfo) bool {
		for _, s := range set {
			if s.Name == sym.Name && s.Kind == sym.Kind {
				return true
			}
		}
		return false
	}

	writeSection := func(title string, symbols []extractor.SymbolInfo) {
		if len(symbols) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		for _, sym := range symbols {
			writeSymbolMarkdown(&b, sym)
			b.WriteString("\n---\n\n")
		}
	}

	writeSection("Functions", functions)
	writeSection("Types", types)
	writeSection("Variables & Constants", variables)

	var other []extractor.SymbolInfo
	for _, sym := range r.Symbols {
		if !inSet(functions, sym) && !inSet(types, sym) && !inSet(variables, sym) {
			other = append(other, sym)
		}
	}
	writeSection("Other Symbols", other)

	return b.String()
}

func writeSymbolMarkdown(b *strings.Builder, sym extractor.SymbolInfo) {
	fmt.Fprintf(b, "### `%s` (%s)\n\n", sym.Name, kindName(sym.Kind))

	if sym.Detail != "" {
		fmt.Fprintf(b, "**Signature:** `%s`\n\n", sym.Detail)
	}
	if sym.Documentation != "" {
		b.WriteString("**Documentation:**\n\n")
		b.WriteString(sym.Documentation)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(b, "**Location:** Line %d-%d\n\n", sym.Range.Start.Line+1, sym.Range.End.Line+1)

	if len(sym.Children) > 0 {
		b.WriteString("**Fields:**\n\n")
		for _, child := range sym.Children {
			fmt.Fprintf(b, "- `%s`: %s (%s)\n", child.Name, child.Detail, kindName(child.Kind))
			if child.Documentation != "" {
				firstLine := child.Documentation
				if nl := strings.IndexByte(firstLine, '\n'); nl >= 0 {
					firstLine = firstLine[:nl]
				}
				fmt.Fprintf(b, "  - %s\n", firstLine)
			}
		}
		b.WriteString("\n")
	}
}

type jsonSymbol struct {
	Name          string       `json:"name"`
	Kind          string       `json:"kind"`
	Detail        string       `json:"detail,omitempty"`
	Documentation string       `json:"documentation,omitempty"`
	LineStart     uint32       `json:"line_start"`
	LineEnd       uint32       `json:"line_end"`
	Children      []jsonSymbol `json:"children,omitempty"`
}

func toJSONSymbol(sym extractor.SymbolInfo) jsonSymbol {
	children := make([]jsonSymbol, 0, len(sym.Children))
	for _, c := range sym.Children {
		children = append(children, toJSONSymbol(c))
	}
	return jsonSymbol{
		Name:          sym.Name,
		Kind:          kindName(sym.Kind),
		Detail:        sym.Detail,
		Documentation: sym.Documentation,
		LineStart:     sym.Range.Start.Line + 1,
		LineEnd:       sym.Range.End.Line + 1,
		Children:      children,
	}
}

type jsonFile struct {
	File    string       `json:"file"`
	Symbols []jsonSymbol `json:"symbols"`
}

func renderJSON(results []FileResult) string {
	toFile := func(r FileResult) jsonFile {
		symbols := make([]jsonSymbol, 0, len(r.Symbols))
		for _, s := range r.Symbols {
			symbols = append(symbols, toJSONSymbol(s))
		}
		return jsonFile{File: r.Path, Symbols: symbols}
	}

	var payload any
	if len(results) == 1 {
		payload = toFile(results[0])
	} else {
		files := make([]jsonFile, 0, len(results))
		for _, r := range results {
			files = append(files, toFile(r))
		}
		payload = struct {
			Files []jsonFile `json:"files"`
		}{Files: files}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to serialize: %s"}`, err)
	}
	return string(data)
}

func kindName(kind lsptypes.SymbolKind) string {
	switch kind {
	case extractor.KindFile:
		return "File"
	case extractor.KindModule:
		return "Module"
	case extractor.KindNamespace:
		return "Namespace"
	case extractor.KindPackage:
		return "Package"
	case extractor.KindClass:
		return "Class"
	case extractor.KindMethod:
		return "Method"
	case extractor.KindProperty:
		return "Property"
	case extractor.KindField:
		return "Field"
	case extractor.KindConstructor:
		return "Constructor"
	case extractor.KindEnum:
		return "Enum"
	case extractor.KindInterface:
		return "Interface"
	case extractor.KindFunction:
		return "Function"
	case extractor.KindVariable:
		return "Variable"
	case extractor.KindConstant:
		return "Constant"
	case extractor.KindString:
		return "String"
	case extractor.KindNumber:
		return "Number"
	case extractor.KindBoolean:
		return "Boolean"
	case extractor.KindArray:
		return "Array"
	case extractor.KindObject:
		return "Object"
	case extractor.KindKey:
		return "Key"
	case extractor.KindNull:
		return "Null"
	case extractor.KindEnumMember:
		return "Enum Member"
	case extractor.KindStruct:
		return "Struct"
	case extractor.KindEvent:
		return "Event"
	case extractor.KindOperator:
		return "Operator"
	case extractor.KindTypeParameter:
		return "Type Parameter"
	default:
		return "Unknown"
	}
}

// Progress renders $/progress state to a single status line on stderr,
// overwriting itself on each update rather than drawing a multi-bar
// display — a one-shot CLI run doesn't need more than that.
type Progress struct {
	enabled  bool
	lastLine string
}

// NewProgress builds a Progress display. isTerminal should reflect
// whether stderr is attached to a terminal; redirected output stays
// silent so scripted/piped runs aren't polluted with status text.
func NewProgress(isTerminal bool) *Progress {
	return &Progress{enabled: isTerminal}
}

// Update redraws the status line from the current snapshot of
// per-token progress state. Each token's line is written in map
// iteration order, each overwriting the previous one on the same stderr
// line, so the line left showing is that of the last token visited.
func (p *Progress) Update(states map[string]transport.ProgressState) {
	if !p.enabled || len(states) == 0 {
		return
	}
	for _, state := range states {
		line := formatProgressLine(state)
		if line == "" || line == p.lastLine {
			continue
		}
		p.lastLine = line
		fmt.Fprintf(os.Stderr, "\r\033[K%s", line)
	}
}

// Done clears the status line.
func (p *Progress) Done() {
	if !p.enabled || p.lastLine == "" {
		return
	}
	fmt.Fprint(os.Stderr, "\r\033[K")
	p.lastLine = ""
}

func formatProgressLine(state transport.ProgressState) string {
	switch state.Kind {
	case "begin", "report":
		if state.Percentage != nil {
			return fmt.Sprintf("%s: %s (%d%%)", state.Title, state.Message, *state.Percentage)
		}
		if state.Message != "" {
			return fmt.Sprintf("%s: %s", state.Title, state.Message)
		}
		return state.Title
	default:
		return ""
	}
}
