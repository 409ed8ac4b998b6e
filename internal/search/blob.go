package search

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/searchforge/searchforge/internal/model"
)

// BuildBlob concatenates all searchable fields of an item into the single
// text blob that feeds both the full-text vector and the embedding input.
// Markdown values are flattened to plain text first.
func BuildBlob(fields []model.Field) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		if !field.Searchable {
			continue
		}
		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}
		parts = append(parts, StripMarkdown(value))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// StripMarkdown walks the goldmark AST and keeps only text content, so
// formatting noise never pollutes ranking or embeddings.
func StripMarkdown(markdown string) string {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var parts []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if fenced, ok := node.(*ast.FencedCodeBlock); ok {
			var code strings.Builder
			for i := 0; i < fenced.Lines().Len(); i++ {
				line := fenced.Lines().At(i)
				code.Write(line.Value(reader.Source()))
			}
			if trimmed := strings.TrimSpace(code.String()); trimmed != "" {
				parts = append(parts, trimmed)
			}
			continue
		}
		if txt := extractText(node, reader.Source()); txt != "" {
			parts = append(parts, txt)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(markdown)
	}
	return strings.Join(parts, "\n")
}

// Truncate bounds the blob so provider input limits are never exceeded.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
