// Package extract turns source documents into markdown text the translation
// pipeline can work on, and assembles translated text back into an output
// file. Container formats with real pagination (PDF, EPUB) are handled by
// external tooling; this package covers markdown, plain text and bare HTML.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"transbooks/internal/models"
	"transbooks/internal/util"
)

// CharsPerPage approximates one "page" of prose for cost estimation when the
// source format has no physical pages.
const CharsPerPage = 1800

// Meta is document metadata used for titling the output.
type Meta struct {
	Title  string
	Author string
}

// Extractor produces translatable markdown from a source document.
type Extractor interface {
	// ExtractMarkdown returns the document as markdown text.
	ExtractMarkdown(path string) (string, error)
	// CountPages estimates the document's unit count for cost estimation.
	CountPages(path string) (int, error)
	// Metadata returns best-effort title and author.
	Metadata(path string) (Meta, error)
}

// ForFile selects an extractor by file extension.
func ForFile(path string) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return MarkdownExtractor{}, nil
	case ".html", ".htm":
		return HTMLExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", models.ErrValidation, filepath.Ext(path))
	}
}

// MarkdownExtractor passes markdown and plain text through unchanged.
type MarkdownExtractor struct{}

func (MarkdownExtractor) ExtractMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}
	text, err := util.CleanContent(data, filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}
	return text, nil
}

func (e MarkdownExtractor) CountPages(path string) (int, error) {
	text, err := e.ExtractMarkdown(path)
	if err != nil {
		return 0, err
	}
	return estimatePages(text), nil
}

func (e MarkdownExtractor) Metadata(path string) (Meta, error) {
	text, err := e.ExtractMarkdown(path)
	if err != nil {
		return Meta{}, err
	}
	return Meta{Title: titleFromMarkdown(text, path)}, nil
}

func estimatePages(text string) int {
	n := len(strings.TrimSpace(text))
	if n == 0 {
		return 0
	}
	pages := (n + CharsPerPage - 1) / CharsPerPage
	return pages
}

// titleFromMarkdown takes the first heading, falling back to the filename stem.
func titleFromMarkdown(text, path string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
		}
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return stem
}

// Assemble writes the translated document into workDir as RU_<stem>.md and
// returns its path. The title becomes a top-level heading unless the body
// already opens with one.
func Assemble(workDir, filename, title, body string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	outPath := filepath.Join(workDir, "RU_"+stem+".md")

	var b strings.Builder
	if title != "" && !strings.HasPrefix(strings.TrimSpace(body), "# ") {
		b.WriteString("# " + title + "\n\n")
	}
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}

	if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write output %s: %w", outPath, err)
	}
	log.Infof("Assembled output: %s (%d bytes)", outPath, b.Len())
	return outPath, nil
}
