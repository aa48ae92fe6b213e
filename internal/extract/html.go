package extract

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/net/html"

	"transbooks/internal/models"
)

// HTMLExtractor converts bare HTML documents (the payload format inside
// EPUB containers) into markdown: headings, paragraphs, list items and
// images survive, everything else is flattened to text.
type HTMLExtractor struct{}

func (HTMLExtractor) ExtractMarkdown(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %v", models.ErrExtractionFailed, err)
	}

	var b strings.Builder
	renderNode(&b, doc)
	return normalizeBlankLines(b.String()), nil
}

func (e HTMLExtractor) CountPages(path string) (int, error) {
	text, err := e.ExtractMarkdown(path)
	if err != nil {
		return 0, err
	}
	return estimatePages(text), nil
}

func (e HTMLExtractor) Metadata(path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: parse html: %v", models.ErrExtractionFailed, err)
	}
	if title := findTitle(doc); title != "" {
		return Meta{Title: title}, nil
	}
	text, err := e.ExtractMarkdown(path)
	if err != nil {
		return Meta{}, err
	}
	return Meta{Title: titleFromMarkdown(text, path)}, nil
}

var headingLevels = map[string]int{
	"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6,
}

func renderNode(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(collapseSpace(n.Data))
		return
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "head":
			return
		case "br":
			b.WriteString("\n")
			return
		case "img":
			alt, src := attr(n, "alt"), attr(n, "src")
			if src != "" {
				fmt.Fprintf(b, "![%s](%s)", alt, src)
			}
			return
		case "li":
			b.WriteString("\n- ")
		case "p", "div", "blockquote", "ul", "ol", "table", "tr":
			b.WriteString("\n\n")
		default:
			if level, ok := headingLevels[n.Data]; ok {
				b.WriteString("\n\n" + strings.Repeat("#", level) + " ")
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "blockquote", "ul", "ol", "table":
			b.WriteString("\n")
		default:
			if _, ok := headingLevels[n.Data]; ok {
				b.WriteString("\n")
			}
		}
	}
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// collapseSpace squeezes runs of whitespace the way a browser would,
// keeping a single boundary space so inline siblings do not fuse.
func collapseSpace(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	collapsed := strings.Join(strings.Fields(s), " ")
	if isSpace(s[0]) {
		collapsed = " " + collapsed
	}
	if isSpace(s[len(s)-1]) {
		collapsed += " "
	}
	return collapsed
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// normalizeBlankLines trims trailing space per line and squeezes runs of
// blank lines down to one separator.
func normalizeBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true // swallow leading blanks
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	// Drop a trailing blank line.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
