package parser

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// skippedElements never contribute visible article text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"aside":    true,
	"template": true,
}

// blockElements end a paragraph.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"blockquote": true, "pre": true,
}

// ExtractHTML returns the page title and the visible text of an HTML page.
// Block elements are separated by blank lines so paragraph structure
// survives Clean.
func ExtractHTML(raw string) (title, text string, err error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	title = strings.Join(strings.Fields(findTitle(doc)), " ")

	var buf bytes.Buffer
	visibleText(doc, &buf)
	return title, tidyParagraphs(buf.String()), nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return b.String()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}

func visibleText(n *html.Node, buf *bytes.Buffer) {
	if n.Type == html.ElementNode {
		if skippedElements[n.Data] || n.Data == "head" {
			return
		}
		if n.Data == "br" {
			buf.WriteByte('\n')
			return
		}
	}
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visibleText(c, buf)
	}
	if n.Type == html.ElementNode && blockElements[n.Data] {
		buf.WriteString("\n\n")
	}
}

// tidyParagraphs squeezes whitespace inside each paragraph and drops empty
// paragraphs, leaving single newlines only where <br> produced them.
func tidyParagraphs(text string) string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		lines := strings.Split(para, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				kept = append(kept, line)
			}
		}
		if len(kept) > 0 {
			paragraphs = append(paragraphs, strings.Join(kept, "\n"))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
