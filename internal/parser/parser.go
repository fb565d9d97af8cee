// Package parser turns Markdown files into a note title and body.
package parser

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a parsed Markdown file.
type Document struct {
	Title string
	Body  string
}

type frontmatter struct {
	Title string `yaml:"title"`
}

// Parse splits optional YAML frontmatter from the body. The title comes
// from the frontmatter "title" field or, failing that, from a leading H1
// which is then removed from the body. Title is empty when neither exists.
func Parse(data []byte) Document {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	fm, body := splitFrontmatter(data)
	body = strings.TrimLeft(body, "\n")

	if fm.Title != "" {
		return Document{Title: strings.TrimSpace(fm.Title), Body: strings.TrimRight(body, "\n")}
	}
	first, rest, _ := strings.Cut(body, "\n")
	if title, ok := strings.CutPrefix(strings.TrimSpace(first), "# "); ok {
		return Document{Title: strings.TrimSpace(title), Body: strings.Trim(rest, "\n")}
	}
	return Document{Body: strings.TrimRight(body, "\n")}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without a closing delimiter, or with invalid YAML, the whole
// content is body.
func splitFrontmatter(data []byte) (frontmatter, string) {
	const delim = "---"
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n")

	if !bytes.HasPrefix(trimmed, []byte(delim+"\n")) {
		return fm, string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data)
	}
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return frontmatter{}, string(data)
	}
	return fm, string(rest[idx+1+len(delim):])
}
