package ingestion

import (
	"bytes"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DocTypeTextbook is the metadata type stamped on chapter content.
const DocTypeTextbook = "textbook_content"

// MinContentLength is the cleaned length, in characters, a chapter must
// exceed to be worth indexing.
const MinContentLength = 50

// Chapter is a markdown file parsed for indexing.
type Chapter struct {
	// Title is taken from front matter, then the first "# " heading, then the file stem.
	Title string
	// SourceFile is the file's base name.
	SourceFile string
	// Section is the file's base name without extension.
	Section string
	// Content is the markdown body with heading and blank lines removed.
	Content string
}

// SourceID returns the identifier prefix for the chapter's chunks: the title
// with spaces replaced by underscores.
func (c Chapter) SourceID() string {
	return strings.ReplaceAll(c.Title, " ", "_")
}

// Metadata returns the metadata attached to every chunk of the chapter.
func (c Chapter) Metadata() map[string]string {
	return map[string]string{
		"title":       c.Title,
		"source_file": c.SourceFile,
		"section":     c.Section,
		"type":        DocTypeTextbook,
		"source_id":   c.SourceID(),
	}
}

// frontMatter is the subset of Docusaurus front matter we read.
type frontMatter struct {
	Title string `yaml:"title"`
}

// ParseChapter extracts title and cleaned content from a markdown file.
func ParseChapter(path string, raw []byte) Chapter {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	body, fm := splitFrontMatter(raw)

	title := strings.TrimSpace(fm.Title)
	if title == "" {
		title = firstHeading(body)
	}
	if title == "" {
		title = stem
	}

	return Chapter{
		Title:      title,
		SourceFile: base,
		Section:    stem,
		Content:    cleanMarkdown(body),
	}
}

// splitFrontMatter separates a leading YAML front matter block from the body.
// Malformed front matter is left in the body untouched.
func splitFrontMatter(raw []byte) (string, frontMatter) {
	var fm frontMatter
	text := string(bytes.TrimPrefix(raw, []byte("\ufeff")))
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return text, fm
	}

	rest := text[strings.Index(text, "\n")+1:]
	end := strings.Index(rest, "\n---")
	if end == -1 {
		return text, fm
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return text, frontMatter{}
	}

	body := rest[end+len("\n---"):]
	if i := strings.Index(body, "\n"); i != -1 {
		body = body[i+1:]
	} else {
		body = ""
	}
	return body, fm
}

// firstHeading returns the text of the first level-one heading, or "".
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

// cleanMarkdown drops heading lines and blank lines and trims the rest.
func cleanMarkdown(body string) string {
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
