package jira

import "strings"

// Minimal Atlassian Document Format support. Ticket descriptions and
// comment bodies are ADF documents; this backend produces the single
// paragraph / single text-node shape and, when reading, flattens any
// paragraph/text content to plain text. All other node kinds are dropped.

type Doc struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Content []Node `json:"content"`
}

type Node struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// TextDoc wraps plain text into a one-paragraph ADF document.
func TextDoc(text string) *Doc {
	return &Doc{
		Type:    "doc",
		Version: 1,
		Content: []Node{
			{
				Type: "paragraph",
				Content: []Node{
					{Type: "text", Text: text},
				},
			},
		},
	}
}

// PlainText flattens a document to text: paragraph text nodes in document
// order, one line per paragraph, trimmed.
func (d *Doc) PlainText() string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	for _, node := range d.Content {
		flattenNode(&b, node)
	}
	return strings.TrimSpace(b.String())
}

func flattenNode(b *strings.Builder, n Node) {
	switch n.Type {
	case "paragraph":
		for _, child := range n.Content {
			if child.Type == "text" {
				b.WriteString(child.Text)
				b.WriteString("\n")
			}
		}
	default:
		// Images, mentions, code blocks etc. carry no plain-text
		// rendering here; skipped.
	}
}
