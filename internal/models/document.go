package models

import "encoding/json"

// DocNode is one node of a rich-text document, the shape editors like
// ProseMirror/Tiptap emit. The comment pipeline treats documents as
// opaque strings; only the mention extractor parses them, and it walks
// Content recursively without caring about Type beyond the mention tag.
type DocNode struct {
	Type    string                 `json:"type"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Text    string                 `json:"text,omitempty"`
	Content []DocNode              `json:"content,omitempty"`
}

// ParseDocument decodes a serialized document. It returns false when
// the payload is not a typed document tree, in which case callers fall
// back to treating the content as marked-up plain text.
func ParseDocument(content string) (*DocNode, bool) {
	var node DocNode
	if err := json.Unmarshal([]byte(content), &node); err != nil {
		return nil, false
	}
	if node.Type == "" {
		return nil, false
	}
	return &node, true
}
