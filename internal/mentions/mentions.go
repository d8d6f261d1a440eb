package mentions

import (
	"regexp"
	"strings"

	"mangrove/internal/models"
)

// Node type editors emit for an @mention reference.
const mentionNodeType = "mention"

var plainMentionPattern = regexp.MustCompile(`@(\w+)`)

// Extract returns the set of usernames mentioned in a serialized
// content body, lowercased and deduplicated. Content that parses as a
// typed document tree is walked node by node; anything else goes
// through the plain-text scan. Both paths produce the same shape so
// downstream fan-out never cares which one ran.
func Extract(content string) []string {
	if doc, ok := models.ParseDocument(content); ok {
		return fromDocument(doc)
	}
	return fromText(content)
}

// fromDocument walks the node tree depth-first, collecting the
// username attr of every mention node. Children are visited for every
// node type; unknown types just contribute their subtree.
func fromDocument(doc *models.DocNode) []string {
	seen := make(map[string]bool)
	result := make([]string, 0)

	var walk func(node *models.DocNode)
	walk = func(node *models.DocNode) {
		if node.Type == mentionNodeType {
			if username := mentionUsername(node); username != "" {
				if !seen[username] {
					seen[username] = true
					result = append(result, username)
				}
			}
		}
		for i := range node.Content {
			walk(&node.Content[i])
		}
	}
	walk(doc)

	return result
}

// mentionUsername pulls the referenced username out of a mention
// node's attrs. Editors vary between "id" and "label"; the label form
// carries a leading "@".
func mentionUsername(node *models.DocNode) string {
	if node.Attrs == nil {
		return ""
	}
	if id, ok := node.Attrs["id"].(string); ok && id != "" {
		return strings.ToLower(id)
	}
	if label, ok := node.Attrs["label"].(string); ok && label != "" {
		return strings.ToLower(strings.TrimPrefix(label, "@"))
	}
	return ""
}

// fromText scans marked-up plain text for @username references.
func fromText(content string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0)

	for _, match := range plainMentionPattern.FindAllStringSubmatch(content, -1) {
		username := strings.ToLower(match[1])
		if !seen[username] {
			seen[username] = true
			result = append(result, username)
		}
	}
	return result
}
