package generate

import (
	"fmt"
	"strings"
)

// stripMarkdownJSON extracts JSON from an LLM response that may contain
// markdown code fences or leading text. The first '{' that is not part
// of a '{{' template token starts the object.
func stripMarkdownJSON(text string) (string, error) {
	content := strings.TrimSpace(text)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := -1
	for i := 0; i < len(content); i++ {
		if content[i] == '{' {
			if i+1 < len(content) && content[i+1] == '{' {
				i++ // skip '{{' pair
				continue
			}
			start = i
			break
		}
	}

	if start < 0 {
		return "", fmt.Errorf("no JSON object found in text")
	}

	return content[start:], nil
}
