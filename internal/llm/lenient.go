package llm

import "strings"

// CarveJSONObject cuts the first '{' through the last '}' out of a model
// reply, discarding prose or code fences around the JSON document. Returns
// false when the reply holds no object at all.
func CarveJSONObject(reply string) (string, bool) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return "", false
	}
	return reply[start : end+1], true
}
