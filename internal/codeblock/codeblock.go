// Package codeblock pulls the fenced code out of a model response.
package codeblock

import "regexp"

// fencePattern matches the first ``` fence with an optional word tag on the
// opening line. Content is matched lazily up to the next fence.
var fencePattern = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)```")

// CodeBlock is the code found in a response. An empty Language means no tag
// was given or no fence was present.
type CodeBlock struct {
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
}

// HasLanguage reports whether the block can be syntax highlighted.
func (b CodeBlock) HasLanguage() bool {
	return b.Language != ""
}

// Extract returns the first fenced block in text. When text has no fenced
// block the whole text is returned verbatim as code.
func Extract(text string) CodeBlock {
	match := fencePattern.FindStringSubmatch(text)
	if match == nil {
		return CodeBlock{Code: text}
	}
	return CodeBlock{Language: match[1], Code: match[2]}
}
