package openai

import (
	"bytes"
	"encoding/json"
)

type responsesResponse struct {
	Output []responseOutputItem `json:"output"`
}

type responseOutputItem struct {
	Type    string                `json:"type"`
	Content []responseContentPart `json:"content"`
}

type responseContentPart struct {
	Type string          `json:"type"`
	Text json.RawMessage `json:"text"`
}

// Text of a content part. It is either a plain string or an object holding
// the string in "value".
func (p responseContentPart) text() string {
	if len(p.Text) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(p.Text, &plain); err == nil {
		return plain
	}

	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(p.Text, &wrapped); err == nil {
		return wrapped.Value
	}

	return ""
}

// ExtractText returns the answer text from a Responses API body.
//
// Output items are searched in order, and the first content part of type
// output_text or text is used from each. The first non-empty text wins. When
// there is none, the whole response is returned as indented JSON.
func ExtractText(raw []byte) string {
	var response responsesResponse
	if err := json.Unmarshal(raw, &response); err == nil {
		for _, item := range response.Output {
			for _, part := range item.Content {
				if part.Type != "output_text" && part.Type != "text" {
					continue
				}
				if text := part.text(); text != "" {
					return text
				}
				break
			}
		}
	}

	return indented(raw)
}

func indented(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
