package actors

import (
	"encoding/json"
)

// contentTypeJSON and contentTypeStr are the two _abaco_Content-Type tags
// the source assigns to a message payload, carried through unchanged.
const (
	contentTypeJSON = "application/json"
	contentTypeStr  = "str"
)

// resolvePayload implements the message-payload precedence from spec.md
// §4.6 step 2: an explicit "message" field in the parsed JSON body wins;
// otherwise the whole parsed JSON body is the payload; otherwise the raw
// bytes are used as a string. Returns the payload plus the content-type tag
// to record in metadata.
func resolvePayload(body []byte, isJSONContentType bool) (payload interface{}, contentType string) {
	if isJSONContentType && len(body) > 0 {
		var parsed interface{}
		if err := json.Unmarshal(body, &parsed); err == nil {
			if obj, ok := parsed.(map[string]interface{}); ok {
				if msg, ok := obj["message"]; ok {
					// controllers.py:326-329 tags a supplied "message" field
					// as str regardless of the body's own content type.
					return msg, contentTypeStr
				}
			}
			return parsed, contentTypeJSON
		}
	}
	return string(body), contentTypeStr
}
