package alert

import "encoding/json"

// Message is a concrete (msg_type, content) pair ready for the chat API.
type Message struct {
	Type    string
	Content map[string]interface{}
}

// A rule inspects the raw webhook body and either produces a message or
// passes. Rules are evaluated in order; the first match wins.
type rule func(body map[string]interface{}) (Message, bool)

var rules = []rule{
	explicitContent,
	cardContent,
	postContent,
	mediaContent,
	imageContent,
	fileContent,
	audioContent,
	stickerContent,
	shareChatContent,
	shareUserContent,
	bareCardContent,
}

// Normalize converts an arbitrary webhook body into a message. The body is
// never mutated; returned content is always an independent copy. The final
// fallback renders the whole body as pretty-printed text, so Normalize always
// succeeds.
func Normalize(body map[string]interface{}) Message {
	for _, r := range rules {
		if msg, ok := r(body); ok {
			return msg
		}
	}

	return fallbackText(body)
}

// Labeled returns a deep copy of the message with a source label applied:
// plain text gets "[label]\n" prefixed to the text field, interactive cards
// get "[label] " prefixed to the header title. Each recipient gets its own
// copy so no clone ever shares state with another.
func (m Message) Labeled(textLabel, cardLabel string) Message {
	out := Message{Type: m.Type, Content: cloneMap(m.Content)}

	switch out.Type {
	case "text":
		if text, ok := out.Content["text"].(string); ok && text != "" {
			out.Content["text"] = "[" + textLabel + "]\n" + text
		}
	case "interactive":
		header, ok := out.Content["header"].(map[string]interface{})

		if !ok {
			break
		}

		title, ok := header["title"].(map[string]interface{})

		if !ok {
			break
		}

		if content, ok := title["content"].(string); ok {
			title["content"] = "[" + cardLabel + "] " + content
		}
	}

	return out
}

func explicitContent(body map[string]interface{}) (Message, bool) {
	content, ok := body["content"].(map[string]interface{})

	if !ok {
		return Message{}, false
	}

	msgType := "text"

	if t, ok := body["msg_type"].(string); ok && t != "" {
		msgType = t
	}

	return Message{Type: msgType, Content: cloneMap(content)}, true
}

func cardContent(body map[string]interface{}) (Message, bool) {
	card, ok := body["card"].(map[string]interface{})

	if !ok {
		return Message{}, false
	}

	return Message{Type: "interactive", Content: cloneMap(card)}, true
}

func postContent(body map[string]interface{}) (Message, bool) {
	post, ok := body["post"]

	if !ok {
		return Message{}, false
	}

	return Message{Type: "post", Content: cloneMap(map[string]interface{}{"post": post})}, true
}

// mediaContent matches bodies carrying both a file key and an image key,
// which the platform treats as a video with a cover image. It must run before
// the single-key image and file rules.
func mediaContent(body map[string]interface{}) (Message, bool) {
	fileKey, okFile := body["file_key"].(string)
	imageKey, okImage := body["image_key"].(string)

	if !okFile || !okImage {
		return Message{}, false
	}

	return Message{Type: "media", Content: map[string]interface{}{
		"file_key":  fileKey,
		"image_key": imageKey,
	}}, true
}

func imageContent(body map[string]interface{}) (Message, bool) {
	imageKey, ok := body["image_key"].(string)

	if !ok {
		return Message{}, false
	}

	return Message{Type: "image", Content: map[string]interface{}{"image_key": imageKey}}, true
}

func fileContent(body map[string]interface{}) (Message, bool) {
	fileKey, ok := body["file_key"].(string)

	if !ok {
		return Message{}, false
	}

	return Message{Type: "file", Content: map[string]interface{}{"file_key": fileKey}}, true
}

func audioContent(body map[string]interface{}) (Message, bool) {
	fileKey, ok := body["audio_key"].(string)

	if !ok {
		return Message{}, false
	}

	return Message{Type: "audio", Content: map[string]interface{}{"file_key": fileKey}}, true
}

func stickerContent(body map[string]interface{}) (Message, bool) {
	fileKey, ok := body["sticker_key"].(string)

	if !ok {
		return Message{}, false
	}

	return Message{Type: "sticker", Content: map[string]interface{}{"file_key": fileKey}}, true
}

func shareChatContent(body map[string]interface{}) (Message, bool) {
	chatID, ok := body["chat_id"].(string)

	if !ok {
		return Message{}, false
	}

	return Message{Type: "share_chat", Content: map[string]interface{}{"chat_id": chatID}}, true
}

func shareUserContent(body map[string]interface{}) (Message, bool) {
	userID, ok := body["user_id"].(string)

	if !ok {
		return Message{}, false
	}

	return Message{Type: "share_user", Content: map[string]interface{}{"user_id": userID}}, true
}

// bareCardContent catches bodies that are themselves an unwrapped interactive
// card, recognizable by their header or elements fields.
func bareCardContent(body map[string]interface{}) (Message, bool) {
	_, hasHeader := body["header"]
	_, hasElements := body["elements"]

	if !hasHeader && !hasElements {
		return Message{}, false
	}

	return Message{Type: "interactive", Content: cloneMap(body)}, true
}

func fallbackText(body map[string]interface{}) Message {
	pretty, err := json.MarshalIndent(body, "", "  ")

	if err != nil {
		pretty = []byte("{}")
	}

	return Message{Type: "text", Content: map[string]interface{}{"text": string(pretty)}}
}

// cloneMap deep-copies a JSON object via a marshal round trip.
func cloneMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return map[string]interface{}{}
	}

	raw, err := json.Marshal(src)

	if err != nil {
		return map[string]interface{}{}
	}

	var dst map[string]interface{}

	if err := json.Unmarshal(raw, &dst); err != nil {
		return map[string]interface{}{}
	}

	return dst
}
