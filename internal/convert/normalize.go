package convert

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	// MinTextLength guards against accidental partial pastes.
	MinTextLength = 50
	// MaxImageBytes is the largest decoded image accepted.
	MaxImageBytes = 5 * 1024 * 1024
)

// OutputDirective closes every user instruction. Extract relies on it.
const OutputDirective = "Return ONLY valid JSON matching the recipe schema, with no surrounding prose or commentary."

// PartType is the kind of a message part.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Part is one block of a user message. Image parts carry the media type
// and the base64 payload without the data-URL header.
type Part struct {
	Type      PartType
	Text      string
	MediaType string
	Data      string
}

// Message is the provider-neutral user message.
type Message struct {
	Parts []Part
}

// Text concatenates the text parts.
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// ValidateInput checks the input constraints without doing any I/O.
func ValidateInput(in Input) error {
	switch v := in.(type) {
	case URLInput:
		_, err := checkURL(v.URL)
		return err
	case TextInput:
		_, err := checkText(v.Text)
		return err
	case ImageInput:
		_, _, err := splitDataURL(v.DataURL)
		return err
	default:
		return fmt.Errorf("convert: unsupported input type %T", in)
	}
}

// Normalize validates in and builds the user message for it. markup is the
// fetched page content and is only used for URLInput.
func Normalize(in Input, markup string) (Message, error) {
	switch v := in.(type) {
	case URLInput:
		u, err := checkURL(v.URL)
		if err != nil {
			return Message{}, err
		}
		return textMessage(fmt.Sprintf(
			"Here is a recipe from %s. Extract it and convert it into a Swedish-adapted version following the instructions.\n\nPage content:\n%s\n\n%s",
			u, markup, OutputDirective)), nil

	case TextInput:
		text, err := checkText(v.Text)
		if err != nil {
			return Message{}, err
		}
		return textMessage(fmt.Sprintf(
			"Here is a recipe pasted by the user. Extract it and convert it into a Swedish-adapted version following the instructions.\n\nRecipe text:\n%s\n\n%s",
			text, OutputDirective)), nil

	case ImageInput:
		mediaType, data, err := splitDataURL(v.DataURL)
		if err != nil {
			return Message{}, err
		}
		return Message{Parts: []Part{
			{Type: PartImage, MediaType: mediaType, Data: data},
			{Type: PartText, Text: "Extract the recipe from this image and convert it into a Swedish-adapted version following the instructions. " + OutputDirective},
		}}, nil

	default:
		return Message{}, fmt.Errorf("convert: unsupported input type %T", in)
	}
}

func textMessage(text string) Message {
	return Message{Parts: []Part{{Type: PartText, Text: text}}}
}

// checkURL accepts absolute http(s) URLs only.
func checkURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid(EmptyInput, "URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", invalid(MalformedURL, "%v", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", invalid(MalformedURL, "%q is not an absolute URL", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", invalid(MalformedURL, "unsupported scheme %q", u.Scheme)
	}
	return raw, nil
}

func checkText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", invalid(EmptyInput, "text is empty")
	}
	if n := utf8.RuneCountInString(text); n < MinTextLength {
		return "", invalid(TooShort, "%d characters, need at least %d", n, MinTextLength)
	}
	return text, nil
}

var lineBreaks = strings.NewReplacer("\r", "", "\n", "")

// splitDataURL parses "data:<mime>;base64,<payload>" and enforces the
// media type and size limits.
func splitDataURL(raw string) (mediaType, data string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", invalid(EmptyInput, "image is empty")
	}
	if !strings.HasPrefix(raw, "data:") {
		return "", "", invalid(UnsupportedMediaType, "not a data URL")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return "", "", invalid(UnsupportedMediaType, "data URL has no payload")
	}

	params := strings.Split(header, ";")
	mediaType = strings.ToLower(strings.TrimSpace(params[0]))
	if !strings.HasPrefix(mediaType, "image/") {
		return "", "", invalid(UnsupportedMediaType, "media type %q is not an image", mediaType)
	}
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		return "", "", invalid(UnsupportedMediaType, "image data URL must be base64 encoded")
	}

	// Line breaks are legal in wrapped base64 but not in a provider payload.
	payload = lineBreaks.Replace(strings.TrimSpace(payload))
	if payload == "" {
		return "", "", invalid(EmptyInput, "image payload is empty")
	}

	// Reject on the encoded length before paying for a decode.
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+2 {
		return "", "", invalid(OversizedImage, "image exceeds %d bytes", MaxImageBytes)
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", "", invalid(UnsupportedMediaType, "invalid base64 payload: %v", err)
	}
	if len(decoded) == 0 {
		return "", "", invalid(EmptyInput, "image payload is empty")
	}
	if len(decoded) > MaxImageBytes {
		return "", "", invalid(OversizedImage, "image is %d bytes, limit is %d", len(decoded), MaxImageBytes)
	}
	return mediaType, payload, nil
}
