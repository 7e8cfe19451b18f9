package convert

// MaxOutputTokens bounds the model reply for every conversion.
const MaxOutputTokens = 4096

// Request is the provider-neutral chat request.
type Request struct {
	System          string
	Messages        []Message
	Profile         Profile
	MaxOutputTokens int
}

// Build attaches the rulebook, the profile and the output bound to msg.
func Build(msg Message, opts Options) Request {
	return Request{
		System:          Rulebook,
		Messages:        []Message{msg},
		Profile:         opts.Profile(),
		MaxOutputTokens: MaxOutputTokens,
	}
}
