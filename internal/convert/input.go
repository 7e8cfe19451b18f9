// Package convert turns a recipe URL, pasted text or photo into a Swedified
// recipe: it normalizes the input, builds the model request, extracts and
// validates the model's structured reply and classifies every failure.
package convert

// Input is one of URLInput, TextInput or ImageInput. The set is closed: the
// marker method is unexported.
type Input interface {
	Kind() string
	isInput()
}

// URLInput is a recipe page address.
type URLInput struct {
	URL string
}

// TextInput is a pasted recipe.
type TextInput struct {
	Text string
}

// ImageInput is a photo or screenshot of a recipe as a data URL
// ("data:image/jpeg;base64,...").
type ImageInput struct {
	DataURL string
}

func (URLInput) Kind() string   { return "url" }
func (TextInput) Kind() string  { return "text" }
func (ImageInput) Kind() string { return "image" }

func (URLInput) isInput()   {}
func (TextInput) isInput()  {}
func (ImageInput) isInput() {}

// Profile selects a model configuration.
type Profile string

const (
	// ProfileFast trades fidelity for latency and cost.
	ProfileFast Profile = "fast"
	// ProfileQuality is the higher-fidelity model.
	ProfileQuality Profile = "quality"
)

// Options are per-conversion routing parameters.
type Options struct {
	UseFastModel bool
}

// Profile returns the model profile the options select.
func (o Options) Profile() Profile {
	if o.UseFastModel {
		return ProfileFast
	}
	return ProfileQuality
}
