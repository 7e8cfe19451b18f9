package convert

import (
	"context"
	"errors"
	"strings"
	"time"

	"swedify/internal/logger"
	"swedify/internal/recipe"
)

// Fetcher returns the raw markup of a recipe page. Failures should be
// *TransportError so status codes survive to Classify.
type Fetcher interface {
	FetchMarkup(ctx context.Context, url string) (string, error)
}

// Provider performs one non-streaming chat completion.
type Provider interface {
	Complete(ctx context.Context, credential string, req Request) (string, error)
	Name() string
}

// Simplifier shrinks fetched markup before it is sent to the model.
type Simplifier interface {
	Simplify(markup string) (string, error)
}

// maxLoggedReply bounds how much of an unparseable model reply is logged.
const maxLoggedReply = 4000

// Converter runs the conversion pipeline.
type Converter struct {
	fetcher    Fetcher
	provider   Provider
	simplifier Simplifier
	log        *logger.Logger
}

// ConverterOption configures a Converter.
type ConverterOption func(*Converter)

// WithSimplifier sets the markup simplifier used for URL inputs.
func WithSimplifier(s Simplifier) ConverterOption {
	return func(c *Converter) { c.simplifier = s }
}

// NewConverter creates a Converter. fetcher may be nil when URL inputs
// are never converted.
func NewConverter(fetcher Fetcher, provider Provider, log *logger.Logger, opts ...ConverterOption) *Converter {
	c := &Converter{fetcher: fetcher, provider: provider, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert turns in into a validated recipe. Any returned error is a
// *Failure.
func (c *Converter) Convert(ctx context.Context, credential string, in Input, opts Options) (*recipe.Recipe, error) {
	start := time.Now()
	r, err := c.convert(ctx, credential, in, opts)
	if err != nil {
		f := Classify(err)
		c.log.Warn("conversion of %s input failed after %s: %s: %v", kindOf(in), time.Since(start).Round(time.Millisecond), f.Category, err)
		return nil, f
	}
	c.log.Info("converted %s input to %q in %s", in.Kind(), r.Title, time.Since(start).Round(time.Millisecond))
	return r, nil
}

func (c *Converter) convert(ctx context.Context, credential string, in Input, opts Options) (*recipe.Recipe, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}
	if in == nil {
		return nil, invalid(EmptyInput, "no input")
	}
	if err := ValidateInput(in); err != nil {
		return nil, err
	}

	var markup string
	if u, ok := in.(URLInput); ok {
		var err error
		if markup, err = c.fetch(ctx, strings.TrimSpace(u.URL)); err != nil {
			return nil, err
		}
	}

	msg, err := Normalize(in, markup)
	if err != nil {
		return nil, err
	}
	req := Build(msg, opts)

	c.log.Debug("calling %s (%s profile, %d chars of input)", c.provider.Name(), req.Profile, len(msg.Text()))
	text, err := c.provider.Complete(ctx, strings.TrimSpace(credential), req)
	if err != nil {
		return nil, err
	}

	payload, err := Extract(text)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			c.log.Error("model returned invalid JSON: %v", pe.Err)
			c.log.Error("raw response: %s", logger.Truncate(pe.Raw, maxLoggedReply))
			c.log.Error("stripped response: %s", logger.Truncate(pe.Stripped, maxLoggedReply))
		}
		return nil, err
	}
	return Validate(payload, in)
}

func (c *Converter) fetch(ctx context.Context, url string) (string, error) {
	if c.fetcher == nil {
		return "", errors.New("convert: no fetcher configured for URL input")
	}
	c.log.Debug("fetching %s", url)
	markup, err := c.fetcher.FetchMarkup(ctx, url)
	if err != nil {
		return "", err
	}
	if c.simplifier == nil {
		return markup, nil
	}
	simple, err := c.simplifier.Simplify(markup)
	if err != nil || strings.TrimSpace(simple) == "" {
		c.log.Warn("could not simplify markup of %s, sending it as is: %v", url, err)
		return markup, nil
	}
	c.log.Debug("simplified %s from %d to %d bytes", url, len(markup), len(simple))
	return simple, nil
}

func kindOf(in Input) string {
	if in == nil {
		return "empty"
	}
	return in.Kind()
}
