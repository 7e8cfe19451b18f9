package convert

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Category is the user-facing class of a failed conversion.
type Category string

const (
	CategoryMissingCredential       Category = "MissingCredential"
	CategoryInvalidCredential       Category = "InvalidCredential"
	CategoryNetworkUnavailable      Category = "NetworkUnavailable"
	CategoryRemoteAccessDenied      Category = "RemoteAccessDenied"
	CategoryRemoteNotFound          Category = "RemoteNotFound"
	CategoryRemoteTimeout           Category = "RemoteTimeout"
	CategoryInvalidStructuredOutput Category = "InvalidStructuredOutput"
	CategoryInvalidInput            Category = "InvalidInput"
	CategoryUnclassified            Category = "Unclassified"
)

// Failure is a classified conversion error. Message is Swedish and meant
// for the end user.
type Failure struct {
	Category Category
	Message  string
	Err      error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

var inputMessages = map[ValidationKind]string{
	EmptyInput:           "Inget recept angavs. Fyll i en länk, klistra in en text eller välj en bild.",
	MalformedURL:         "Länken är inte en giltig webbadress. Kontrollera att den börjar med http:// eller https://.",
	TooShort:             fmt.Sprintf("Texten är för kort för att vara ett recept. Klistra in hela receptet (minst %d tecken).", MinTextLength),
	OversizedImage:       "Bilden är för stor. Välj en bild som är högst 5 MB.",
	UnsupportedMediaType: "Filen är ingen bild som kan läsas. Välj en JPEG-, PNG-, WebP- eller GIF-bild.",
}

// Classify maps err to exactly one category. The checks run in priority
// order and the first match wins. An already classified error is returned
// unchanged.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	fail := func(c Category, msg string) *Failure {
		return &Failure{Category: c, Message: msg, Err: err}
	}

	transports := transportErrors(err)
	status, src := httpStatus(transports)

	switch {
	case errors.Is(err, ErrMissingCredential):
		return fail(CategoryMissingCredential,
			"Ingen API-nyckel är angiven. Lägg till din API-nyckel och försök igen.")

	case src == SourceProvider && (status == http.StatusUnauthorized || status == http.StatusForbidden):
		return fail(CategoryInvalidCredential,
			"API-nyckeln godkändes inte. Kontrollera din API-nyckel och försök igen.")

	// Any HTTP status in the chain means the remote end answered.
	case status == 0 && isNetworkFailure(err, transports):
		return fail(CategoryNetworkUnavailable,
			"Kunde inte ansluta till servern. Kontrollera din internetanslutning och att proxyservern körs, och försök sedan igen.")

	case src == SourceOrigin && (status == http.StatusUnauthorized || status == http.StatusForbidden):
		return fail(CategoryRemoteAccessDenied,
			"Webbplatsen blockerar automatisk hämtning. Ta en skärmdump av receptet och ladda upp den som bild i stället.")

	case src == SourceOrigin && (status == http.StatusNotFound || status == http.StatusGone):
		return fail(CategoryRemoteNotFound,
			"Receptet hittades inte på den adressen. Kontrollera att länken är korrekt.")

	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout || isTimeout(err, transports):
		return fail(CategoryRemoteTimeout,
			"Anslutningen tog för lång tid. Kontrollera din internetanslutning och försök igen.")

	case isParseFailure(err):
		return fail(CategoryInvalidStructuredOutput,
			"AI-modellen svarade med ett recept som inte gick att läsa. Försök igen eller prova en annan källa.")
	}

	var v *ValidationError
	if errors.As(err, &v) {
		msg, ok := inputMessages[v.Kind]
		if !ok {
			msg = "Ogiltig indata: " + v.Detail
		}
		return fail(CategoryInvalidInput, msg)
	}

	if status != 0 {
		return fail(CategoryUnclassified,
			fmt.Sprintf("Misslyckades att konvertera receptet (HTTP %d): %v", status, err))
	}
	return fail(CategoryUnclassified, fmt.Sprintf("Misslyckades att konvertera receptet: %v", err))
}

// transportErrors collects every TransportError in the chain, following
// both single and joined wrapping.
func transportErrors(err error) []*TransportError {
	var out []*TransportError
	var walk func(error)
	walk = func(e error) {
		for e != nil {
			if t, ok := e.(*TransportError); ok {
				out = append(out, t)
			}
			switch u := e.(type) {
			case interface{ Unwrap() []error }:
				for _, inner := range u.Unwrap() {
					walk(inner)
				}
				return
			case interface{ Unwrap() error }:
				e = u.Unwrap()
			default:
				return
			}
		}
	}
	walk(err)
	return out
}

// httpStatus returns the outermost HTTP status in the chain and its source.
func httpStatus(ts []*TransportError) (int, Source) {
	for _, t := range ts {
		if t.Kind == KindHTTPStatus && t.Status != 0 {
			return t.Status, t.Source
		}
	}
	return 0, ""
}

func isNetworkFailure(err error, ts []*TransportError) bool {
	for _, t := range ts {
		if t.Kind == KindNetwork {
			return true
		}
	}
	if len(ts) > 0 || isTimeout(err, ts) {
		return false
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	return errors.As(err, &opErr) || errors.As(err, &dnsErr)
}

func isTimeout(err error, ts []*TransportError) bool {
	for _, t := range ts {
		if t.Kind == KindTimeout {
			return true
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isParseFailure also covers a reply without a title: the model broke the
// contract, the user input was fine.
func isParseFailure(err error) bool {
	var p *ParseError
	return errors.As(err, &p) || IsValidation(err, MissingTitle)
}
