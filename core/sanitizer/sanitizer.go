package sanitizer

import (
	"strings"

	"github.com/siherrmann/directory/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// droppedElements lose their content entirely, not only their tags.
var droppedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Object:   true,
	atom.Noembed:  true,
	atom.Noframes: true,
}

// maxPasses bounds re-sanitizing text whose entities decoded into new markup.
const maxPasses = 4

// Sanitize removes all HTML markup from text and returns the plain text.
// Tags and comments are stripped, the content of script-like elements is dropped
// and character references are decoded.
func Sanitize(text string) string {
	for i := 0; i < maxPasses; i++ {
		if !strings.ContainsAny(text, "<&") {
			return text
		}
		stripped := strip(text)
		if stripped == text {
			return text
		}
		text = stripped
	}
	return angleBrackets.Replace(text)
}

var angleBrackets = strings.NewReplacer("<", "", ">", "")

func strip(text string) string {
	z := html.NewTokenizer(strings.NewReader(text))

	var b strings.Builder
	b.Grow(len(text))
	skipDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			// An unterminated tag like "x<y" ends the input. Its bytes are text.
			if skipDepth == 0 {
				b.WriteString(angleBrackets.Replace(string(z.Raw())))
			}
			return b.String()
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if droppedElements[atom.Lookup(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if droppedElements[atom.Lookup(name)] && skipDepth > 0 {
				skipDepth--
			}
		}
	}
}

// SanitizeString sanitizes the pointed-to text. nil stays nil.
func SanitizeString(text *string) *string {
	if text == nil {
		return nil
	}
	clean := Sanitize(*text)
	return &clean
}

// SanitizeMetadata returns a copy of m with every string leaf sanitized,
// including strings inside nested objects and arrays. Other values pass unchanged.
func SanitizeMetadata(m model.Metadata) model.Metadata {
	if m == nil {
		return nil
	}
	out := make(model.Metadata, len(m))
	for k, v := range m {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return Sanitize(t)
	case map[string]interface{}:
		return map[string]interface{}(SanitizeMetadata(model.Metadata(t)))
	case model.Metadata:
		return SanitizeMetadata(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = sanitizeValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = Sanitize(e)
		}
		return out
	}
	return v
}

// Entity sanitizes the free-text fields of an entity input in place.
func Entity(c *model.EntityCreate) {
	c.Description = SanitizeString(c.Description)
	c.Metadata = SanitizeMetadata(c.Metadata)
}

// EntityUpdate sanitizes the present free-text fields of an entity update in place.
func EntityUpdate(u *model.EntityUpdate) {
	if v, ok := u.Description.Get(); ok {
		u.Description = model.Some(Sanitize(v))
	}
	if v, ok := u.Metadata.Get(); ok {
		u.Metadata = model.Some(SanitizeMetadata(v))
	}
}

// Relationship sanitizes the free-text fields of a relationship input in place.
func Relationship(c *model.RelationshipCreate) {
	c.Description = SanitizeString(c.Description)
	c.Metadata = SanitizeMetadata(c.Metadata)
}

// RelationshipUpdate sanitizes the present free-text fields of a relationship update in place.
func RelationshipUpdate(u *model.RelationshipUpdate) {
	if v, ok := u.Description.Get(); ok {
		u.Description = model.Some(Sanitize(v))
	}
	if v, ok := u.Metadata.Get(); ok {
		u.Metadata = model.Some(SanitizeMetadata(v))
	}
}
