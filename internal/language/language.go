package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Normalize resolves a user-supplied language identifier ("ru", "rus",
// "Russian", "pt-BR") to its base ISO 639 code. Engines and subtitle file
// names all use the normalized form.
func Normalize(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("language code required")
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		// Full English names ("russian") are not BCP 47; try a reverse
		// lookup through the display catalogue.
		if resolved, ok := lookupByName(trimmed); ok {
			return resolved, nil
		}
		return "", fmt.Errorf("unrecognized language %q: %w", trimmed, err)
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", fmt.Errorf("unrecognized language %q", trimmed)
	}
	return base.String(), nil
}

// DisplayName returns the English name for a language code, falling back to
// the code itself when unknown.
func DisplayName(code string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

func lookupByName(name string) (string, bool) {
	want := strings.ToLower(name)
	namer := display.English.Languages()
	for _, tag := range display.Supported.Tags() {
		if strings.ToLower(namer.Name(tag)) != want {
			continue
		}
		base, conf := tag.Base()
		if conf == language.No {
			continue
		}
		return base.String(), true
	}
	return "", false
}
