package render

import (
	"context"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/rubiojr/sift/pkg/enrich"
	"github.com/rubiojr/sift/pkg/fallback"
	"github.com/rubiojr/sift/pkg/log"
)

/*
Builder (results page)

  * The page is a user supplied HTML template with a single placeholder.
  * Every result becomes one fragment; fragments are concatenated in result
    order and substituted for the first occurrence of the placeholder.
  * The template is read on every Build so edits show up without a restart.
  * An unreadable template renders as an empty page, never as an error.

Trust model:
  * url and favicon come from the index and from fetched markup, so they are
    attribute escaped.
  * The title is inserted as extracted. It is already HTML text taken from
    the source page's <title>.
*/

// DefaultPlaceholder marks where result fragments are injected.
const DefaultPlaceholder = "<!-- LINKS WILL BE INJECTED HERE -->"

// PageRenderer is implemented by *Builder. Callers that only need the page
// accept this so tests can swap in a stub.
type PageRenderer interface {
	Build(results []enrich.Result) string
}

type Builder struct {
	TemplatePath string
	Placeholder  string
	logger       *log.Logger
}

// NewBuilder returns a Builder for the template at path. An empty
// placeholder selects DefaultPlaceholder.
func NewBuilder(path, placeholder string) *Builder {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Builder{
		TemplatePath: path,
		Placeholder:  placeholder,
		logger:       log.ForService("render"),
	}
}

// Build renders results into the template.
func (b *Builder) Build(results []enrich.Result) string {
	page := b.loadTemplate()

	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(Fragment(r))
	}

	b.logger.Debugf("rendered %d results into %d byte template", len(results), len(page))
	return strings.Replace(page, b.placeholder(), sb.String(), 1)
}

// Fragment is the HTML for a single result.
func Fragment(r enrich.Result) string {
	return fmt.Sprintf(`<div class="result"><img src="%s" class="favicon" alt=""><a href="%s">%s</a></div>`,
		html.EscapeString(r.Favicon),
		html.EscapeString(r.URL),
		r.Title,
	)
}

func (b *Builder) placeholder() string {
	if b.Placeholder == "" {
		return DefaultPlaceholder
	}
	return b.Placeholder
}

func (b *Builder) loadTemplate() string {
	return fallback.Resolve(context.Background(), "template.load", func(context.Context) (string, error) {
		if b.TemplatePath == "" {
			return "", fmt.Errorf("no template configured")
		}
		data, err := os.ReadFile(b.TemplatePath)
		if err != nil {
			return "", fmt.Errorf("reading template: %w", err)
		}
		return string(data), nil
	}, "")
}
