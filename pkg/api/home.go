package api

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/rubiojr/sift/pkg/version"
)

const homeStyle = `
body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 15vh auto; padding: 0 1rem; color: #222; }
h1 { font-weight: 600; letter-spacing: -0.02em; }
form { display: flex; gap: 0.5rem; }
input[type=search] { flex: 1; padding: 0.5rem 0.75rem; font-size: 1rem; border: 1px solid #bbb; border-radius: 6px; }
button { padding: 0.5rem 1rem; font-size: 1rem; border-radius: 6px; border: 1px solid #888; background: #f4f4f4; cursor: pointer; }
footer { margin-top: 3rem; font-size: 0.8rem; color: #888; }
`

// homePage is the landing page with the search form. The form targets
// /search/ so results come back through the configured template.
func homePage(query string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>sift</title><style>`+homeStyle+`</style></head><body>`+
			`<h1>sift</h1>`+
			`<form action="/search/" method="get">`+
			`<input type="search" name="query" autofocus placeholder="Search the index" value="`+
			templ.EscapeString(query)+`">`+
			`<button type="submit">Search</button></form>`+
			`<footer>sift `+templ.EscapeString(version.Version)+`</footer>`+
			`</body></html>`)
		return err
	})
}
