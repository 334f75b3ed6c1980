// Package index resolves query tokens against the persisted inverted index.
package index

import (
	"context"

	"github.com/rubiojr/sift/pkg/fallback"
	"github.com/rubiojr/sift/pkg/log"
)

// Reader reads the url list stored for one exact word.
// storage.Store implements it.
type Reader interface {
	Lookup(ctx context.Context, word string) ([]string, error)
}

type Lookup struct {
	reader Reader
	logger *log.Logger
}

func NewLookup(reader Reader) *Lookup {
	return &Lookup{reader: reader, logger: log.ForService("index")}
}

// Resolve looks every token up in order and concatenates the url lists.
// Misses, store failures and undecodable entries contribute nothing. Urls
// repeated across tokens are kept.
func (l *Lookup) Resolve(ctx context.Context, tokens []string) []string {
	urls := []string{}
	for _, token := range tokens {
		found := fallback.Resolve(ctx, "store.lookup", func(ctx context.Context) ([]string, error) {
			if l.reader == nil {
				return nil, errNoReader
			}
			return l.reader.Lookup(ctx, token)
		}, nil)
		l.logger.Debugf("token %q -> %d urls", token, len(found))
		urls = append(urls, found...)
	}
	return urls
}
