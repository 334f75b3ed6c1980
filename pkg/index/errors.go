package index

import "errors"

var errNoReader = errors.New("no index reader configured")
