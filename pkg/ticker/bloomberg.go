// Package ticker converts third-party ticker notations into provider
// identifiers.
package ticker

import (
	"fmt"
	"strings"
)

const bloombergPrefix = "ih:bl:"

// Bloomberg formats Bloomberg tickers as provider identifiers, e.g.
// "SPX Index" becomes "ih:bl:spx index". When fields is non-nil it must have
// one entry per ticker; a non-empty field is appended after a colon.
func Bloomberg(tickers []string, fields []string) ([]string, error) {
	if fields != nil && len(fields) != len(tickers) {
		return nil, fmt.Errorf("got %d fields for %d tickers", len(fields), len(tickers))
	}

	out := make([]string, len(tickers))
	for i, t := range tickers {
		id := bloombergPrefix + strings.ToLower(t)
		if fields != nil && fields[i] != "" {
			id += ":" + strings.ToLower(fields[i])
		}
		out[i] = id
	}
	return out, nil
}
