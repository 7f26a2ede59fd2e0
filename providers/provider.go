package providers

import (
	"context"
	"errors"
	"strings"
)

// ErrUnknownDOI meldet, dass der Provider die DOI nicht kennt.
var ErrUnknownDOI = errors.New("doi not found")

// CitationSource ist das Interface, das jeder Zitations-Provider (z.B. Crossref) implementieren muss.
type CitationSource interface {
	// CitationCount liefert die Zahl der Werke, die die Publikation mit der DOI zitieren.
	CitationCount(ctx context.Context, doi string) (int, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "crossref").
	Name() string
}

// NormalizeDOI entfernt URL- und "doi:"-Präfixe und schreibt klein.
// Liefert "", wenn s keine DOI (10.xxxx/...) enthält.
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, p := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		s = strings.TrimPrefix(s, p)
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "10.") || !strings.Contains(s, "/") {
		return ""
	}
	return s
}
