package crossref

// WorkResponse ist die Top-Level-Struktur der Crossref-Antwort auf /works/{doi}.
type WorkResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// Work enthält die hier benötigten Felder eines Werks.
type Work struct {
	DOI                 string   `json:"DOI"`
	Title               []string `json:"title"`
	IsReferencedByCount int      `json:"is-referenced-by-count"`
}
