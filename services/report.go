package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"rpmt/models"
	"rpmt/providers"
	"rpmt/storage"
)

var reportHeader = []string{
	"id", "title", "authors", "editors", "type", "date_published", "publication_name",
	"publisher", "publisher_type", "publisher_location", "vol_issue_no", "doi_url", "isbn_issn",
	"web_of_science", "elsevier_scopus", "elsevier_sciencedirect", "pubmed_medline",
	"ched_recognized", "other_database", "citations", "creator",
	"publication_proof", "utilization_proof", "pdf", "reference",
}

// Report exportiert Projekte als CSV.
type Report struct {
	Projects *ProjectService
	Store    storage.ObjectStore
}

// NewReport erstellt einen neuen Report.
func NewReport(projects *ProjectService, store storage.ObjectStore) *Report {
	return &Report{Projects: projects, Store: store}
}

// WriteCSV schreibt alle Projekte, die f entsprechen, nach w.
func (r *Report) WriteCSV(ctx context.Context, w io.Writer, f ProjectFilter) error {
	projects, err := r.Projects.List(ctx, f)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for i := range projects {
		if err := cw.Write(r.row(&projects[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (r *Report) row(p *models.Project) []string {
	creator := ""
	if p.Creator != nil {
		creator = p.Creator.Username
	}
	return []string{
		strconv.FormatUint(uint64(p.ID), 10),
		p.Title,
		JoinNames(p.AuthorNames()),
		JoinNames(p.EditorNames()),
		p.Type,
		p.DatePublished.Format("2006-01-02"),
		p.PublicationName,
		p.Publisher,
		p.PublisherType,
		p.PublisherLocation,
		strconv.Itoa(p.VolIssueNo),
		p.DOIURL,
		p.ISBNISSN,
		yesNo(p.WebOfScience),
		yesNo(p.ElsevierScopus),
		yesNo(p.ElsevierScienceDirect),
		yesNo(p.PubmedMedline),
		yesNo(p.CHEDRecognized),
		p.OtherDatabase,
		strconv.Itoa(p.Citations),
		creator,
		r.proofURL(p.PublicationProof),
		r.proofURL(p.UtilizationProof),
		r.proofURL(p.PDF),
		FormatReference(p),
	}
}

func (r *Report) proofURL(name string) string {
	if IsEmptyProof(name) || r.Store == nil {
		return ""
	}
	return r.Store.PublicURL(name)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// FormatReference rendert ein Projekt als kompakte Literaturangabe.
func FormatReference(p *models.Project) string {
	authors := JoinNames(p.AuthorNames())
	if authors == "" {
		authors = "Unknown Authors"
	}
	year := "n.d."
	if !p.DatePublished.IsZero() {
		year = strconv.Itoa(p.DatePublished.Year())
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "Untitled"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s). %s.", authors, year, title)
	if p.PublicationName != "" {
		fmt.Fprintf(&b, " %s", p.PublicationName)
		if p.VolIssueNo > 0 {
			fmt.Fprintf(&b, ", %d", p.VolIssueNo)
		}
		b.WriteString(".")
	}
	if p.Publisher != "" {
		fmt.Fprintf(&b, " %s", p.Publisher)
		if p.PublisherLocation != "" {
			fmt.Fprintf(&b, ", %s", p.PublisherLocation)
		}
		b.WriteString(".")
	}
	if doi := providers.NormalizeDOI(p.DOIURL); doi != "" {
		fmt.Fprintf(&b, " doi:%s", doi)
	} else if p.DOIURL != "" {
		fmt.Fprintf(&b, " %s", p.DOIURL)
	}
	return b.String()
}
