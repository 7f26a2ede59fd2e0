package models

import (
	"time"
)

// Sentinel-Dateinamen für leere Nachweis-Slots.
const (
	NoImage = "none.png"
	NoPDF   = "none.pdf"
)

// Project repräsentiert eine erfasste Publikation bzw. ein Forschungsprojekt.
type Project struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// CreatorID wird beim Anlegen gesetzt und danach nie geändert.
	CreatorID uint  `json:"creator_id" gorm:"not null;index"`
	Creator   *User `json:"-" gorm:"foreignKey:CreatorID"`

	Title         string    `json:"title" gorm:"size:256;not null"`
	Abstract      string    `json:"abstract" gorm:"size:512;not null;default:''"`
	Type          string    `json:"type" gorm:"size:64;not null"`
	DatePublished time.Time `json:"date_published" gorm:"type:date;not null"`

	PublicationName   string `json:"publication_name" gorm:"size:128;not null"`
	Publisher         string `json:"publisher" gorm:"size:64;not null"`
	PublisherType     string `json:"publisher_type" gorm:"size:32;not null"`
	PublisherLocation string `json:"publisher_location" gorm:"size:16;not null"`
	VolIssueNo        int    `json:"vol_issue_no" gorm:"not null"`
	DOIURL            string `json:"doi_url" gorm:"column:doi_url;size:256;uniqueIndex;not null"`
	ISBNISSN          string `json:"isbn_issn" gorm:"column:isbn_issn;size:4;not null"`

	// Indexierungsdatenbanken
	WebOfScience          bool   `json:"web_of_science" gorm:"not null;default:false"`
	ElsevierScopus        bool   `json:"elsevier_scopus" gorm:"not null;default:false"`
	ElsevierScienceDirect bool   `json:"elsevier_sciencedirect" gorm:"column:elsevier_sciencedirect;not null;default:false"`
	PubmedMedline         bool   `json:"pubmed_medline" gorm:"not null;default:false"`
	CHEDRecognized        bool   `json:"ched_recognized" gorm:"column:ched_recognized;not null;default:false"`
	OtherDatabase         string `json:"other_database" gorm:"size:128;not null;default:''"`

	Citations int `json:"citations" gorm:"not null;default:0"`

	// Nachweise: echter Objektname oder Sentinel (NoImage / NoPDF)
	PublicationProof string `json:"publication_proof" gorm:"size:256;not null"`
	UtilizationProof string `json:"utilization_proof" gorm:"size:256;not null"`
	PDF              string `json:"pdf" gorm:"column:pdf;size:256;not null"`

	AuthorLinks []AuthorProject `json:"authors,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	EditorLinks []EditorProject `json:"editors,omitempty" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Project) TableName() string {
	return "projects"
}

// AuthorNames liefert die Namen der geladenen Autoren in Verknüpfungsreihenfolge.
func (p *Project) AuthorNames() []string {
	names := make([]string, 0, len(p.AuthorLinks))
	for _, l := range p.AuthorLinks {
		names = append(names, l.Author.Name)
	}
	return names
}

// EditorNames liefert die Namen der geladenen Herausgeber in Verknüpfungsreihenfolge.
func (p *Project) EditorNames() []string {
	names := make([]string, 0, len(p.EditorLinks))
	for _, l := range p.EditorLinks {
		names = append(names, l.Editor.Name)
	}
	return names
}
