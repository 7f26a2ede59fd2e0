package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"rpmt/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Werte für das Feld ISBN/ISSN.
var ISBNISSNChoices = []string{"NONE", "ISBN", "ISSN"}

// ProjectInput sind die bearbeitbaren Felder eines Projekts.
type ProjectInput struct {
	Title             string
	Abstract          string
	Authors           string // frei, kommagetrennt
	Editors           string // frei, kommagetrennt
	Type              string
	DatePublished     time.Time
	PublicationName   string
	Publisher         string
	PublisherType     string
	PublisherLocation string
	VolIssueNo        int
	DOIURL            string
	ISBNISSN          string
	Citations         int

	WebOfScience          bool
	ElsevierScopus        bool
	ElsevierScienceDirect bool
	PubmedMedline         bool
	CHEDRecognized        bool
	OtherDatabase         string
}

// InputFromProject füllt ein Formular mit den gespeicherten Werten (Autoren/Herausgeber geladen).
func InputFromProject(p *models.Project) ProjectInput {
	return ProjectInput{
		Title:                 p.Title,
		Abstract:              p.Abstract,
		Authors:               JoinNames(p.AuthorNames()),
		Editors:               JoinNames(p.EditorNames()),
		Type:                  p.Type,
		DatePublished:         p.DatePublished,
		PublicationName:       p.PublicationName,
		Publisher:             p.Publisher,
		PublisherType:         p.PublisherType,
		PublisherLocation:     p.PublisherLocation,
		VolIssueNo:            p.VolIssueNo,
		DOIURL:                p.DOIURL,
		ISBNISSN:              p.ISBNISSN,
		Citations:             p.Citations,
		WebOfScience:          p.WebOfScience,
		ElsevierScopus:        p.ElsevierScopus,
		ElsevierScienceDirect: p.ElsevierScienceDirect,
		PubmedMedline:         p.PubmedMedline,
		CHEDRecognized:        p.CHEDRecognized,
		OtherDatabase:         p.OtherDatabase,
	}
}

// Validate prüft Pflichtfelder, Längen und Wertebereiche.
func (in *ProjectInput) Validate() error {
	verr := &ValidationError{}
	required := func(field, v string, max int) {
		switch {
		case strings.TrimSpace(v) == "":
			verr.Add(field, "This field is required.")
		case utf8.RuneCountInString(v) > max:
			verr.Add(field, fmt.Sprintf("Field cannot be longer than %d characters.", max))
		}
	}
	optional := func(field, v string, max int) {
		if utf8.RuneCountInString(v) > max {
			verr.Add(field, fmt.Sprintf("Field cannot be longer than %d characters.", max))
		}
	}

	required("title", in.Title, 256)
	optional("abstract", in.Abstract, 512)
	required("authors", in.Authors, 512)
	optional("editors", in.Editors, 512)
	required("type", in.Type, 64)
	required("publication_name", in.PublicationName, 128)
	required("publisher", in.Publisher, 64)
	required("publisher_type", in.PublisherType, 32)
	required("publisher_location", in.PublisherLocation, 16)
	required("doi_url", in.DOIURL, 256)
	optional("other_database", in.OtherDatabase, 128)

	if in.DatePublished.IsZero() {
		verr.Add("date_published", "This field is required.")
	}
	if in.VolIssueNo < 0 {
		verr.Add("vol_issue_no", "Number must be at least 0.")
	}
	if in.Citations < 0 {
		verr.Add("citations", "Number must be at least 0.")
	}
	if !isChoice(in.ISBNISSN, ISBNISSNChoices) {
		verr.Add("isbn_issn", "Not a valid choice.")
	}
	if _, ok := verr.Fields["authors"]; !ok && len(ParseNames(in.Authors)) == 0 {
		verr.Add("authors", "At least one author is required.")
	}
	for _, field := range []struct{ key, raw string }{{"authors", in.Authors}, {"editors", in.Editors}} {
		for _, name := range ParseNames(field.raw) {
			if utf8.RuneCountInString(name) > 128 {
				verr.Add(field.key, fmt.Sprintf("Name %q is longer than 128 characters.", name))
			}
		}
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

func isChoice(v string, choices []string) bool {
	for _, c := range choices {
		if v == c {
			return true
		}
	}
	return false
}

func (in *ProjectInput) applyTo(p *models.Project) {
	p.Title = strings.TrimSpace(in.Title)
	p.Abstract = in.Abstract
	p.Type = strings.TrimSpace(in.Type)
	p.DatePublished = in.DatePublished
	p.PublicationName = strings.TrimSpace(in.PublicationName)
	p.Publisher = strings.TrimSpace(in.Publisher)
	p.PublisherType = strings.TrimSpace(in.PublisherType)
	p.PublisherLocation = strings.TrimSpace(in.PublisherLocation)
	p.VolIssueNo = in.VolIssueNo
	p.DOIURL = strings.TrimSpace(in.DOIURL)
	p.ISBNISSN = in.ISBNISSN
	p.Citations = in.Citations
	p.WebOfScience = in.WebOfScience
	p.ElsevierScopus = in.ElsevierScopus
	p.ElsevierScienceDirect = in.ElsevierScienceDirect
	p.PubmedMedline = in.PubmedMedline
	p.CHEDRecognized = in.CHEDRecognized
	p.OtherDatabase = strings.TrimSpace(in.OtherDatabase)
}

// ProjectFilter schränkt List ein.
type ProjectFilter struct {
	Query     string // Teilstring im Titel
	CreatorID uint
	Limit     int
	Offset    int
}

// ProjectService bündelt alle Projektänderungen. Jede Änderung läuft in genau einer
// Datenbanktransaktion; Speicherobjekte werden davor hochgeladen und danach über die
// Outbox gelöscht.
type ProjectService struct {
	DB         *gorm.DB
	Reconciler *Reconciler
	Proofs     *ProofManager
	Outbox     *Outbox
	Logger     *zap.Logger
}

// NewProjectService erstellt einen neuen ProjectService.
func NewProjectService(db *gorm.DB, reconciler *Reconciler, proofs *ProofManager, outbox *Outbox, logger *zap.Logger) *ProjectService {
	return &ProjectService{DB: db, Reconciler: reconciler, Proofs: proofs, Outbox: outbox, Logger: logger}
}

// Create legt ein Projekt mit actor als Ersteller an.
func (s *ProjectService) Create(ctx context.Context, actor *models.User, in ProjectInput, proofs ProofInputs) (project *models.Project, err error) {
	defer func() { recordMutation("create", err) }()

	if actor == nil {
		return nil, ErrForbidden
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	plan, err := s.Proofs.Prepare(ctx, proofs)
	if err != nil {
		return nil, err
	}
	if err := plan.Upload(ctx); err != nil {
		return nil, err
	}

	project = &models.Project{CreatorID: actor.ID}
	in.applyTo(project)
	plan.ApplyTo(project)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(project).Error; err != nil {
			return projectWriteError("create project", err)
		}
		return s.Reconciler.ReconcileTx(tx, project.ID, ParseNames(in.Authors), ParseNames(in.Editors))
	})
	if err != nil {
		plan.Discard(context.WithoutCancel(ctx))
		return nil, err
	}
	plan.Done()

	s.Logger.Info("Project created",
		zap.Uint("project_id", project.ID),
		zap.Uint("creator_id", actor.ID),
		zap.String("title", project.Title))
	return project, nil
}

// Update ändert Felder, Nachweise und Verknüpfungen eines Projekts. Der Ersteller bleibt.
func (s *ProjectService) Update(ctx context.Context, actor *models.User, id uint, in ProjectInput, proofs ProofInputs) (project *models.Project, err error) {
	defer func() { recordMutation("update", err) }()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanMutate(actor, current) {
		return nil, fmt.Errorf("edit project %d: %w", id, ErrForbidden)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	plan, err := s.Proofs.Prepare(ctx, proofs)
	if err != nil {
		return nil, err
	}
	if err := plan.Upload(ctx); err != nil {
		return nil, err
	}

	var obsolete []string
	project = &models.Project{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(project, id).Error; err != nil {
			return dbError("lock project", err)
		}
		in.applyTo(project)
		obsolete = plan.ApplyTo(project)
		if err := tx.Omit(clause.Associations).Save(project).Error; err != nil {
			return projectWriteError("update project", err)
		}
		if err := s.Outbox.EnqueueTx(tx, obsolete...); err != nil {
			return err
		}
		return s.Reconciler.ReconcileTx(tx, project.ID, ParseNames(in.Authors), ParseNames(in.Editors))
	})
	if err != nil {
		plan.Discard(context.WithoutCancel(ctx))
		return nil, err
	}
	plan.Done()

	log := s.Logger.With(zap.Uint("project_id", id), zap.Uint("actor_id", actor.ID))
	log.Info("Project updated", zap.Strings("obsolete_proofs", obsolete))
	s.drain(ctx, log, len(obsolete))
	return project, nil
}

// Delete entfernt ein Projekt samt Verknüpfungen und gespeicherten Nachweisen.
func (s *ProjectService) Delete(ctx context.Context, actor *models.User, id uint) (err error) {
	defer func() { recordMutation("delete", err) }()

	var keys []string
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&project, id).Error; err != nil {
			return dbError(fmt.Sprintf("load project %d", id), err)
		}
		if !CanMutate(actor, &project) {
			return fmt.Errorf("delete project %d: %w", id, ErrForbidden)
		}
		keys = AttachedProofs(&project)
		if err := s.Outbox.EnqueueTx(tx, keys...); err != nil {
			return err
		}
		// Verknüpfungen kaskadieren per Fremdschlüssel; explizit gelöscht für Datenbanken ohne FK-Prüfung.
		if err := tx.Where("project_id = ?", id).Delete(&models.AuthorProject{}).Error; err != nil {
			return dbError("delete author links", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.EditorProject{}).Error; err != nil {
			return dbError("delete editor links", err)
		}
		if err := tx.Delete(&project).Error; err != nil {
			return dbError("delete project", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log := s.Logger.With(zap.Uint("project_id", id), zap.Uint("actor_id", actor.ID))
	log.Info("Project deleted", zap.Strings("proofs", keys))
	s.drain(ctx, log, len(keys))
	return nil
}

// drain löscht die eben eingetragenen Objekte sofort; was scheitert, bleibt für den Cron-Lauf.
func (s *ProjectService) drain(ctx context.Context, log *zap.Logger, n int) {
	if n == 0 {
		return
	}
	if _, err := s.Outbox.Drain(context.WithoutCancel(ctx), 0); err != nil {
		log.Warn("Outbox drain after commit failed", zap.Error(err))
	}
}

// Get lädt ein Projekt mit Ersteller, Autoren und Herausgebern.
func (s *ProjectService) Get(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := withLinks(s.DB.WithContext(ctx)).Preload("Creator").First(&project, id).Error; err != nil {
		return nil, dbError(fmt.Sprintf("load project %d", id), err)
	}
	return &project, nil
}

func (s *ProjectService) load(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.DB.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, dbError(fmt.Sprintf("load project %d", id), err)
	}
	return &project, nil
}

// List liefert Projekte nach Veröffentlichungsdatum absteigend.
func (s *ProjectService) List(ctx context.Context, f ProjectFilter) ([]models.Project, error) {
	q := withLinks(s.DB.WithContext(ctx)).Preload("Creator")
	if f.Query != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(f.Query)+"%")
	}
	if f.CreatorID != 0 {
		q = q.Where("creator_id = ?", f.CreatorID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var projects []models.Project
	if err := q.Order("date_published DESC").Order("id DESC").Find(&projects).Error; err != nil {
		return nil, dbError("list projects", err)
	}
	return projects, nil
}

// Editable liefert die Projekte, die actor bearbeiten oder löschen darf.
func (s *ProjectService) Editable(ctx context.Context, actor *models.User, query string) ([]models.Project, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	f := ProjectFilter{Query: query}
	if !mutatesAny(actor) {
		f.CreatorID = actor.ID
	}
	return s.List(ctx, f)
}

func withLinks(db *gorm.DB) *gorm.DB {
	return db.
		Preload("AuthorLinks", func(db *gorm.DB) *gorm.DB { return db.Order("author_projects.id") }).
		Preload("AuthorLinks.Author").
		Preload("EditorLinks", func(db *gorm.DB) *gorm.DB { return db.Order("editor_projects.id") }).
		Preload("EditorLinks.Editor")
}

// projectWriteError meldet eine bereits vergebene DOI als Feldfehler.
func projectWriteError(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return NewValidationError("doi_url", "A project with this DOI already exists.")
	}
	return dbError(op, err)
}
