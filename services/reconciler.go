package services

import (
	"context"
	"errors"
	"fmt"

	"rpmt/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reconciler gleicht die Autoren- und Herausgeberverknüpfungen eines Projekts mit einer
// Namensliste ab. Fehlende Author/Editor-Einträge werden angelegt, alle bestehenden
// Verknüpfungen des Projekts werden ersetzt.
type Reconciler struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewReconciler erstellt einen neuen Reconciler.
func NewReconciler(db *gorm.DB, logger *zap.Logger) *Reconciler {
	return &Reconciler{DB: db, Logger: logger}
}

// Reconcile führt den Abgleich in einer eigenen Transaktion aus (alles oder nichts).
func (r *Reconciler) Reconcile(ctx context.Context, projectID uint, authors, editors []string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&project, projectID).Error; err != nil {
			return dbError("lock project", err)
		}
		return r.ReconcileTx(tx, projectID, authors, editors)
	})
}

// ReconcileTx führt den Abgleich innerhalb der Transaktion tx des Aufrufers aus.
// Ein Fehler muss zum Rollback der gesamten Transaktion führen.
func (r *Reconciler) ReconcileTx(tx *gorm.DB, projectID uint, authors, editors []string) error {
	authors, editors = dedupe(authors), dedupe(editors)

	if err := tx.Where("project_id = ?", projectID).Delete(&models.AuthorProject{}).Error; err != nil {
		return dbError("delete author links", err)
	}
	if err := tx.Where("project_id = ?", projectID).Delete(&models.EditorProject{}).Error; err != nil {
		return dbError("delete editor links", err)
	}

	for _, name := range authors {
		author, err := ensureNamed[models.Author](tx, name)
		if err != nil {
			return dbError(fmt.Sprintf("ensure author %q", name), err)
		}
		link := models.AuthorProject{AuthorID: author.ID, ProjectID: projectID}
		if err := tx.Create(&link).Error; err != nil {
			return dbError(fmt.Sprintf("link author %q", name), err)
		}
	}
	for _, name := range editors {
		editor, err := ensureNamed[models.Editor](tx, name)
		if err != nil {
			return dbError(fmt.Sprintf("ensure editor %q", name), err)
		}
		link := models.EditorProject{EditorID: editor.ID, ProjectID: projectID}
		if err := tx.Create(&link).Error; err != nil {
			return dbError(fmt.Sprintf("link editor %q", name), err)
		}
	}

	r.Logger.Debug("Project links reconciled",
		zap.Uint("project_id", projectID),
		zap.Int("authors", len(authors)),
		zap.Int("editors", len(editors)))
	return nil
}

type named interface {
	models.Author | models.Editor
}

// ensureNamed sucht einen Author/Editor per exaktem Namen oder legt ihn an. Die Zeile wird
// mit FOR SHARE gesperrt, damit ein paralleler Sweep sie bis zum Commit nicht löscht. Verliert
// der Aufruf das Rennen gegen einen Sweep zwischen Insert und Select, wird neu angelegt.
func ensureNamed[T named](tx *gorm.DB, name string) (*T, error) {
	for attempt := 0; attempt < 3; attempt++ {
		row := newNamed[T](name)
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(row).Error
		if err != nil {
			return nil, err
		}

		var found T
		err = tx.Clauses(clause.Locking{Strength: "SHARE"}).Where("name = ?", name).First(&found).Error
		if err == nil {
			return &found, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%q vanished during reconciliation", name)
}

func newNamed[T named](name string) *T {
	var v T
	switch p := any(&v).(type) {
	case *models.Author:
		p.Name = name
	case *models.Editor:
		p.Name = name
	}
	return &v
}

// LinkedNames liest die aktuell verknüpften Autoren- und Herausgebernamen eines Projekts.
func LinkedNames(db *gorm.DB, projectID uint) (authors, editors []string, err error) {
	err = db.Model(&models.AuthorProject{}).
		Joins("JOIN authors ON authors.id = author_projects.author_id").
		Where("author_projects.project_id = ?", projectID).
		Order("author_projects.id").
		Pluck("authors.name", &authors).Error
	if err != nil {
		return nil, nil, err
	}
	err = db.Model(&models.EditorProject{}).
		Joins("JOIN editors ON editors.id = editor_projects.editor_id").
		Where("editor_projects.project_id = ?", projectID).
		Order("editor_projects.id").
		Pluck("editors.name", &editors).Error
	if err != nil {
		return nil, nil, err
	}
	return authors, editors, nil
}
