package services

import (
	"context"
	"sync"

	"rpmt/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SweepResult zählt die gelöschten verwaisten Einträge.
type SweepResult struct {
	Authors int64 `json:"authors"`
	Editors int64 `json:"editors"`
}

// Sweeper entfernt Autoren und Herausgeber ohne verknüpfte Projekte.
type Sweeper struct {
	DB     *gorm.DB
	Logger *zap.Logger

	mu sync.Mutex
}

// NewSweeper erstellt einen neuen Sweeper.
func NewSweeper(db *gorm.DB, logger *zap.Logger) *Sweeper {
	return &Sweeper{DB: db, Logger: logger}
}

// Sweep löscht alle verwaisten Autoren und Herausgeber. Jede Art läuft in einer eigenen kurzen
// Transaktion; die Verwaisung wird im DELETE selbst geprüft, bereits gelöschte oder inzwischen
// neu verknüpfte Zeilen bleiben daher unberührt. Überlappende Läufe im Prozess werden serialisiert.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res SweepResult
	db := s.DB.WithContext(ctx)

	err := db.Transaction(func(tx *gorm.DB) error {
		r := tx.Where("NOT EXISTS (SELECT 1 FROM author_projects WHERE author_projects.author_id = authors.id)").
			Delete(&models.Author{})
		res.Authors = r.RowsAffected
		return r.Error
	})
	if err != nil {
		return res, dbError("sweep authors", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		r := tx.Where("NOT EXISTS (SELECT 1 FROM editor_projects WHERE editor_projects.editor_id = editors.id)").
			Delete(&models.Editor{})
		res.Editors = r.RowsAffected
		return r.Error
	})
	if err != nil {
		return res, dbError("sweep editors", err)
	}

	if res.Authors > 0 || res.Editors > 0 {
		s.Logger.Info("Orphans swept", zap.Int64("authors", res.Authors), zap.Int64("editors", res.Editors))
		orphansSwept.WithLabelValues("author").Add(float64(res.Authors))
		orphansSwept.WithLabelValues("editor").Add(float64(res.Editors))
	}
	return res, nil
}
