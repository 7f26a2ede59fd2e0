package services

import (
	"context"
	"errors"
	"sync"

	"rpmt/models"
	"rpmt/providers"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// CitationRefresher gleicht die Zitationszahlen der Projekte mit einem externen Provider ab.
// Zahlen werden nur erhöht, nie gesenkt: manuelle Einträge können Quellen enthalten,
// die der Provider nicht kennt.
type CitationRefresher struct {
	DB          *gorm.DB
	Source      providers.CitationSource
	Logger      *zap.Logger
	Concurrency int
}

// NewCitationRefresher erstellt einen neuen CitationRefresher.
func NewCitationRefresher(db *gorm.DB, source providers.CitationSource, logger *zap.Logger) *CitationRefresher {
	return &CitationRefresher{DB: db, Source: source, Logger: logger, Concurrency: 4}
}

type citationTarget struct {
	ID        uint
	DOIURL    string `gorm:"column:doi_url"`
	Citations int
}

// Run fragt alle Projekte mit DOI ab und liefert die Zahl der aktualisierten Projekte.
// Fehler einzelner DOIs werden geloggt und übersprungen.
func (r *CitationRefresher) Run(ctx context.Context) (int, error) {
	var targets []citationTarget
	if err := r.DB.WithContext(ctx).Model(&models.Project{}).
		Select("id", "doi_url", "citations").Order("id").Find(&targets).Error; err != nil {
		return 0, dbError("load projects", err)
	}
	log := r.Logger.With(zap.String("provider", r.Source.Name()))
	log.Info("Starte Zitationsabgleich", zap.Int("projects", len(targets)))

	type hit struct {
		id    uint
		count int
	}
	var (
		mu   sync.Mutex
		hits []hit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Concurrency, 1))
	for _, t := range targets {
		t := t
		doi := providers.NormalizeDOI(t.DOIURL)
		if doi == "" {
			continue
		}
		g.Go(func() error {
			n, err := r.Source.CitationCount(gctx, doi)
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			case errors.Is(err, providers.ErrUnknownDOI):
				log.Debug("DOI beim Provider unbekannt", zap.Uint("project_id", t.ID), zap.String("doi", doi))
				return nil
			case err != nil:
				log.Warn("Zitationsabfrage fehlgeschlagen", zap.Uint("project_id", t.ID), zap.String("doi", doi), zap.Error(err))
				return nil
			}
			if n > t.Citations {
				mu.Lock()
				hits = append(hits, hit{id: t.ID, count: n})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	updated := 0
	for _, h := range hits {
		res := r.DB.WithContext(ctx).Model(&models.Project{}).
			Where("id = ? AND citations < ?", h.id, h.count).
			Update("citations", h.count)
		if res.Error != nil {
			return updated, dbError("update citations", res.Error)
		}
		if res.RowsAffected > 0 {
			updated++
			citationsUpdated.Inc()
		}
	}
	log.Info("Zitationsabgleich abgeschlossen", zap.Int("updated", updated))
	return updated, nil
}
