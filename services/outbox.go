package services

import (
	"context"
	"sync"

	"rpmt/models"
	"rpmt/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Outbox hält Löschaufträge für Speicherobjekte in der Datenbank. Aufträge werden in derselben
// Transaktion wie die auslösende Projektänderung eingetragen und nach dem Commit abgearbeitet;
// fehlgeschlagene Löschungen bleiben für den nächsten Lauf stehen.
type Outbox struct {
	DB     *gorm.DB
	Store  storage.ObjectStore
	Logger *zap.Logger

	mu sync.Mutex
}

// NewOutbox erstellt eine neue Outbox.
func NewOutbox(db *gorm.DB, store storage.ObjectStore, logger *zap.Logger) *Outbox {
	return &Outbox{DB: db, Store: store, Logger: logger}
}

// EnqueueTx trägt Löschaufträge innerhalb von tx ein. Sentinel-Namen werden ignoriert.
func (o *Outbox) EnqueueTx(tx *gorm.DB, keys ...string) error {
	var rows []models.PendingDeletion
	for _, k := range keys {
		if IsEmptyProof(k) {
			continue
		}
		rows = append(rows, models.PendingDeletion{ObjectKey: k})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		return dbError("enqueue deletions", err)
	}
	return nil
}

// Enqueue trägt Löschaufträge in einer eigenen Transaktion ein.
func (o *Outbox) Enqueue(ctx context.Context, keys ...string) error {
	return o.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return o.EnqueueTx(tx, keys...)
	})
}

// Drain arbeitet bis zu limit offene Aufträge ab und liefert die Zahl der gelöschten Objekte.
func (o *Outbox) Drain(ctx context.Context, limit int) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	db := o.DB.WithContext(ctx)

	var pending []models.PendingDeletion
	if err := db.Order("id").Limit(limit).Find(&pending).Error; err != nil {
		return 0, dbError("load pending deletions", err)
	}

	deleted := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		live, err := referenceCount(db, p.ObjectKey)
		if err != nil {
			return deleted, err
		}
		if live > 0 {
			// wieder referenziert: Objekt bleibt, nur der Auftrag entfällt
			o.Logger.Warn("Skipping deletion of referenced object", zap.String("key", p.ObjectKey))
			if err := db.Delete(&models.PendingDeletion{}, p.ID).Error; err != nil {
				return deleted, dbError("remove pending deletion", err)
			}
			continue
		}

		err = o.Store.Delete(ctx, p.ObjectKey)
		recordStorage("delete", err)
		if err != nil {
			o.Logger.Warn("Storage deletion failed, will retry",
				zap.String("key", p.ObjectKey), zap.Int("attempts", p.Attempts+1), zap.Error(err))
			upd := db.Model(&models.PendingDeletion{}).Where("id = ?", p.ID).Updates(map[string]any{
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": err.Error(),
			})
			if upd.Error != nil {
				return deleted, dbError("update pending deletion", upd.Error)
			}
			continue
		}
		if err := db.Delete(&models.PendingDeletion{}, p.ID).Error; err != nil {
			return deleted, dbError("remove pending deletion", err)
		}
		deleted++
	}

	var remaining int64
	if err := db.Model(&models.PendingDeletion{}).Count(&remaining).Error; err == nil {
		outboxPending.Set(float64(remaining))
	}
	if deleted > 0 {
		o.Logger.Info("Storage objects deleted", zap.Int("count", deleted), zap.Int64("remaining", remaining))
	}
	return deleted, nil
}

// Pending liefert alle offenen Aufträge.
func (o *Outbox) Pending(ctx context.Context) ([]models.PendingDeletion, error) {
	var pending []models.PendingDeletion
	if err := o.DB.WithContext(ctx).Order("id").Find(&pending).Error; err != nil {
		return nil, dbError("load pending deletions", err)
	}
	return pending, nil
}
