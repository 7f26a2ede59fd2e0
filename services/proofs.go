package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"rpmt/models"
	"rpmt/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Slot ist eines der drei Nachweisfelder eines Projekts.
type Slot string

const (
	SlotPublicationProof Slot = "publication_proof"
	SlotUtilizationProof Slot = "utilization_proof"
	SlotPDF              Slot = "pdf"
)

// Slots listet alle Nachweisfelder.
var Slots = []Slot{SlotPublicationProof, SlotUtilizationProof, SlotPDF}

// Sentinel ist der Dateiname für "keine Datei".
func (s Slot) Sentinel() string {
	if s == SlotPDF {
		return models.NoPDF
	}
	return models.NoImage
}

// Get liest den Dateinamen des Slots aus p.
func (s Slot) Get(p *models.Project) string {
	switch s {
	case SlotPublicationProof:
		return p.PublicationProof
	case SlotUtilizationProof:
		return p.UtilizationProof
	case SlotPDF:
		return p.PDF
	}
	return ""
}

// Set schreibt den Dateinamen des Slots in p.
func (s Slot) Set(p *models.Project, name string) {
	switch s {
	case SlotPublicationProof:
		p.PublicationProof = name
	case SlotUtilizationProof:
		p.UtilizationProof = name
	case SlotPDF:
		p.PDF = name
	}
}

func (s Slot) allowedExt(ext string) bool {
	switch ext {
	case ".pdf":
		return true
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return s != SlotPDF
	}
	return false
}

// IsEmptyProof meldet, ob name keinen gespeicherten Nachweis bezeichnet.
func IsEmptyProof(name string) bool {
	return name == "" || name == models.NoImage || name == models.NoPDF
}

// AttachedProofs liefert die Objektnamen aller belegten Slots von p.
func AttachedProofs(p *models.Project) []string {
	var keys []string
	for _, s := range Slots {
		if name := s.Get(p); !IsEmptyProof(name) {
			keys = append(keys, name)
		}
	}
	return keys
}

// Upload ist eine hochgeladene Datei.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SlotInput sind die beiden Formularfelder eines Slots: Datei und "entfernen".
type SlotInput struct {
	Upload *Upload
	Clear  bool
}

// ProofInputs ordnet jedem Slot seine Eingabe zu; fehlende Slots bleiben unverändert.
type ProofInputs map[Slot]SlotInput

// Action ist der Übergang eines Slots bei einer Bearbeitung.
type Action int

const (
	ActionKeep Action = iota
	ActionClear
	ActionReplace
)

func (a Action) String() string {
	switch a {
	case ActionClear:
		return "clear"
	case ActionReplace:
		return "replace"
	}
	return "keep"
}

// Decide bestimmt den Übergang für in. Entfernen hat Vorrang vor Ersetzen.
func Decide(in SlotInput) Action {
	switch {
	case in.Clear:
		return ActionClear
	case in.Upload != nil && in.Upload.Filename != "":
		return ActionReplace
	}
	return ActionKeep
}

// UniqueName bildet aus dem Originalnamen einen Objektnamen "<stamm>_<unix-sekunden><endung>".
func UniqueName(original string, now time.Time) string {
	stem, ext := splitFilename(original)
	return fmt.Sprintf("%s_%d%s", stem, now.Unix(), ext)
}

func splitFilename(original string) (stem, ext string) {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	ext = strings.ToLower(path.Ext(base))
	stem = sanitizeStem(strings.TrimSuffix(base, path.Ext(base)))
	if stem == "" {
		stem = "file"
	}
	return stem, ext
}

func sanitizeStem(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 200 {
		out = out[:200]
	}
	return out
}

// ProofManager plant und führt Nachweis-Übergänge aus.
type ProofManager struct {
	DB     *gorm.DB
	Store  storage.ObjectStore
	Outbox *Outbox
	Logger *zap.Logger
	Now    func() time.Time

	mu     sync.Mutex
	issued map[string]bool
}

// NewProofManager erstellt einen neuen ProofManager.
func NewProofManager(db *gorm.DB, store storage.ObjectStore, outbox *Outbox, logger *zap.Logger) *ProofManager {
	return &ProofManager{DB: db, Store: store, Outbox: outbox, Logger: logger, Now: time.Now, issued: map[string]bool{}}
}

type plannedUpload struct {
	slot   Slot
	key    string
	upload *Upload
}

// ProofPlan sind die vorbereiteten Übergänge einer Projektänderung.
type ProofPlan struct {
	m        *ProofManager
	actions  map[Slot]Action
	uploads  []plannedUpload
	uploaded []string
}

// Prepare prüft die Eingaben, vergibt eindeutige Objektnamen und liefert den Plan. Die Namen
// kollidieren weder untereinander noch mit einem in der Datenbank referenzierten Objekt.
func (m *ProofManager) Prepare(ctx context.Context, inputs ProofInputs) (*ProofPlan, error) {
	plan := &ProofPlan{m: m, actions: map[Slot]Action{}}
	verr := &ValidationError{}
	now := m.Now()

	for _, slot := range Slots {
		in := inputs[slot]
		action := Decide(in)
		plan.actions[slot] = action
		if action != ActionReplace {
			continue
		}
		_, ext := splitFilename(in.Upload.Filename)
		if !slot.allowedExt(ext) {
			verr.Add(string(slot), fmt.Sprintf("file type %q is not allowed", ext))
			continue
		}
		key, err := m.reserveName(ctx, in.Upload.Filename, now)
		if err != nil {
			return nil, err
		}
		plan.uploads = append(plan.uploads, plannedUpload{slot: slot, key: key, upload: in.Upload})
	}
	if !verr.Empty() {
		m.release(plan.keys()...)
		return nil, verr
	}
	return plan, nil
}

// reserveName vergibt einen Namen, der weder im Prozess reserviert noch in einem Projekt
// referenziert noch zum Löschen vorgemerkt ist. Bei Kollision wird "-<n>" an den Zeitstempel gehängt.
func (m *ProofManager) reserveName(ctx context.Context, original string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stem, ext := splitFilename(original)
	candidate := UniqueName(original, now)
	for i := 1; ; i++ {
		if !m.issued[candidate] {
			taken, err := nameTaken(m.DB.WithContext(ctx), candidate)
			if err != nil {
				return "", err
			}
			if !taken {
				m.issued[candidate] = true
				return candidate, nil
			}
		}
		candidate = fmt.Sprintf("%s_%d-%d%s", stem, now.Unix(), i, ext)
	}
}

// nameTaken meldet, ob key von einem Projekt referenziert wird oder noch in der Outbox steht.
// Ein vorgemerkter Name darf nicht neu vergeben werden, sonst löscht der Drain das neue Objekt.
func nameTaken(db *gorm.DB, key string) (bool, error) {
	n, err := referenceCount(db, key)
	if err != nil || n > 0 {
		return n > 0, err
	}
	if err := db.Model(&models.PendingDeletion{}).Where("object_key = ?", key).Count(&n).Error; err != nil {
		return false, dbError("check pending deletion", err)
	}
	return n > 0, nil
}

// referenceCount zählt die Projekte, die key in einem Nachweisfeld führen.
func referenceCount(db *gorm.DB, key string) (int64, error) {
	var n int64
	err := db.Model(&models.Project{}).
		Where("publication_proof = ? OR utilization_proof = ? OR pdf = ?", key, key, key).
		Count(&n).Error
	if err != nil {
		return 0, dbError("check proof name", err)
	}
	return n, nil
}

func (m *ProofManager) release(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.issued, k)
	}
}

func (p *ProofPlan) keys() []string {
	keys := make([]string, 0, len(p.uploads))
	for _, u := range p.uploads {
		keys = append(keys, u.key)
	}
	return keys
}

// Action liefert den geplanten Übergang eines Slots.
func (p *ProofPlan) Action(s Slot) Action {
	return p.actions[s]
}

// Upload lädt alle Ersatzdateien parallel hoch. Schlägt ein Upload fehl, werden die bereits
// hochgeladenen Objekte wieder entfernt und ErrStorage geliefert.
func (p *ProofPlan) Upload(ctx context.Context) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range p.uploads {
		u := u
		g.Go(func() error {
			err := p.m.Store.Upload(gctx, u.key, u.upload.Data, u.upload.ContentType)
			recordStorage("upload", err)
			if err != nil {
				return fmt.Errorf("%w: upload %s: %v", ErrStorage, u.upload.Filename, err)
			}
			mu.Lock()
			p.uploaded = append(p.uploaded, u.key)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.Discard(context.WithoutCancel(ctx))
		return err
	}
	return nil
}

// ApplyTo setzt die neuen Dateinamen in project und liefert die nicht mehr referenzierten
// Objektnamen, die gelöscht werden müssen. Leere Felder (neues Projekt) werden zum Sentinel.
func (p *ProofPlan) ApplyTo(project *models.Project) (obsolete []string) {
	keyBySlot := map[Slot]string{}
	for _, u := range p.uploads {
		keyBySlot[u.slot] = u.key
	}
	for _, slot := range Slots {
		current := slot.Get(project)
		switch p.actions[slot] {
		case ActionClear:
			if !IsEmptyProof(current) {
				obsolete = append(obsolete, current)
			}
			slot.Set(project, slot.Sentinel())
		case ActionReplace:
			if !IsEmptyProof(current) {
				obsolete = append(obsolete, current)
			}
			slot.Set(project, keyBySlot[slot])
		default:
			if current == "" {
				slot.Set(project, slot.Sentinel())
			}
		}
	}
	return obsolete
}

// Discard entfernt die hochgeladenen Objekte wieder, etwa nach einem Rollback der Datenbank.
// Was sich nicht löschen lässt, wandert in die Outbox.
func (p *ProofPlan) Discard(ctx context.Context) {
	defer p.m.release(p.keys()...)
	var failed []string
	for _, key := range p.uploaded {
		err := p.m.Store.Delete(ctx, key)
		recordStorage("delete", err)
		if err != nil {
			p.m.Logger.Warn("Failed to remove uploaded proof after rollback", zap.String("key", key), zap.Error(err))
			failed = append(failed, key)
		}
	}
	p.uploaded = nil
	if len(failed) > 0 && p.m.Outbox != nil {
		if err := p.m.Outbox.Enqueue(ctx, failed...); err != nil {
			p.m.Logger.Error("Failed to enqueue orphaned proofs", zap.Strings("keys", failed), zap.Error(err))
		}
	}
}

// Done gibt die reservierten Namen frei, nachdem sie committed sind.
func (p *ProofPlan) Done() {
	p.m.release(p.keys()...)
}
