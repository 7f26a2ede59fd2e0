package services

import (
	"testing"
	"time"

	"rpmt/internal/testutil"
	"rpmt/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Unix(1700000000, 0)

type testEnv struct {
	db         *gorm.DB
	store      *testutil.MemoryStore
	outbox     *Outbox
	proofs     *ProofManager
	reconciler *Reconciler
	sweeper    *Sweeper
	projects   *ProjectService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	store := testutil.NewMemoryStore()
	log := zap.NewNop()

	outbox := NewOutbox(db, store, log)
	proofs := NewProofManager(db, store, outbox, log)
	proofs.Now = func() time.Time { return fixedNow }
	reconciler := NewReconciler(db, log)
	return &testEnv{
		db:         db,
		store:      store,
		outbox:     outbox,
		proofs:     proofs,
		reconciler: reconciler,
		sweeper:    NewSweeper(db, log),
		projects:   NewProjectService(db, reconciler, proofs, outbox, log),
	}
}

func validInput(doi string) ProjectInput {
	return ProjectInput{
		Title:             "Soil microbiome of upland rice",
		Abstract:          "Field study.",
		Authors:           "Jane Doe, John Roe",
		Type:              "Journal Article",
		DatePublished:     time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		PublicationName:   "Journal of Agronomy",
		Publisher:         "Acme Press",
		PublisherType:     "International",
		PublisherLocation: "Manila",
		VolIssueNo:        12,
		DOIURL:            doi,
		ISBNISSN:          "ISSN",
		Citations:         3,
		WebOfScience:      true,
	}
}

// insertProject legt ein Projekt direkt in der Datenbank an, ohne Verknüpfungen.
func insertProject(t *testing.T, db *gorm.DB, creator *models.User, doi string) *models.Project {
	t.Helper()
	in := validInput(doi)
	p := &models.Project{
		CreatorID:        creator.ID,
		PublicationProof: models.NoImage,
		UtilizationProof: models.NoImage,
		PDF:              models.NoPDF,
	}
	in.applyTo(p)
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("insert project: %v", err)
	}
	return p
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func authorNames(t *testing.T, db *gorm.DB) []string {
	t.Helper()
	var names []string
	if err := db.Model(&models.Author{}).Order("name").Pluck("name", &names).Error; err != nil {
		t.Fatalf("pluck authors: %v", err)
	}
	return names
}
