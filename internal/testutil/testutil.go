package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"rpmt/database"
	"rpmt/models"

	"gorm.io/gorm"
)

// OpenDB öffnet eine frische In-Memory-SQLite-Datenbank mit Fremdschlüsseln und migriert sie.
// Jede gorm-Instanz hält genau eine Verbindung und damit ihre eigene Datenbank.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite("file::memory:?_foreign_keys=on", false)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser legt einen Benutzer direkt in der Datenbank an.
func CreateUser(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.org",
		Password: "not-a-real-hash",
		Role:     role,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// ErrInjected wird von MemoryStore bei erzwungenen Fehlern zurückgegeben.
var ErrInjected = errors.New("injected storage failure")

// MemoryStore ist ein ObjectStore im Speicher mit Fehlerinjektion.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	FailUpload map[string]bool // Dateinamen, deren Upload fehlschlägt
	FailDelete map[string]bool // Dateinamen, deren Löschung fehlschlägt
}

// NewMemoryStore erstellt einen leeren MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:    map[string][]byte{},
		FailUpload: map[string]bool{},
		FailDelete: map[string]bool{},
	}
}

func (m *MemoryStore) Upload(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpload[key] {
		return ErrInjected
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete[key] {
		return ErrInjected
	}
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return "https://objects.test/" + key
}

// Put legt ein Objekt ohne Umweg über Upload ab.
func (m *MemoryStore) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

// Has meldet, ob key gespeichert ist.
func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Keys liefert alle gespeicherten Schlüssel sortiert.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Deleted liefert die Schlüssel aller erfolgreichen Löschungen in Reihenfolge.
func (m *MemoryStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}
