package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound: referenziertes Projekt oder Benutzer existiert nicht.
	ErrNotFound = errors.New("not found")
	// ErrForbidden: der Handelnde darf die Aktion nicht ausführen.
	ErrForbidden = errors.New("not permitted")
	// ErrPersistence: Schreibfehler der Datenbank, Transaktion wurde zurückgerollt.
	ErrPersistence = errors.New("database error")
	// ErrStorage: Upload oder Löschung im Objektspeicher fehlgeschlagen.
	ErrStorage = errors.New("storage error")
	// ErrInvalidCredentials: Benutzername oder Passwort falsch.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInUse: der Datensatz wird noch referenziert.
	ErrInUse = errors.New("still in use")
)

// ValidationError sammelt feldbezogene Eingabefehler.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError erstellt einen ValidationError für ein einzelnes Feld.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add ergänzt einen Feldfehler.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

// Empty meldet, ob keine Fehler gesammelt wurden.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation meldet, ob err ein ValidationError ist, und liefert ihn.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// dbError übersetzt gorm-Fehler in die Fehlerklassen der Services.
func dbError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden), errors.Is(err, ErrStorage),
		errors.Is(err, ErrPersistence), errors.Is(err, ErrInUse):
		return err
	}
	if _, ok := IsValidation(err); ok {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
}
