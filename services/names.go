package services

import "strings"

// ParseNames zerlegt eine freie Namensliste ("Jane Doe, John Roe") in einzelne Namen.
// Leerraum wird entfernt, leere Einträge und Duplikate entfallen, die Reihenfolge bleibt.
func ParseNames(raw string) []string {
	var names []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.Join(strings.Fields(part), " ")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// JoinNames ist die Umkehrung von ParseNames für die Anzeige im Formular.
func JoinNames(names []string) string {
	return strings.Join(names, ", ")
}

// dedupe entfernt Duplikate und leere Namen, ohne die Reihenfolge zu ändern.
func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	seen := map[string]bool{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
