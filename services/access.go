package services

import "rpmt/models"

// CanMutate entscheidet, ob actor das Projekt bearbeiten oder löschen darf.
// Chair und Admin dürfen alles, alle anderen nur selbst angelegte Projekte.
func CanMutate(actor *models.User, project *models.Project) bool {
	if actor == nil || project == nil {
		return false
	}
	if mutatesAny(actor) {
		return true
	}
	return actor.ID != 0 && actor.ID == project.CreatorID
}

func mutatesAny(actor *models.User) bool {
	return actor.Role == models.RoleChair || actor.Role == models.RoleAdmin
}

// CanAdminister gilt für Wartung und Benutzerverwaltung.
func CanAdminister(actor *models.User) bool {
	return actor != nil && (actor.Role == models.RoleAdmin || actor.Role == models.RoleDev)
}
