package models

// Author ist ein Autor, der über AuthorProject mit Projekten verknüpft ist.
// Autoren werden nur implizit beim Speichern eines Projekts angelegt.
type Author struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:128;uniqueIndex;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Author) TableName() string {
	return "authors"
}

// Editor ist ein Herausgeber, analog zu Author.
type Editor struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:128;uniqueIndex;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Editor) TableName() string {
	return "editors"
}

// AuthorProject verknüpft einen Autor mit einem Projekt.
type AuthorProject struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	AuthorID  uint   `json:"author_id" gorm:"not null;uniqueIndex:idx_author_projects_pair"`
	ProjectID uint   `json:"project_id" gorm:"not null;uniqueIndex:idx_author_projects_pair;index"`
	Author    Author `json:"author" gorm:"foreignKey:AuthorID"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (AuthorProject) TableName() string {
	return "author_projects"
}

// EditorProject verknüpft einen Herausgeber mit einem Projekt.
type EditorProject struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	EditorID  uint   `json:"editor_id" gorm:"not null;uniqueIndex:idx_editor_projects_pair"`
	ProjectID uint   `json:"project_id" gorm:"not null;uniqueIndex:idx_editor_projects_pair;index"`
	Editor    Editor `json:"editor" gorm:"foreignKey:EditorID"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (EditorProject) TableName() string {
	return "editor_projects"
}
