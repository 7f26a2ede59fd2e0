package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"rpmt/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// LoginForm entspricht dem Anmeldeformular.
type LoginForm struct {
	Username string `form:"username" binding:"required,max=128"`
	Password string `form:"password" binding:"required,max=64"`
	Remember bool   `form:"remember"`
	Next     string `form:"next"`
}

// RegisterForm entspricht dem Registrierungsformular.
type RegisterForm struct {
	Username string `form:"username" binding:"required,max=128"`
	Email    string `form:"email" binding:"required,email,max=64"`
	Password string `form:"password" binding:"required,min=8,max=64"`
	Confirm  string `form:"confirm" binding:"required,eqfield=Password"`
}

// ProjectForm entspricht dem Formular zum Anlegen und Bearbeiten eines Projekts.
// Dateien und "entfernen"-Häkchen werden separat über proofInputs gelesen.
type ProjectForm struct {
	Title             string    `form:"title" binding:"required,max=256"`
	Abstract          string    `form:"abstract" binding:"max=512"`
	Authors           string    `form:"authors" binding:"required,max=512"`
	Editors           string    `form:"editors" binding:"max=512"`
	Type              string    `form:"type" binding:"required,max=64"`
	DatePublished     time.Time `form:"date_published" time_format:"2006-01-02" binding:"required"`
	PublicationName   string    `form:"publication_name" binding:"required,max=128"`
	Publisher         string    `form:"publisher" binding:"required,max=64"`
	PublisherType     string    `form:"publisher_type" binding:"required,max=32"`
	PublisherLocation string    `form:"publisher_location" binding:"required,max=16"`
	VolIssueNo        int       `form:"vol_issue_no" binding:"min=0"`
	DOIURL            string    `form:"doi_url" binding:"required,max=256"`
	ISBNISSN          string    `form:"isbn_issn" binding:"required,oneof=NONE ISBN ISSN"`
	Citations         int       `form:"citations" binding:"min=0"`

	WebOfScience          bool   `form:"web_of_science"`
	ElsevierScopus        bool   `form:"elsevier_scopus"`
	ElsevierScienceDirect bool   `form:"elsevier_sciencedirect"`
	PubmedMedline         bool   `form:"pubmed_medline"`
	CHEDRecognized        bool   `form:"ched_recognized"`
	OtherDatabase         string `form:"other_database" binding:"max=128"`
}

// Input überträgt das Formular in die Service-Eingabe.
func (f *ProjectForm) Input() services.ProjectInput {
	return services.ProjectInput{
		Title:                 f.Title,
		Abstract:              f.Abstract,
		Authors:               f.Authors,
		Editors:               f.Editors,
		Type:                  f.Type,
		DatePublished:         f.DatePublished,
		PublicationName:       f.PublicationName,
		Publisher:             f.Publisher,
		PublisherType:         f.PublisherType,
		PublisherLocation:     f.PublisherLocation,
		VolIssueNo:            f.VolIssueNo,
		DOIURL:                f.DOIURL,
		ISBNISSN:              f.ISBNISSN,
		Citations:             f.Citations,
		WebOfScience:          f.WebOfScience,
		ElsevierScopus:        f.ElsevierScopus,
		ElsevierScienceDirect: f.ElsevierScienceDirect,
		PubmedMedline:         f.PubmedMedline,
		CHEDRecognized:        f.CHEDRecognized,
		OtherDatabase:         f.OtherDatabase,
	}
}

var tagNameOnce sync.Once

// useFormFieldNames lässt validator die Formularnamen statt der Go-Feldnamen melden.
func useFormFieldNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// fieldErrors übersetzt Binding-Fehler in Feldmeldungen für das Formular.
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fe.Field()] = validationMessage(fe)
		}
		return out
	}
	if ve, ok := services.IsValidation(err); ok {
		for k, v := range ve.Fields {
			out[k] = v
		}
		return out
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		out["form"] = fmt.Sprintf("Request is larger than %d MB.", tooLarge.Limit>>20)
		return out
	}
	out["form"] = "Invalid input: " + err.Error()
	return out
}

// formStatus liefert 413 für abgeschnittene Uploads, sonst 400.
func formStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Number must be at most %s.", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Field must be at least %s characters long.", fe.Param())
		}
		return fmt.Sprintf("Number must be at least %s.", fe.Param())
	case "email":
		return "Invalid email address."
	case "oneof":
		return "Not a valid choice."
	case "eqfield":
		return "Passwords must match."
	}
	return "Invalid value."
}

// proofInputs liest die drei Datei-Felder und ihre "clear_<slot>"-Häkchen.
func proofInputs(c *gin.Context, maxBytes int64) (services.ProofInputs, error) {
	inputs := services.ProofInputs{}
	for _, slot := range services.Slots {
		in := services.SlotInput{Clear: c.PostForm("clear_"+string(slot)) != ""}
		fh, err := c.FormFile(string(slot))
		switch {
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		case err != nil:
			return nil, err
		case fh.Filename != "":
			up, err := readUpload(fh, maxBytes)
			if err != nil {
				return nil, services.NewValidationError(string(slot), err.Error())
			}
			in.Upload = up
		}
		inputs[slot] = in
	}
	return inputs, nil
}

func readUpload(fh *multipart.FileHeader, maxBytes int64) (*services.Upload, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, fmt.Errorf("file is larger than %d MB", maxBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &services.Upload{Filename: fh.Filename, ContentType: ct, Data: data}, nil
}
