package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"rpmt/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) setupAdminRoutes(router *gin.Engine) {
	rg := router.Group("/admin", requireLogin())

	rg.GET("/", s.adminHome)
	rg.GET("/report", s.report)
	rg.GET("/add", s.addPage)
	rg.POST("/add", limitBody(s.bodyLimit()), s.add)
	rg.GET("/edit/", s.editList)
	rg.GET("/edit/:id", s.editPage)
	rg.POST("/edit/:id", limitBody(s.bodyLimit()), s.edit)
	rg.GET("/delete/", s.deleteList)
	rg.POST("/delete/:id", s.delete)
	rg.POST("/maintenance/sweep", s.sweep)
}

// bodyLimit ist die Obergrenze eines Projektformulars: drei Nachweise plus Felder.
func (s *Server) bodyLimit() int64 {
	return int64(len(services.Slots))*s.maxUpload + 1<<20
}

// fail meldet err als Flash-Meldung. Nichts davon beendet den Prozess.
func (s *Server) fail(c *gin.Context, err error) {
	var msg string
	switch {
	case errors.Is(err, services.ErrForbidden):
		msg = "You do not have permission to modify this project."
	case errors.Is(err, services.ErrNotFound):
		msg = "The requested record does not exist."
	case errors.Is(err, services.ErrStorage):
		msg = "File storage is unavailable, no changes were saved. Please try again."
	case errors.Is(err, services.ErrInUse):
		msg = "The record is still in use."
	default:
		msg = "An unexpected error occurred, no changes were saved."
		s.Logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	addFlash(c, "danger", msg)
}

func (s *Server) adminHome(c *gin.Context) {
	s.render(c, http.StatusOK, "admin.html", nil)
}

func (s *Server) report(c *gin.Context) {
	filename := fmt.Sprintf("rpmt-report-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)
	if err := s.Report.WriteCSV(c.Request.Context(), c.Writer, services.ProjectFilter{Query: c.Query("q")}); err != nil {
		s.Logger.Error("Report export failed", zap.Error(err))
		_ = c.Error(err)
	}
}

func (s *Server) addPage(c *gin.Context) {
	form := ProjectForm{ISBNISSN: "NONE", DatePublished: time.Now()}
	s.render(c, http.StatusOK, "projectform.html", gin.H{"Form": form, "Mode": "Add", "Action": "/admin/add", "Slots": services.Slots})
}

func (s *Server) add(c *gin.Context) {
	user := currentUser(c)
	var form ProjectForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderProjectForm(c, formStatus(err), "Add", "/admin/add", form, nil, fieldErrors(err))
		return
	}
	proofs, err := proofInputs(c, s.maxUpload)
	if err != nil {
		s.renderProjectForm(c, formStatus(err), "Add", "/admin/add", form, nil, fieldErrors(err))
		return
	}

	project, err := s.Projects.Create(c.Request.Context(), user, form.Input(), proofs)
	if _, ok := services.IsValidation(err); ok {
		s.renderProjectForm(c, http.StatusBadRequest, "Add", "/admin/add", form, nil, fieldErrors(err))
		return
	}
	if err != nil {
		s.fail(c, err)
		s.renderProjectForm(c, http.StatusOK, "Add", "/admin/add", form, nil, nil)
		return
	}

	addFlash(c, "success", fmt.Sprintf("Project %q added.", project.Title))
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/projects/%d", project.ID))
}

func (s *Server) renderProjectForm(c *gin.Context, status int, mode, action string, form ProjectForm, project any, errs map[string]string) {
	s.render(c, status, "projectform.html", gin.H{
		"Form":    form,
		"Mode":    mode,
		"Action":  action,
		"Project": project,
		"Slots":   services.Slots,
		"Errors":  errs,
	})
}

func (s *Server) editList(c *gin.Context) {
	s.mutableList(c, "Edit")
}

func (s *Server) deleteList(c *gin.Context) {
	s.mutableList(c, "Delete")
}

func (s *Server) mutableList(c *gin.Context, mode string) {
	query := c.Query("q")
	projects, err := s.Projects.Editable(c.Request.Context(), currentUser(c), query)
	if err != nil {
		s.fail(c, err)
	}
	s.render(c, http.StatusOK, "projectlist.html", gin.H{"Projects": projects, "Mode": mode, "Query": query})
}

func (s *Server) editPage(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		s.render(c, http.StatusNotFound, "error.html", gin.H{"Message": "Project not found."})
		return
	}
	project, err := s.Projects.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		c.Redirect(http.StatusSeeOther, "/admin/edit/")
		return
	}
	if !services.CanMutate(currentUser(c), project) {
		s.fail(c, services.ErrForbidden)
		c.Redirect(http.StatusSeeOther, "/admin/edit/")
		return
	}

	in := services.InputFromProject(project)
	form := ProjectForm{
		Title: in.Title, Abstract: in.Abstract, Authors: in.Authors, Editors: in.Editors,
		Type: in.Type, DatePublished: in.DatePublished, PublicationName: in.PublicationName,
		Publisher: in.Publisher, PublisherType: in.PublisherType, PublisherLocation: in.PublisherLocation,
		VolIssueNo: in.VolIssueNo, DOIURL: in.DOIURL, ISBNISSN: in.ISBNISSN, Citations: in.Citations,
		WebOfScience: in.WebOfScience, ElsevierScopus: in.ElsevierScopus,
		ElsevierScienceDirect: in.ElsevierScienceDirect, PubmedMedline: in.PubmedMedline,
		CHEDRecognized: in.CHEDRecognized, OtherDatabase: in.OtherDatabase,
	}
	s.renderProjectForm(c, http.StatusOK, "Edit", fmt.Sprintf("/admin/edit/%d", id), form, project, nil)
}

func (s *Server) edit(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		s.render(c, http.StatusNotFound, "error.html", gin.H{"Message": "Project not found."})
		return
	}
	action := fmt.Sprintf("/admin/edit/%d", id)

	var form ProjectForm
	if err := c.ShouldBind(&form); err != nil {
		s.invalidEdit(c, id, action, form, err)
		return
	}
	proofs, err := proofInputs(c, s.maxUpload)
	if err != nil {
		s.invalidEdit(c, id, action, form, err)
		return
	}

	project, err := s.Projects.Update(c.Request.Context(), currentUser(c), id, form.Input(), proofs)
	if _, ok := services.IsValidation(err); ok {
		s.invalidEdit(c, id, action, form, err)
		return
	}
	if err != nil {
		s.fail(c, err)
		c.Redirect(http.StatusSeeOther, "/admin/edit/")
		return
	}

	addFlash(c, "success", fmt.Sprintf("Project %q updated.", project.Title))
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/projects/%d", project.ID))
}

// invalidEdit zeigt das Bearbeitungsformular mit Fehlern erneut, samt den aktuellen Nachweisen.
func (s *Server) invalidEdit(c *gin.Context, id uint, action string, form ProjectForm, err error) {
	var project any
	if p, getErr := s.Projects.Get(c.Request.Context(), id); getErr == nil && services.CanMutate(currentUser(c), p) {
		project = p
	}
	s.renderProjectForm(c, formStatus(err), "Edit", action, form, project, fieldErrors(err))
}

func (s *Server) delete(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		s.render(c, http.StatusNotFound, "error.html", gin.H{"Message": "Project not found."})
		return
	}
	if err := s.Projects.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		s.fail(c, err)
	} else {
		addFlash(c, "success", "Project deleted.")
	}
	c.Redirect(http.StatusSeeOther, "/admin/delete/")
}

func (s *Server) sweep(c *gin.Context) {
	user := currentUser(c)
	if !services.CanAdminister(user) {
		addFlash(c, "danger", "Only administrators can run maintenance tasks.")
		c.Redirect(http.StatusSeeOther, "/admin/")
		return
	}
	if !s.sweepLimit.Allow() {
		addFlash(c, "info", "A cleanup ran recently, please wait before starting another one.")
		c.Redirect(http.StatusSeeOther, "/admin/")
		return
	}

	res, err := s.Sweeper.Sweep(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		c.Redirect(http.StatusSeeOther, "/admin/")
		return
	}
	s.Logger.Info("Manual sweep", zap.Uint("user_id", user.ID), zap.Int64("authors", res.Authors), zap.Int64("editors", res.Editors))
	addFlash(c, "success", fmt.Sprintf("Removed %d unused authors and %d unused editors.", res.Authors, res.Editors))
	c.Redirect(http.StatusSeeOther, "/admin/")
}
