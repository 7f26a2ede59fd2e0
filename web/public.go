package web

import (
	"errors"
	"net/http"
	"strconv"

	"rpmt/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) setupPublicRoutes(router *gin.Engine) {
	router.GET("/", s.home)
	router.GET("/home", s.home)
	router.GET("/projects/", s.listProjects)
	router.GET("/projects/:id", s.showProject)
}

func (s *Server) home(c *gin.Context) {
	recent, err := s.Projects.List(c.Request.Context(), services.ProjectFilter{Limit: 5})
	if err != nil {
		s.Logger.Warn("Loading recent projects failed", zap.Error(err))
	}
	s.render(c, http.StatusOK, "home.html", gin.H{"Recent": recent})
}

func (s *Server) listProjects(c *gin.Context) {
	query := c.Query("q")
	projects, err := s.Projects.List(c.Request.Context(), services.ProjectFilter{Query: query})
	if err != nil {
		s.fail(c, err)
		s.render(c, http.StatusInternalServerError, "error.html", gin.H{"Message": "Projects could not be loaded."})
		return
	}
	s.render(c, http.StatusOK, "projectlist.html", gin.H{"Projects": projects, "Mode": "View", "Query": query})
}

func (s *Server) showProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		s.render(c, http.StatusNotFound, "error.html", gin.H{"Message": "Project not found."})
		return
	}
	project, err := s.Projects.Get(c.Request.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		s.render(c, http.StatusNotFound, "error.html", gin.H{"Message": "Project not found."})
		return
	}
	if err != nil {
		s.fail(c, err)
		s.render(c, http.StatusInternalServerError, "error.html", gin.H{"Message": "Project could not be loaded."})
		return
	}
	s.render(c, http.StatusOK, "projectpage.html", gin.H{"Project": project, "Slots": services.Slots})
}

func projectID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
