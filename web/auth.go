package web

import (
	"errors"
	"net/http"
	"strings"

	"rpmt/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) setupAuthRoutes(router *gin.Engine) {
	router.GET("/login", s.loginPage)
	router.POST("/login", s.login)
	router.GET("/logout", s.logout)
	router.GET("/register", s.registerPage)
	router.POST("/register", s.register)
}

func (s *Server) loginPage(c *gin.Context) {
	if currentUser(c) != nil {
		c.Redirect(http.StatusSeeOther, "/home")
		return
	}
	s.render(c, http.StatusOK, "login.html", gin.H{"Form": LoginForm{Next: c.Query("next")}})
}

func (s *Server) login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		form.Password = ""
		s.render(c, http.StatusBadRequest, "login.html", gin.H{"Form": form, "Errors": fieldErrors(err)})
		return
	}

	user, err := s.Users.Authenticate(c.Request.Context(), form.Username, form.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		s.Logger.Info("Login failed", zap.String("username", form.Username), zap.String("client_ip", c.ClientIP()))
		addFlash(c, "danger", "Login unsuccessful, please check your username and password. Contact the site administrators if you believe something is wrong.")
		form.Password = ""
		s.render(c, http.StatusUnauthorized, "login.html", gin.H{"Form": form})
		return
	}
	if err != nil {
		s.fail(c, err)
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	if err := s.setSession(c, user, form.Remember); err != nil {
		s.fail(c, err)
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	addFlash(c, "success", "Logged in as "+user.Username)
	c.Redirect(http.StatusSeeOther, safeNext(form.Next))
}

// safeNext lässt nur lokale Pfade als Weiterleitungsziel zu.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/home"
	}
	return next
}

func (s *Server) logout(c *gin.Context) {
	s.clearSession(c)
	addFlash(c, "success", "Logged out successfully")
	c.Redirect(http.StatusSeeOther, "/home")
}

func (s *Server) registerPage(c *gin.Context) {
	s.render(c, http.StatusOK, "register.html", gin.H{"Form": RegisterForm{}})
}

func (s *Server) register(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		form.Password, form.Confirm = "", ""
		s.render(c, http.StatusBadRequest, "register.html", gin.H{"Form": form, "Errors": fieldErrors(err)})
		return
	}

	_, err := s.Users.Register(c.Request.Context(), services.RegisterInput{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})
	if _, ok := services.IsValidation(err); ok {
		form.Password, form.Confirm = "", ""
		s.render(c, http.StatusBadRequest, "register.html", gin.H{"Form": form, "Errors": fieldErrors(err)})
		return
	}
	if err != nil {
		s.fail(c, err)
		c.Redirect(http.StatusSeeOther, "/register")
		return
	}

	addFlash(c, "success", "Account created for "+strings.TrimSpace(form.Username)+". You can now log in.")
	c.Redirect(http.StatusSeeOther, "/login")
}
