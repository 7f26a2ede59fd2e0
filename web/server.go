package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"rpmt/config"
	"rpmt/models"
	"rpmt/services"
	"rpmt/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Options sind die Abhängigkeiten des Web-Servers.
type Options struct {
	Config   *config.Config
	DB       *gorm.DB
	Store    storage.ObjectStore
	Users    *services.UserService
	Projects *services.ProjectService
	Report   *services.Report
	Sweeper  *services.Sweeper
	Logger   *zap.Logger
}

// Server hält Handler und Middleware der Weboberfläche.
type Server struct {
	Options

	sessions   *Sessions
	sweepLimit *rate.Limiter
	maxUpload  int64
	secure     bool
}

// NewServer erstellt einen neuen Server.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	minInterval := cfg.SweepMinInterval
	if minInterval <= 0 {
		minInterval = time.Minute
	}
	return &Server{
		Options: opts,
		sessions: &Sessions{
			Secret:      []byte(cfg.SessionSecret),
			TTL:         cfg.SessionTTL,
			RememberTTL: cfg.SessionRememberTTL,
		},
		sweepLimit: rate.NewLimiter(rate.Every(minInterval), 1),
		maxUpload:  int64(cfg.MaxUploadMB) << 20,
		secure:     !cfg.IsDevelopment(),
	}
}

// Router baut die gin-Engine mit allen Routen.
func (s *Server) Router() *gin.Engine {
	useFormFieldNames()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(secureCookies(s.secure))
	router.Use(RequestMetrics())
	router.Use(s.loadUser())
	router.Use(RequestLogger(s.Logger))
	router.MaxMultipartMemory = s.maxUpload + 1<<20
	router.SetHTMLTemplate(s.templates())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", s.healthz)

	s.setupPublicRoutes(router)
	s.setupAuthRoutes(router)
	s.setupAdminRoutes(router)

	router.NoRoute(func(c *gin.Context) {
		s.render(c, http.StatusNotFound, "error.html", gin.H{"Message": "Page not found."})
	})
	return router
}

func (s *Server) templates() *template.Template {
	funcs := template.FuncMap{
		"proofURL": func(name string) string {
			if services.IsEmptyProof(name) {
				return ""
			}
			return s.Store.PublicURL(name)
		},
		"hasProof":      func(name string) bool { return !services.IsEmptyProof(name) },
		"date":          func(t time.Time) string { return t.Format("2006-01-02") },
		"join":          services.JoinNames,
		"canMutate":     services.CanMutate,
		"canAdminister": services.CanAdminister,
		"slotLabel":     slotLabel,
		"slotValue":     func(p *models.Project, slot services.Slot) string { return slot.Get(p) },
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html"))
}

func slotLabel(slot services.Slot) string {
	switch slot {
	case services.SlotPublicationProof:
		return "Publication Proof"
	case services.SlotUtilizationProof:
		return "Utilization Proof"
	case services.SlotPDF:
		return "PDF"
	}
	return string(slot)
}

// render ergänzt Benutzer und Flash-Meldungen und rendert name.
func (s *Server) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if errs, _ := data["Errors"].(map[string]string); errs == nil {
		data["Errors"] = map[string]string{}
	}
	data["User"] = currentUser(c)
	data["Flashes"] = popFlashes(c)
	c.HTML(status, name, data)
}

func (s *Server) healthz(c *gin.Context) {
	sqlDB, err := s.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) setSession(c *gin.Context, user *models.User, remember bool) error {
	token, sess, err := s.sessions.Issue(user.ID, remember)
	if err != nil {
		return err
	}
	maxAge := 0
	if remember {
		maxAge = int(time.Until(sess.ExpiresAt).Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, maxAge, "/", "", s.secure, true)
	s.Logger.Info("Session started", zap.Uint("user_id", user.ID), zap.String("session_id", sess.ID), zap.Bool("remember", remember))
	return nil
}

func (s *Server) clearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", s.secure, true)
}
