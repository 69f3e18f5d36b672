package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/chestscan/internal/auth"
	"github.com/example/chestscan/internal/inference"
	"github.com/example/chestscan/internal/repository"
	"github.com/example/chestscan/internal/session"
	"github.com/example/chestscan/internal/upload"
	"github.com/example/chestscan/internal/usecase"
)

// MaxUploadSize caps the multipart memory buffer for uploads.
const MaxUploadSize = 10 << 20

// Server bundles the collaborators the HTTP surface needs.
type Server struct {
	auth     *auth.Service
	sessions *session.Manager
	analysis *usecase.AnalysisUseCase
	logger   *zap.Logger
}

// NewServer constructs the handler set.
func NewServer(authService *auth.Service, sessions *session.Manager, analysis *usecase.AnalysisUseCase, logger *zap.Logger) *Server {
	return &Server{
		auth:     authService,
		sessions: sessions,
		analysis: analysis,
		logger:   logger.Named("http"),
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.Use(noStore())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/", s.index)
	router.GET("/register", s.registerForm)
	router.POST("/register", s.register)
	router.GET("/login", s.loginForm)
	router.POST("/login", s.login)
	router.GET("/logout", s.logout)

	protected := router.Group("", auth.RequireLogin(s.sessions))
	protected.GET("/analyse", s.analyseForm)
	protected.POST("/analyse", s.analyse)
	protected.GET("/prerecord", s.previousRecords)
	protected.POST("/prerecord", s.lookupRecord)
	protected.GET("/metrics", s.metrics)
}

// noStore keeps responses out of browser caches, matching the app's
// no-cache policy for authenticated pages.
func noStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Expires", "0")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}

func (s *Server) index(c *gin.Context) {
	data := gin.H{"LoggedIn": false}
	if cookie, err := c.Cookie(session.CookieName); err == nil {
		if userID, err := s.sessions.Resolve(c.Request.Context(), cookie); err == nil {
			data["LoggedIn"] = true
			if courses, err := s.auth.CourseProgress(c.Request.Context(), userID); err == nil {
				data["Courses"] = courses
			}
		}
	}
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) registerForm(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", nil)
}

func (s *Server) register(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	confirmation := c.PostForm("confirmation")

	_, err := s.auth.Register(c.Request.Context(), username, password, confirmation)
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/login")
	case errors.Is(err, auth.ErrMissingFields):
		s.renderError(c, http.StatusBadRequest, "Username and password are required")
	case errors.Is(err, auth.ErrPasswordMismatch):
		s.renderError(c, http.StatusBadRequest, "Passwords don't match")
	case errors.Is(err, auth.ErrUsernameTaken):
		s.renderError(c, http.StatusConflict, "User already exists")
	default:
		s.logger.Error("registration failed", zap.Error(err))
		s.renderError(c, http.StatusInternalServerError, "Registration failed, please try again")
	}
}

func (s *Server) loginForm(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", nil)
}

func (s *Server) login(c *gin.Context) {
	// Any prior session for this client is invalidated before a new login
	// attempt.
	s.clearSession(c)

	user, err := s.auth.Login(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.renderError(c, http.StatusUnauthorized, "Invalid username and/or password")
			return
		}
		s.logger.Error("login failed", zap.Error(err))
		s.renderError(c, http.StatusInternalServerError, "Login failed, please try again")
		return
	}

	cookieValue, err := s.sessions.Issue(c.Request.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to issue session", zap.Error(err))
		s.renderError(c, http.StatusInternalServerError, "Login failed, please try again")
		return
	}

	c.SetCookie(session.CookieName, cookieValue, int(s.sessions.TTL().Seconds()), "/", "", false, true)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) logout(c *gin.Context) {
	s.clearSession(c)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) analyseForm(c *gin.Context) {
	c.HTML(http.StatusOK, "analyse.html", nil)
}

func (s *Server) analyse(c *gin.Context) {
	userID, ok := auth.UserID(c.Request.Context())
	if !ok {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.renderError(c, http.StatusBadRequest, "No file part in the request")
		return
	}
	if fileHeader.Filename == "" {
		s.renderError(c, http.StatusBadRequest, "No file selected")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		s.renderError(c, http.StatusBadRequest, "Unable to open the uploaded file")
		return
	}
	defer src.Close()

	result, err := s.analysis.AnalyseUpload(c.Request.Context(), userID, fileHeader.Filename, src)
	switch {
	case err == nil:
		c.HTML(http.StatusOK, "result.html", gin.H{
			"Positive":  result.Positive,
			"Percent":   result.Probability * 100,
			"RequestID": result.RequestID,
		})
	case errors.Is(err, upload.ErrEmptyFilename):
		s.renderError(c, http.StatusBadRequest, "No file selected")
	case errors.Is(err, upload.ErrUnsupportedType):
		s.renderError(c, http.StatusBadRequest, "Only PNG and JPEG images are supported")
	case errors.Is(err, inference.ErrDecode):
		s.renderError(c, http.StatusBadRequest, "The uploaded file is not a readable image")
	case errors.Is(err, inference.ErrModelUnavailable):
		s.renderError(c, http.StatusServiceUnavailable, "The analysis model is unavailable, please try again later")
	default:
		s.logger.Error("analysis failed", zap.Error(err))
		s.renderError(c, http.StatusInternalServerError, "Analysis failed, please try again")
	}
}

func (s *Server) previousRecords(c *gin.Context) {
	userID, ok := auth.UserID(c.Request.Context())
	if !ok {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	records, err := s.analysis.ListScans(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("failed to list scans", zap.Error(err))
		s.renderError(c, http.StatusInternalServerError, "Could not load previous records")
		return
	}
	c.HTML(http.StatusOK, "prerecord.html", gin.H{"Records": records})
}

func (s *Server) lookupRecord(c *gin.Context) {
	userID, ok := auth.UserID(c.Request.Context())
	if !ok {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	requestID := c.PostForm("request_id")
	if requestID == "" {
		s.renderError(c, http.StatusBadRequest, "A record id is required")
		return
	}

	record, err := s.analysis.GetScan(c.Request.Context(), userID, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.renderError(c, http.StatusNotFound, "Record not found")
			return
		}
		s.logger.Error("failed to load scan", zap.Error(err))
		s.renderError(c, http.StatusInternalServerError, "Could not load the record")
		return
	}

	records, err := s.analysis.ListScans(c.Request.Context(), userID)
	if err != nil {
		records = []repository.ScanRecord{*record}
	}
	c.HTML(http.StatusOK, "prerecord.html", gin.H{
		"Records":  records,
		"Selected": record,
	})
}

func (s *Server) metrics(c *gin.Context) {
	summary, err := s.analysis.GetMetricsSummary(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to aggregate metrics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "metrics unavailable"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) renderError(c *gin.Context, status int, message string) {
	c.HTML(status, "error.html", gin.H{"Message": message})
}

func (s *Server) clearSession(c *gin.Context) {
	if cookie, err := c.Cookie(session.CookieName); err == nil {
		if err := s.sessions.Revoke(c.Request.Context(), cookie); err != nil {
			s.logger.Warn("failed to revoke session", zap.Error(err))
		}
	}
	c.SetCookie(session.CookieName, "", -1, "/", "", false, true)
}
