package devbackend

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tenant-dashboard/internal/rbac"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type Server struct {
	repo   Repository
	tokens *Manager
	log    *slog.Logger
	clock  func() time.Time
}

func NewServer(repo Repository, tokens *Manager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{repo: repo, tokens: tokens, log: log, clock: time.Now}
}

// Register mounts the endpoints on r.
func (s *Server) Register(r gin.IRouter) {
	r.POST("/auth/login", s.login)

	authed := r.Group("/", s.requireToken())
	authed.GET("/auth/me", s.me)
	authed.GET("/organizations", s.organizations)
	authed.GET("/organizations/:id/role", s.role)
	authed.POST("/organizations/:id/switch", s.switchOrganization)
}

const ctxClaims = "claims"

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		tok, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := s.tokens.Verify(tok, s.clock())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		// A revoked membership invalidates tokens scoped to it.
		if _, err := s.repo.Membership(c.Request.Context(), claims.UserID, claims.OrganizationID); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "membership revoked"})
			return
		}
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) Claims {
	v, _ := c.Get(ctxClaims)
	cl, _ := v.(Claims)
	return cl
}

type loginResponse struct {
	AccessToken    string `json:"access_token"`
	TokenType      string `json:"token_type"`
	OrganizationID string `json:"organization_id"`
}

func (s *Server) login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if email == "" || password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	ctx := c.Request.Context()
	u, err := s.repo.UserByEmail(ctx, email)
	if err != nil {
		s.fail(c, err, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	ms, err := s.repo.Memberships(ctx, u.ID)
	if err != nil {
		s.fail(c, err, http.StatusInternalServerError, "internal error")
		return
	}
	if len(ms) == 0 {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user has no organization"})
		return
	}

	tok, err := s.tokens.Issue(s.clock(), u, ms[0].ID, ms[0].Role)
	if err != nil {
		s.fail(c, err, http.StatusInternalServerError, "internal error")
		return
	}
	s.log.Info("devbackend: login", "user_id", u.ID, "organization_id", ms[0].ID)
	c.JSON(http.StatusOK, loginResponse{AccessToken: tok, TokenType: "bearer", OrganizationID: ms[0].ID})
}

func (s *Server) me(c *gin.Context) {
	cl := claimsFrom(c)
	m, err := s.repo.Membership(c.Request.Context(), cl.UserID, cl.OrganizationID)
	if err != nil {
		s.fail(c, err, http.StatusUnauthorized, "membership revoked")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":         cl.UserID,
		"email":           cl.Email,
		"is_admin":        rbac.IsAdmin(m.Role),
		"organization_id": cl.OrganizationID,
	})
}

func (s *Server) organizations(c *gin.Context) {
	ms, err := s.repo.Memberships(c.Request.Context(), claimsFrom(c).UserID)
	if err != nil {
		s.fail(c, err, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]gin.H, 0, len(ms))
	for _, m := range ms {
		out = append(out, gin.H{"id": m.ID, "name": m.Name})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) role(c *gin.Context) {
	m, err := s.repo.Membership(c.Request.Context(), claimsFrom(c).UserID, c.Param("id"))
	if err != nil {
		s.fail(c, err, http.StatusNotFound, "organization not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": m.Role})
}

func (s *Server) switchOrganization(c *gin.Context) {
	cl := claimsFrom(c)
	ctx := c.Request.Context()
	m, err := s.repo.Membership(ctx, cl.UserID, c.Param("id"))
	if err != nil {
		s.fail(c, err, http.StatusNotFound, "organization not found")
		return
	}
	u, err := s.repo.UserByID(ctx, cl.UserID)
	if err != nil {
		s.fail(c, err, http.StatusUnauthorized, "unknown user")
		return
	}
	tok, err := s.tokens.Issue(s.clock(), u, m.ID, m.Role)
	if err != nil {
		s.fail(c, err, http.StatusInternalServerError, "internal error")
		return
	}
	s.log.Info("devbackend: switch", "user_id", u.ID, "from", cl.OrganizationID, "to", m.ID)
	c.JSON(http.StatusOK, loginResponse{AccessToken: tok, TokenType: "bearer", OrganizationID: m.ID})
}

// fail answers notFoundCode for ErrNotFound and 500 for anything else.
func (s *Server) fail(c *gin.Context, err error, notFoundCode int, msg string) {
	if errors.Is(err, ErrNotFound) {
		c.AbortWithStatusJSON(notFoundCode, gin.H{"error": msg})
		return
	}
	s.log.Error("devbackend: request failed", "path", c.FullPath(), "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
