package routeguard

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"tenant-dashboard/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Action int

const (
	Allow Action = iota
	RedirectHome
	RedirectLogin
)

func (a Action) String() string {
	switch a {
	case RedirectHome:
		return "redirect_home"
	case RedirectLogin:
		return "redirect_login"
	default:
		return "allow"
	}
}

type Decision struct {
	Action   Action
	Class    Class
	Location string
}

type Policy struct {
	LoginPath string
	HomePath  string
	FromParam string
	// CheckExpiry treats a JWT-shaped credential whose exp has passed as absent.
	// The signature is not verified; opaque tokens are judged by presence only.
	CheckExpiry bool
	Now         func() time.Time
}

func DefaultPolicy() Policy {
	return Policy{LoginPath: "/login", HomePath: "/home", FromParam: "from", Now: time.Now}
}

type Guard struct {
	rules  Rules
	policy Policy
}

func New(rules Rules, policy Policy) *Guard {
	def := DefaultPolicy()
	if policy.LoginPath == "" {
		policy.LoginPath = def.LoginPath
	}
	if policy.HomePath == "" {
		policy.HomePath = def.HomePath
	}
	if policy.FromParam == "" {
		policy.FromParam = def.FromParam
	}
	if policy.Now == nil {
		policy.Now = time.Now
	}
	return &Guard{rules: rules, policy: policy}
}

func (g *Guard) Rules() Rules { return g.rules }

func (g *Guard) Policy() Policy { return g.policy }

// Decide applies the edge decision table, first match wins:
//
//	credential + Public            -> home
//	no credential + Protected      -> login?from=<path>
//	TokenGatedSpecial              -> allow
//	no credential + Public         -> allow
//	credential + Protected         -> allow
func (g *Guard) Decide(token string, u *url.URL) Decision {
	class := g.rules.Classify(u.Path, u.Query())
	present := g.present(token)

	switch {
	case present && class == Public:
		return Decision{Action: RedirectHome, Class: class, Location: g.policy.HomePath}
	case !present && class == Protected:
		return Decision{Action: RedirectLogin, Class: class, Location: g.LoginURL(u.Path)}
	default:
		return Decision{Action: Allow, Class: class}
	}
}

// LoginURL builds the login location preserving from as the recovery parameter.
func (g *Guard) LoginURL(from string) string {
	if from == "" || from == g.policy.LoginPath {
		return g.policy.LoginPath
	}
	q := strings.ReplaceAll(url.QueryEscape(from), "%2F", "/")
	return g.policy.LoginPath + "?" + g.policy.FromParam + "=" + q
}

func (g *Guard) present(token string) bool {
	if token == "" {
		return false
	}
	if !g.policy.CheckExpiry {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return g.policy.Now().Before(exp.Time)
}

// Edge runs the guard before any page handler.
func Edge(g *Guard, cookieName string, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.rules.IsIgnored(c.Request.URL.Path) {
			c.Next()
			return
		}
		token, _ := c.Cookie(cookieName)
		d := g.Decide(token, c.Request.URL)
		m.EdgeDecision(d.Action.String())

		if d.Action != Allow {
			c.Redirect(http.StatusFound, d.Location)
			c.Abort()
			return
		}
		c.Set(ClassKey, d.Class)
		c.Next()
	}
}

// ClassKey is the gin context key holding the route Class of an allowed request.
const ClassKey = "route_class"

// ClassFrom returns the class Edge stored, classifying afresh when Edge did not run.
func ClassFrom(c *gin.Context, rules Rules) Class {
	if v, ok := c.Get(ClassKey); ok {
		if cl, ok := v.(Class); ok {
			return cl
		}
	}
	return rules.Classify(c.Request.URL.Path, c.Request.URL.Query())
}
