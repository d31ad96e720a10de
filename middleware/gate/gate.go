package gate

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tech-arch1tect/confadmin/config"
)

const (
	allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	allowHeaders = "Content-Type, Authorization, X-Requested-With"
)

type Action int

const (
	// Allow lets the request continue to routing with Headers added to the response.
	Allow Action = iota
	// Redirect answers with Status and Location.
	Redirect
	// Respond answers with Status and Headers and an empty body.
	Respond
)

func (a Action) String() string {
	switch a {
	case Redirect:
		return "redirect"
	case Respond:
		return "respond"
	default:
		return "allow"
	}
}

// Rules name the policy that produced a decision.
const (
	RulePreflight = "preflight"
	RuleCORS      = "cors"
	RuleProtected = "protected"
	RuleEntry     = "entry"
	RulePass      = "pass"
)

// Policy is the immutable gate configuration, built once at start-up.
type Policy struct {
	APIPrefix          string
	AllowedOrigins     []string
	PermissiveFallback bool
	ProtectedPrefixes  []string
	SignInPath         string
	SignUpPath         string
	DashboardPath      string
	CallbackParam      string
	SessionCookies     []string
	PreflightMaxAge    time.Duration
}

// NewPolicy copies cfg so later changes to it cannot leak into a running gate.
// sessionCookies are the cookie names accepted as a session marker.
func NewPolicy(cfg config.GateConfig, sessionCookies []string) Policy {
	p := Policy{
		APIPrefix:          cfg.APIPrefix,
		AllowedOrigins:     slices.Clone(cfg.AllowedOrigins),
		PermissiveFallback: cfg.PermissiveFallback,
		SignInPath:         cfg.SignInPath,
		SignUpPath:         cfg.SignUpPath,
		DashboardPath:      cfg.DashboardPath,
		CallbackParam:      cfg.CallbackParam,
		SessionCookies:     slices.Clone(sessionCookies),
		PreflightMaxAge:    cfg.PreflightMaxAge,
	}
	if cfg.ProtectDashboard {
		p.ProtectedPrefixes = slices.Clone(cfg.ProtectedPrefixes)
	}
	return p
}

// Request is the transport-independent view of an inbound request.
type Request struct {
	Method string
	Path   string
	// RequestURI is the path plus raw query, as sent by the client.
	RequestURI string
	Origin     string
	Cookies    []string
	Query      url.Values
}

func RequestFrom(r *http.Request) Request {
	cookies := r.Cookies()
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	return Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		RequestURI: r.URL.RequestURI(),
		Origin:     r.Header.Get("Origin"),
		Cookies:    names,
		Query:      r.URL.Query(),
	}
}

type Decision struct {
	Action   Action
	Rule     string
	Status   int
	Location string
	Headers  http.Header
}

// Evaluate applies, in order, the CORS policy for API paths, the protected-path
// gate and the entry-point redirect. It never inspects session contents, only
// whether a marker cookie is present.
func Evaluate(p Policy, r Request) Decision {
	if p.APIPrefix != "" && strings.HasPrefix(r.Path, p.APIPrefix) {
		headers := corsHeaders(p, r.Origin)
		if r.Method == http.MethodOptions {
			headers.Set("Access-Control-Allow-Methods", allowMethods)
			headers.Set("Access-Control-Allow-Headers", allowHeaders)
			headers.Set("Access-Control-Max-Age", strconv.Itoa(int(p.PreflightMaxAge.Seconds())))
			return Decision{Action: Respond, Rule: RulePreflight, Status: http.StatusOK, Headers: headers}
		}
		return Decision{Action: Allow, Rule: RuleCORS, Headers: headers}
	}

	hasSession := hasMarker(p, r.Cookies)

	if !hasSession && isProtected(p, r.Path) {
		callback := r.RequestURI
		if callback == "" {
			callback = r.Path
		}
		return redirect(RuleProtected, p.SignInPath+"?"+url.Values{p.CallbackParam: {callback}}.Encode())
	}

	if hasSession && isEntryPoint(p, r.Path) {
		return redirect(RuleEntry, p.CallbackTarget(r.Query.Get(p.CallbackParam)))
	}

	return Decision{Action: Allow, Rule: RulePass}
}

func redirect(rule, location string) Decision {
	return Decision{Action: Redirect, Rule: rule, Status: http.StatusFound, Location: location}
}

func corsHeaders(p Policy, origin string) http.Header {
	h := http.Header{}
	h.Set("Vary", "Origin")

	allowed := ""
	switch {
	case origin != "" && slices.Contains(p.AllowedOrigins, origin):
		allowed = origin
	case p.PermissiveFallback && len(p.AllowedOrigins) > 0:
		allowed = p.AllowedOrigins[0]
	}
	if allowed != "" {
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	return h
}

func hasMarker(p Policy, cookies []string) bool {
	for _, name := range cookies {
		if slices.Contains(p.SessionCookies, name) {
			return true
		}
	}
	return false
}

// isProtected matches whole path segments, so "/dashboard" covers "/dashboard/x" but not "/dashboards".
func isProtected(p Policy, path string) bool {
	for _, prefix := range p.ProtectedPrefixes {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			return true
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func isEntryPoint(p Policy, path string) bool {
	if path == p.SignInPath {
		return true
	}
	signup := strings.TrimRight(p.SignUpPath, "/")
	return signup != "" && (path == signup || path == signup+"/")
}

// CallbackTarget keeps only the path of a callback URL. Anything that could
// leave the site, or would land back on an entry point, falls back to the dashboard.
func (p Policy) CallbackTarget(raw string) string {
	if raw == "" {
		return p.DashboardPath
	}
	u, err := url.Parse(raw)
	if err != nil {
		return p.DashboardPath
	}
	path := u.Path
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.Contains(path, `\`) {
		return p.DashboardPath
	}
	if isEntryPoint(p, path) {
		return p.DashboardPath
	}
	return u.EscapedPath()
}
