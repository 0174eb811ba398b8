// Package fakeidp serves an in-process stand-in for Authentik and the three
// applications behind it, so the login driver and checks can run against a
// real browser without the deployed stack. Pages mimic the parts the driver
// depends on: flow URLs under /if/flow/, an identifier field inside a shadow
// root, a separate password stage, an optional consent stage and admin pages
// rendered client-side by hash route.
package fakeidp

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const (
	sessionCookie = "authentik_session"

	AuthenticationFlowPath = "/if/flow/default-authentication-flow/"
	ConsentFlowPath        = "/if/flow/default-provider-authorization-explicit-consent/"
	AuthorizePath          = "/application/o/authorize/"
	AdminPath              = "/if/admin/"
)

const (
	stageIdentify = "identify"
	stagePassword = "password"
	stageConsent  = "consent"
)

// Provider is a fake identity provider with a single account.
type Provider struct {
	email    string
	password string
	consent  bool

	applications []string
	providers    []string

	mu       sync.Mutex
	sessions map[string]*session
	codes    map[string]string
}

type session struct {
	stage         string
	user          string
	failed        bool
	authenticated bool
	// pending is the authorize request waiting on this login, if any.
	pending *authRequest
	next    string
}

type authRequest struct {
	redirectURI string
	state       string
	clientID    string
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithConsent adds an explicit consent stage after authentication.
func WithConsent() ProviderOption {
	return func(p *Provider) { p.consent = true }
}

// WithAdminObjects sets the names listed on the admin applications and
// providers pages.
func WithAdminObjects(applications, providers []string) ProviderOption {
	return func(p *Provider) {
		p.applications = applications
		p.providers = providers
	}
}

// NewProvider returns a Provider that accepts only email/password.
func NewProvider(email, password string, opts ...ProviderOption) *Provider {
	p := &Provider{
		email:        email,
		password:     password,
		applications: []string{"OpenWebUI", "LiteLLM", "Windmill"},
		providers:    []string{"OpenWebUI", "LiteLLM", "Windmill"},
		sessions:     make(map[string]*session),
		codes:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RegisterRoutes registers the flow, authorize and admin pages.
func (p *Provider) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+AuthorizePath, p.handleAuthorize)
	mux.HandleFunc("GET /if/flow/{slug}/", p.handleFlow)
	mux.HandleFunc("POST /if/flow/{slug}/", p.handleFlowSubmit)
	mux.HandleFunc("GET "+AdminPath, p.handleAdmin)
}

// Redeem exchanges an authorization code for the account email. Codes are
// single use.
func (p *Provider) Redeem(code string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	email, ok := p.codes[code]
	delete(p.codes, code)
	return email, ok
}

func (p *Provider) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &authRequest{
		redirectURI: q.Get("redirect_uri"),
		state:       q.Get("state"),
		clientID:    q.Get("client_id"),
	}
	if req.redirectURI == "" {
		http.Error(w, "Missing redirect_uri", http.StatusBadRequest)
		return
	}

	s := p.session(w, r)
	p.mu.Lock()
	s.pending = req
	authenticated := s.authenticated
	p.mu.Unlock()

	if authenticated {
		p.advance(w, r, s)
		return
	}
	p.startLogin(w, r, s, r.URL.RequestURI())
}

func (p *Provider) handleAdmin(w http.ResponseWriter, r *http.Request) {
	s := p.session(w, r)
	p.mu.Lock()
	authenticated := s.authenticated
	p.mu.Unlock()

	if !authenticated {
		p.mu.Lock()
		s.pending = nil
		s.next = AdminPath
		p.mu.Unlock()
		p.startLogin(w, r, s, AdminPath)
		return
	}

	apps, _ := json.Marshal(p.applications)
	provs, _ := json.Marshal(p.providers)
	writeHTML(w, fmt.Sprintf(adminPage, apps, provs))
}

func (p *Provider) startLogin(w http.ResponseWriter, r *http.Request, s *session, next string) {
	p.mu.Lock()
	s.stage = stageIdentify
	s.user = ""
	s.failed = false
	p.mu.Unlock()
	http.Redirect(w, r, AuthenticationFlowPath+"?next="+url.QueryEscape(next), http.StatusFound)
}

func (p *Provider) handleFlow(w http.ResponseWriter, r *http.Request) {
	s := p.session(w, r)

	p.mu.Lock()
	if r.URL.Query().Get("reset") != "" {
		s.stage = stageIdentify
		s.user = ""
		s.failed = false
	}
	if s.stage == "" {
		s.stage = stageIdentify
	}
	stage, user, failed := s.stage, s.user, s.failed
	var clientID string
	if s.pending != nil {
		clientID = s.pending.clientID
	}
	p.mu.Unlock()

	action := html.EscapeString(r.URL.RequestURI())
	switch stage {
	case stagePassword:
		msg := ""
		if failed {
			msg = `<p class="pf-m-error">Invalid password</p>`
		}
		writeHTML(w, fmt.Sprintf(passwordPage, html.EscapeString(user), msg, action))
	case stageConsent:
		writeHTML(w, fmt.Sprintf(consentPage, html.EscapeString(clientID), action))
	default:
		writeHTML(w, fmt.Sprintf(identifyPage, action))
	}
}

func (p *Provider) handleFlowSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	s := p.session(w, r)

	p.mu.Lock()
	switch s.stage {
	case stageIdentify, "":
		if uid := strings.TrimSpace(r.FormValue("uid")); uid != "" {
			s.user = uid
			s.stage = stagePassword
			s.failed = false
		}
	case stagePassword:
		if s.user == p.email && r.FormValue("password") == p.password {
			s.authenticated = true
			s.failed = false
			p.mu.Unlock()
			p.advance(w, r, s)
			return
		}
		s.failed = true
	case stageConsent:
		if r.FormValue("action") == "authorize" {
			req := s.pending
			s.pending = nil
			s.stage = ""
			p.mu.Unlock()
			p.complete(w, r, req)
			return
		}
	}
	p.mu.Unlock()

	http.Redirect(w, r, r.URL.RequestURI(), http.StatusSeeOther)
}

// advance moves an authenticated session to consent, back to the client, or
// to the page that started the login.
func (p *Provider) advance(w http.ResponseWriter, r *http.Request, s *session) {
	p.mu.Lock()
	req := s.pending
	next := s.next
	if req != nil && p.consent {
		s.stage = stageConsent
		p.mu.Unlock()
		http.Redirect(w, r, ConsentFlowPath, http.StatusSeeOther)
		return
	}
	s.pending = nil
	s.stage = ""
	p.mu.Unlock()

	if req == nil {
		if next == "" {
			next = AdminPath
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	p.complete(w, r, req)
}

func (p *Provider) complete(w http.ResponseWriter, r *http.Request, req *authRequest) {
	if req == nil {
		http.Redirect(w, r, AdminPath, http.StatusSeeOther)
		return
	}
	code := randomToken()
	p.mu.Lock()
	p.codes[code] = p.email
	p.mu.Unlock()

	target, err := url.Parse(req.redirectURI)
	if err != nil {
		http.Error(w, "Invalid redirect_uri", http.StatusBadRequest)
		return
	}
	q := target.Query()
	q.Set("code", code)
	if req.state != "" {
		q.Set("state", req.state)
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}

// session returns the caller's session, creating one when absent.
func (p *Provider) session(w http.ResponseWriter, r *http.Request) *session {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, err := r.Cookie(sessionCookie); err == nil {
		if s, ok := p.sessions[c.Value]; ok {
			return s
		}
	}
	id := randomToken()
	s := &session{}
	p.sessions[id] = s
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	return s
}

func randomToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(body))
}

const identifyPage = `<!DOCTYPE html>
<html><head><title>authentik</title></head>
<body>
<ak-flow-executor data-action="%s"></ak-flow-executor>
<script>
customElements.define('ak-flow-executor', class extends HTMLElement {
  connectedCallback() {
    const root = this.attachShadow({mode: 'open'});
    root.innerHTML =
      '<h1>Welcome to authentik!</h1>' +
      '<form method="post" action="' + this.dataset.action + '">' +
      '<input name="uid" type="text" autocomplete="username" placeholder="Email or Username" autofocus>' +
      '<button type="submit">Log in</button>' +
      '</form>';
  }
});
</script>
</body></html>`

const passwordPage = `<!DOCTYPE html>
<html><head><title>authentik</title></head>
<body>
<h1>Welcome to authentik!</h1>
<div class="user">%s <a href="?reset=1">Not you?</a></div>
%s
<form method="post" action="%s">
<input name="password" type="password" autocomplete="current-password" placeholder="Please enter your password">
<button type="submit">Log in</button>
</form>
</body></html>`

const consentPage = `<!DOCTYPE html>
<html><head><title>authentik</title></head>
<body>
<h1>Authorize Application</h1>
<p>%s is requesting access to your account.</p>
<form method="post" action="%s">
<input type="hidden" name="action" value="authorize">
<button type="submit">Authorize</button>
</form>
</body></html>`

const adminPage = `<!DOCTYPE html>
<html><head><title>authentik admin</title></head>
<body>
<main id="main"></main>
<script>
const pages = {
  '#/core/applications': {title: 'Applications', items: %s},
  '#/core/providers': {title: 'Providers', items: %s},
};
function render() {
  const page = pages[location.hash] || {title: 'Overview', items: []};
  document.getElementById('main').innerHTML =
    '<ak-page-header>' + page.title + '</ak-page-header>' +
    '<table>' + page.items.map((name) => '<tr><td>' + name + '</td></tr>').join('') + '</table>';
}
window.addEventListener('hashchange', render);
render();
</script>
</body></html>`
