package fakeidp

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// AppKind selects which application an App imitates.
type AppKind string

const (
	Windmill  AppKind = "windmill"
	LiteLLM   AppKind = "litellm"
	OpenWebUI AppKind = "openwebui"
)

// App is a fake relying party that signs users in through the Provider.
type App struct {
	kind     AppKind
	provider *Provider
	idpURL   string
	// admin controls whether the signed-in user may open OpenWebUI's /admin.
	admin bool

	mu       sync.Mutex
	sessions map[string]string
	seen     map[string]bool
}

// NewApp returns an App that redirects to the provider served at idpURL.
func NewApp(kind AppKind, provider *Provider, idpURL string, admin bool) *App {
	return &App{
		kind:     kind,
		provider: provider,
		idpURL:   strings.TrimRight(idpURL, "/"),
		admin:    admin,
		sessions: make(map[string]string),
		seen:     make(map[string]bool),
	}
}

func (a *App) cookieName() string { return string(a.kind) + "_session" }

func (a *App) loginPath() string {
	switch a.kind {
	case LiteLLM:
		return "/sso/key/generate"
	case OpenWebUI:
		return "/oauth/oidc/login"
	default:
		return "/api/oauth/login/authentik"
	}
}

func (a *App) callbackPath() string {
	switch a.kind {
	case LiteLLM:
		return "/sso/callback"
	case OpenWebUI:
		return "/oauth/oidc/callback"
	default:
		return "/user/login_callback/authentik"
	}
}

func (a *App) homePath() string {
	if a.kind == LiteLLM {
		return "/ui/"
	}
	return "/"
}

// RegisterRoutes registers the app's pages and its OAuth endpoints.
func (a *App) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+a.loginPath(), a.handleLogin)
	mux.HandleFunc("GET "+a.callbackPath(), a.handleCallback)

	switch a.kind {
	case LiteLLM:
		mux.HandleFunc("GET /ui/", a.handleLiteLLM)
	case OpenWebUI:
		mux.HandleFunc("GET /auth", a.handleOpenWebUIAuth)
		mux.HandleFunc("GET /admin", a.handleOpenWebUIAdmin)
		mux.HandleFunc("GET /{$}", a.handleOpenWebUIHome)
	default:
		mux.HandleFunc("GET /{$}", a.handleWindmill)
	}
}

func (a *App) user(r *http.Request) string {
	c, err := r.Cookie(a.cookieName())
	if err != nil {
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[c.Value]
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	redirect := "http://" + r.Host + a.callbackPath()
	q := url.Values{}
	q.Set("client_id", string(a.kind))
	q.Set("redirect_uri", redirect)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile groups")
	q.Set("state", randomToken())
	http.Redirect(w, r, a.idpURL+AuthorizePath+"?"+q.Encode(), http.StatusFound)
}

func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	email, ok := a.provider.Redeem(r.URL.Query().Get("code"))
	if !ok {
		http.Error(w, "invalid code", http.StatusUnauthorized)
		return
	}
	id := randomToken()
	a.mu.Lock()
	a.sessions[id] = email
	a.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: a.cookieName(), Value: id, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	http.Redirect(w, r, a.homePath(), http.StatusSeeOther)
}

func (a *App) handleWindmill(w http.ResponseWriter, r *http.Request) {
	if a.user(r) == "" {
		writeHTML(w, fmt.Sprintf(windmillLoginPage, a.loginPath()))
		return
	}
	writeHTML(w, windmillHomePage)
}

func (a *App) handleLiteLLM(w http.ResponseWriter, r *http.Request) {
	if a.user(r) == "" {
		writeHTML(w, fmt.Sprintf(litellmLoginPage, a.loginPath()))
		return
	}
	writeHTML(w, litellmHomePage)
}

func (a *App) handleOpenWebUIAuth(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, fmt.Sprintf(openwebuiAuthPage, a.loginPath()))
}

func (a *App) handleOpenWebUIHome(w http.ResponseWriter, r *http.Request) {
	email := a.user(r)
	if email == "" {
		http.Redirect(w, r, "/auth", http.StatusFound)
		return
	}
	a.mu.Lock()
	first := !a.seen[email]
	a.seen[email] = true
	a.mu.Unlock()

	modal := ""
	if first {
		modal = openwebuiChangelogModal
	}
	writeHTML(w, fmt.Sprintf(openwebuiHomePage, modal))
}

func (a *App) handleOpenWebUIAdmin(w http.ResponseWriter, r *http.Request) {
	if a.user(r) == "" {
		http.Redirect(w, r, "/auth", http.StatusFound)
		return
	}
	if !a.admin {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	writeHTML(w, openwebuiAdminPage)
}

const windmillLoginPage = `<!DOCTYPE html>
<html><head><title>Windmill</title></head>
<body>
<h2>Log in</h2>
<a href="%s"><button type="button">Authentik</button></a>
</body></html>`

const windmillHomePage = `<!DOCTYPE html>
<html><head><title>Windmill</title></head>
<body>
<nav><a href="/">Home</a> <a href="/runs">Runs</a> <a href="/scripts">Scripts</a> <a href="/flows">Flows</a> <a href="/schedules">Schedules</a></nav>
</body></html>`

const litellmLoginPage = `<!DOCTYPE html>
<html><head><title>LiteLLM</title></head>
<body>
<h2>LiteLLM Admin</h2>
<a href="%s">Login</a>
</body></html>`

const litellmHomePage = `<!DOCTYPE html>
<html><head><title>LiteLLM</title></head>
<body>
<nav><span>Virtual Keys</span> <span>Models</span> <span>Settings</span></nav>
</body></html>`

const openwebuiAuthPage = `<!DOCTYPE html>
<html><head><title>Open WebUI</title></head>
<body>
<div id="splash-screen" style="position:fixed;inset:0;background:#000;z-index:100"></div>
<div id="landing">
<button aria-labelledby="get-started" id="get-started" onclick="document.getElementById('landing').style.display='none';document.getElementById('signin').style.display='block'">Get started</button>
</div>
<div id="signin" style="display:none">
<a href="%s"><button type="button">Continue with Authentik</button></a>
</div>
</body></html>`

const openwebuiHomePage = `<!DOCTYPE html>
<html><head><title>Open WebUI</title></head>
<body>
<button type="button">New Chat</button>
%s
</body></html>`

const openwebuiChangelogModal = `<div id="changelog" style="position:fixed;inset:0;background:rgba(0,0,0,.5);z-index:50">
<p>What's New in Open WebUI</p>
<button type="button" aria-label="Close" onclick="document.getElementById('changelog').remove()">x</button>
<button type="button" onclick="document.getElementById('changelog').remove()">Okay, Let's Go!</button>
</div>`

const openwebuiAdminPage = `<!DOCTYPE html>
<html><head><title>Open WebUI</title></head>
<body>
<nav><a href="/admin">Users</a> <a href="/admin/evaluations">Evaluations</a> <a href="/admin/settings">Settings</a></nav>
</body></html>`
