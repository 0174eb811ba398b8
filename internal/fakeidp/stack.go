package fakeidp

import (
	"net/http"
	"net/http/httptest"
)

// StackConfig configures a Stack.
type StackConfig struct {
	Email    string
	Password string
	// Consent adds an explicit consent stage after the password.
	Consent bool
	// NonAdmin signs the user into OpenWebUI without admin rights.
	NonAdmin bool
	// Applications and Providers override the admin page listings.
	Applications []string
	Providers    []string
}

// Stack is a running provider plus one server per application. Each server
// listens on its own port so host-based URL waits can tell them apart.
type Stack struct {
	Provider *Provider

	IdP       *httptest.Server
	Windmill  *httptest.Server
	LiteLLM   *httptest.Server
	OpenWebUI *httptest.Server
}

// StartStack starts every server. Call Close when done.
func StartStack(cfg StackConfig) *Stack {
	var opts []ProviderOption
	if cfg.Consent {
		opts = append(opts, WithConsent())
	}
	if cfg.Applications != nil || cfg.Providers != nil {
		opts = append(opts, WithAdminObjects(cfg.Applications, cfg.Providers))
	}
	provider := NewProvider(cfg.Email, cfg.Password, opts...)

	idpMux := http.NewServeMux()
	provider.RegisterRoutes(idpMux)
	idp := httptest.NewServer(idpMux)

	start := func(kind AppKind) *httptest.Server {
		mux := http.NewServeMux()
		NewApp(kind, provider, idp.URL, !cfg.NonAdmin).RegisterRoutes(mux)
		return httptest.NewServer(mux)
	}

	return &Stack{
		Provider:  provider,
		IdP:       idp,
		Windmill:  start(Windmill),
		LiteLLM:   start(LiteLLM),
		OpenWebUI: start(OpenWebUI),
	}
}

// Close stops every server.
func (s *Stack) Close() {
	for _, srv := range []*httptest.Server{s.Windmill, s.LiteLLM, s.OpenWebUI, s.IdP} {
		if srv != nil {
			srv.Close()
		}
	}
}
