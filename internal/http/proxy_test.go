package http

import (
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	ntlmssp "github.com/Azure/go-ntlmssp"

	"github.com/eightd/eightd/internal/config"
)

func TestProxyFuncWithBypass(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")

	tests := []struct {
		name       string
		noProxy    string
		target     string
		wantBypass bool
	}{
		{"empty list always proxies", "", "https://audio.example.com/generate_audio", false},
		{"wildcard matches subdomain", "*.example.com", "https://audio.example.com/generate_audio", true},
		{"bare domain matches root", "example.com", "https://example.com/generate_audio", true},
		{"bare domain matches subdomain", "example.com", "https://audio.example.com/generate_audio", true},
		{"cidr matches ip", "10.0.0.0/8", "http://10.1.2.3:8080/generate_audio", true},
		{"non-matching host proxies", "internal.corp", "https://audio.example.com/generate_audio", false},
		{"second entry of list matches", "internal.corp, .example.com", "https://audio.example.com/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxyFunc := proxyFuncWithBypass(proxyURL, tt.noProxy)
			req, _ := nethttp.NewRequest("POST", tt.target, nil)
			got, err := proxyFunc(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantBypass && got != nil {
				t.Errorf("expected direct connection for %s, got proxy %v", tt.target, got)
			}
			if !tt.wantBypass {
				if got == nil {
					t.Fatalf("expected proxy for %s, got direct", tt.target)
				}
				if got.Host != "proxy.corp:8080" {
					t.Errorf("expected proxy host proxy.corp:8080, got %s", got.Host)
				}
			}
		})
	}
}

func TestBuildProxyURL(t *testing.T) {
	cfg := config.NewConfig()
	cfg.ProxyHost = "proxy.corp"

	u := buildProxyURL(cfg)
	if u.Host != "proxy.corp:8080" {
		t.Errorf("expected default port 8080, got %s", u.Host)
	}
	if u.User != nil {
		t.Errorf("expected no credentials without user and password, got %v", u.User)
	}

	cfg.ProxyPort = 3128
	cfg.ProxyUser = "alice"
	u = buildProxyURL(cfg)
	if u.User != nil {
		t.Error("credentials must not be embedded when the password is missing")
	}

	cfg.ProxyPassword = "secret"
	u = buildProxyURL(cfg)
	if u.Host != "proxy.corp:3128" {
		t.Errorf("expected proxy.corp:3128, got %s", u.Host)
	}
	if pw, ok := u.User.Password(); !ok || pw != "secret" || u.User.Username() != "alice" {
		t.Errorf("unexpected credentials %v", u.User)
	}
}

func TestConfigureHTTPClient_Modes(t *testing.T) {
	t.Run("no-proxy", func(t *testing.T) {
		client, err := ConfigureHTTPClient(config.NewConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tr, ok := client.Transport.(*nethttp.Transport)
		if !ok {
			t.Fatalf("expected *http.Transport, got %T", client.Transport)
		}
		if tr.Proxy != nil {
			t.Error("expected no proxy function")
		}
		if client.Timeout != 0 {
			t.Errorf("expected no client timeout, got %v", client.Timeout)
		}
	})

	t.Run("ntlm wraps transport", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.ProxyMode = "ntlm"
		cfg.ProxyHost = "proxy.corp"
		client, err := ConfigureHTTPClient(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := client.Transport.(ntlmssp.Negotiator); !ok {
			t.Errorf("expected ntlmssp.Negotiator, got %T", client.Transport)
		}
	})

	t.Run("basic without host falls back to direct", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.ProxyMode = "basic"
		client, err := ConfigureHTTPClient(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tr := client.Transport.(*nethttp.Transport); tr.Proxy != nil {
			t.Error("expected direct transport")
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.ProxyMode = "socks"
		if _, err := ConfigureHTTPClient(cfg); err == nil {
			t.Error("expected error for unsupported mode")
		}
	})
}

func TestWarmupProxy(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/" {
			t.Errorf("warmup hit %s, want /", r.URL.Path)
		}
		w.Write([]byte(`{"Hello":"World"}`))
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.ServiceURL = srv.URL + "/"
	if err := warmupProxy(srv.Client(), cfg); err != nil {
		t.Fatalf("warmup failed: %v", err)
	}

	failing := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusBadGateway)
	}))
	defer failing.Close()
	cfg.ServiceURL = failing.URL
	if err := warmupProxy(failing.Client(), cfg); err == nil {
		t.Error("expected error on 502 warmup response")
	}
}

func TestNeedsProxyPassword(t *testing.T) {
	tests := []struct {
		mode, user, password string
		want                 bool
	}{
		{"no-proxy", "alice", "", false},
		{"system", "alice", "", false},
		{"basic", "alice", "", true},
		{"NTLM", "alice", "", true},
		{"basic", "alice", "secret", false},
		{"basic", "", "", false},
	}
	for _, tt := range tests {
		cfg := config.NewConfig()
		cfg.ProxyMode = tt.mode
		cfg.ProxyUser = tt.user
		cfg.ProxyPassword = tt.password
		if got := NeedsProxyPassword(cfg); got != tt.want {
			t.Errorf("NeedsProxyPassword(%s, %q, %q) = %v, want %v", tt.mode, tt.user, tt.password, got, tt.want)
		}
	}
}

func TestCreateOptimizedClient_DisableHTTP2(t *testing.T) {
	t.Setenv("DISABLE_HTTP2", "true")
	client, err := CreateOptimizedClient(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := client.Transport.(*nethttp.Transport)
	if tr.ForceAttemptHTTP2 {
		t.Error("expected HTTP/2 disabled")
	}
	if tr.TLSNextProto == nil || len(tr.TLSNextProto) != 0 {
		t.Error("expected empty TLSNextProto map")
	}
	if !tr.DisableCompression {
		t.Error("expected compression disabled")
	}
}
