package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/eightd/eightd/internal/config"
	"github.com/eightd/eightd/internal/constants"
)

// ConfigureHTTPClient returns a client that reaches the service through the
// configured proxy mode. It has no overall timeout; each submission bounds
// itself with its context.
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}

	mode := strings.ToLower(cfg.ProxyMode)
	var rt nethttp.RoundTripper = transport
	switch mode {
	case "no-proxy", "":
		transport.Proxy = nil
	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment
	case "basic", "ntlm":
		// An incomplete saved proxy goes direct
		if cfg.ProxyHost == "" {
			return &nethttp.Client{Transport: transport}, nil
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)
		if mode == "ntlm" {
			rt = ntlmssp.Negotiator{RoundTripper: transport}
		}
	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	client := &nethttp.Client{Transport: rt}
	if shouldWarmup(cfg, mode) {
		if err := warmupProxy(client, cfg); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
	}
	return client, nil
}

// shouldWarmup reports whether the first request should be spent on the proxy
// handshake. NTLM needs credentials for that to be useful.
func shouldWarmup(cfg *config.Config, mode string) bool {
	switch {
	case !cfg.ProxyWarmup, mode == "no-proxy", mode == "":
		return false
	case mode == "ntlm":
		return cfg.ProxyUser != "" && cfg.ProxyPassword != ""
	default:
		return true
	}
}

// buildProxyURL returns http://host:port for the configured proxy, with
// credentials only when both user and password are set.
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", cfg.ProxyHost, port),
	}

	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// warmupProxy sends one GET to the service root through the proxy.
func warmupProxy(client *nethttp.Client, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ProxyWarmupTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, strings.TrimSuffix(cfg.ServiceURL, "/")+"/", nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("service root unreachable through proxy: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("service root answered %d through proxy", resp.StatusCode)
	}
	return nil
}

// proxyFuncWithBypass routes through proxyURL except for hosts in noProxy
// (comma-separated, NO_PROXY syntax).
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	bypass := (&httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}).ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		return bypass(req.URL)
	}
}

// NeedsProxyPassword reports whether an authenticating proxy has a user but
// no password yet. The password is never stored, so the CLI asks for it.
func NeedsProxyPassword(cfg *config.Config) bool {
	switch strings.ToLower(cfg.ProxyMode) {
	case "basic", "ntlm":
		return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
	}
	return false
}
