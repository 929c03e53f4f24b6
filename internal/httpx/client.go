// Package httpx builds the HTTP clients used by provider backends, with
// proxy support and a transport tuned for large file transfers.
package httpx

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"os"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"
	"golang.org/x/net/http2"

	"github.com/halyard-dev/halyard/internal/config"
	"github.com/halyard-dev/halyard/internal/constants"
)

// NewClient configures an HTTP client with the given proxy settings.
func NewClient(proxy config.ProxySettings) (*nethttp.Client, error) {
	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}

	switch strings.ToLower(proxy.Mode) {
	case "no-proxy", "":
		transport.Proxy = nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "ntlm":
		if proxy.Host == "" {
			// Incomplete saved config; run direct so the user can fix it.
			transport.Proxy = nil
			return &nethttp.Client{Transport: transport}, nil
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(proxy), proxy.NoProxy)
		return &nethttp.Client{
			Transport: ntlmssp.Negotiator{
				RoundTripper: transport,
			},
		}, nil

	case "basic":
		if proxy.Host == "" {
			transport.Proxy = nil
			return &nethttp.Client{Transport: transport}, nil
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(proxy), proxy.NoProxy)

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", proxy.Mode)
	}

	return &nethttp.Client{Transport: transport}, nil
}

// NewTransferClient creates an HTTP client tuned for large file transfers.
//
//   - Large connection pool for concurrent range requests
//   - Disabled compression (no benefit for already-compressed payloads)
//   - HTTP/2 with a runtime toggle (DISABLE_HTTP2 env var), forced off when
//     a proxy is active because proxies routinely break HTTP/2 multiplexing
//     mid-transfer
//   - No overall client timeout; each operation carries its own context
//     deadline
func NewTransferClient(proxy config.ProxySettings) (*nethttp.Client, error) {
	client, err := NewClient(proxy)
	if err != nil {
		return nil, err
	}

	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM mode wraps the transport in a negotiator; the pooling
		// tweaks below don't apply through the wrapper.
		client.Timeout = 0
		return client, nil
	}

	tr.MaxIdleConns = 512
	tr.MaxIdleConnsPerHost = 100
	tr.MaxConnsPerHost = 100
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || proxyActive(proxy) {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	client.Transport = tr
	client.Timeout = 0
	return client, nil
}

// proxyActive reports whether requests will actually traverse a proxy.
func proxyActive(proxy config.ProxySettings) bool {
	switch strings.ToLower(proxy.Mode) {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return proxy.Host != ""
	}
}

// NeedsProxyPassword reports whether the proxy settings require a password
// that has not been provided, so the CLI knows to prompt before dialing.
func NeedsProxyPassword(proxy config.ProxySettings) bool {
	mode := strings.ToLower(proxy.Mode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return proxy.User != "" && proxy.Password == ""
}

func buildProxyURL(proxy config.ProxySettings) *url.URL {
	port := proxy.Port
	if port == 0 {
		port = 8080
	}
	u := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", proxy.Host, port),
	}
	// Embed credentials only when both are present; an empty password in
	// the URL trips up some proxies.
	if proxy.User != "" && proxy.Password != "" {
		u.User = url.UserPassword(proxy.User, proxy.Password)
	}
	return u
}

// proxyFuncWithBypass returns a proxy function honoring the NoProxy bypass
// list. With an empty list it is identical to nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
}
