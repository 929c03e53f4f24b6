package httpx

import (
	nethttp "net/http"
	"net/url"
	"testing"

	"github.com/halyard-dev/halyard/internal/config"
)

func TestNewClientNoProxy(t *testing.T) {
	client, err := NewClient(config.ProxySettings{Mode: "no-proxy"})
	if err != nil {
		t.Fatal(err)
	}
	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		t.Fatal("expected plain *http.Transport")
	}
	if tr.Proxy != nil {
		t.Error("no-proxy mode must not set a proxy func")
	}
}

func TestNewClientUnsupportedMode(t *testing.T) {
	if _, err := NewClient(config.ProxySettings{Mode: "socks5"}); err == nil {
		t.Error("expected error for unsupported mode")
	}
}

func TestNewClientBasicProxy(t *testing.T) {
	client, err := NewClient(config.ProxySettings{
		Mode: "basic",
		Host: "proxy.local",
		Port: 3128,
		User: "u", Password: "p",
	})
	if err != nil {
		t.Fatal(err)
	}
	tr := client.Transport.(*nethttp.Transport)
	req, _ := nethttp.NewRequest("GET", "https://example.com/", nil)
	proxyURL, err := tr.Proxy(req)
	if err != nil {
		t.Fatal(err)
	}
	if proxyURL.Host != "proxy.local:3128" {
		t.Errorf("proxy host = %q", proxyURL.Host)
	}
	if proxyURL.User.String() != url.UserPassword("u", "p").String() {
		t.Error("credentials not embedded")
	}
}

func TestNewClientBasicMissingHostFallsBackDirect(t *testing.T) {
	client, err := NewClient(config.ProxySettings{Mode: "basic"})
	if err != nil {
		t.Fatal(err)
	}
	tr := client.Transport.(*nethttp.Transport)
	if tr.Proxy != nil {
		t.Error("missing host must fall back to direct connections")
	}
}

func TestProxyBypassList(t *testing.T) {
	client, err := NewClient(config.ProxySettings{
		Mode:    "basic",
		Host:    "proxy.local",
		Port:    3128,
		NoProxy: "internal.example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	tr := client.Transport.(*nethttp.Transport)

	bypassed, _ := nethttp.NewRequest("GET", "https://internal.example.com/x", nil)
	if u, _ := tr.Proxy(bypassed); u != nil {
		t.Errorf("bypass host was proxied through %v", u)
	}

	proxied, _ := nethttp.NewRequest("GET", "https://example.com/x", nil)
	if u, _ := tr.Proxy(proxied); u == nil {
		t.Error("non-bypass host should be proxied")
	}
}

func TestNewClientNTLMWrapsTransport(t *testing.T) {
	client, err := NewClient(config.ProxySettings{Mode: "ntlm", Host: "proxy.local"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := client.Transport.(*nethttp.Transport); ok {
		t.Error("NTLM mode should wrap the transport in a negotiator")
	}
}

func TestNewTransferClientPoolSizing(t *testing.T) {
	client, err := NewTransferClient(config.ProxySettings{Mode: "no-proxy"})
	if err != nil {
		t.Fatal(err)
	}
	tr := client.Transport.(*nethttp.Transport)
	if tr.MaxIdleConns != 512 {
		t.Errorf("MaxIdleConns = %d, want 512", tr.MaxIdleConns)
	}
	if !tr.DisableCompression {
		t.Error("compression should be disabled for transfers")
	}
	if client.Timeout != 0 {
		t.Error("transfer client must not carry an overall timeout")
	}
}

func TestNeedsProxyPassword(t *testing.T) {
	cases := []struct {
		proxy config.ProxySettings
		want  bool
	}{
		{config.ProxySettings{Mode: "basic", User: "u"}, true},
		{config.ProxySettings{Mode: "ntlm", User: "u"}, true},
		{config.ProxySettings{Mode: "basic", User: "u", Password: "p"}, false},
		{config.ProxySettings{Mode: "system", User: "u"}, false},
		{config.ProxySettings{Mode: "basic"}, false},
	}
	for _, c := range cases {
		if got := NeedsProxyPassword(c.proxy); got != c.want {
			t.Errorf("NeedsProxyPassword(%+v) = %v, want %v", c.proxy, got, c.want)
		}
	}
}
