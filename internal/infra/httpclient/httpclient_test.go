package httpclient

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestReadAllWithLimit(t *testing.T) {
	data, err := ReadAllWithLimit(strings.NewReader("hello"), 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("expected full read, got %q err=%v", data, err)
	}
	_, err = ReadAllWithLimit(strings.NewReader("hello!"), 5)
	if !IsResponseTooLarge(err) {
		t.Fatalf("expected ResponseTooLargeError, got %v", err)
	}
}

func TestTransportBypassesProxyForLoopback(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://proxy.internal:3128")
	transport := Transport(nil)
	req := &http.Request{URL: &url.URL{Scheme: "http", Host: "127.0.0.1:8000"}}
	proxyURL, err := transport.Proxy(req)
	if err != nil || proxyURL != nil {
		t.Fatalf("expected direct connection for loopback, got %v err=%v", proxyURL, err)
	}
}

func TestNewAppliesDefaultTimeout(t *testing.T) {
	if got := New(0, nil).Timeout; got != DefaultTimeout {
		t.Fatalf("expected default timeout, got %v", got)
	}
	if got := New(time.Second, nil).Timeout; got != time.Second {
		t.Fatalf("expected 1s timeout, got %v", got)
	}
}
