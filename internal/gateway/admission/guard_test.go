package admission

import (
	"net/http"
	"testing"
	"time"
)

func TestSlidingWindowLimiterAllowsUpToBudget(t *testing.T) {
	l := newSlidingWindowLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed within budget", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("4th request should be rate limited")
	}
}

func TestSlidingWindowLimiterPerSource(t *testing.T) {
	l := newSlidingWindowLimiter(1, time.Hour)

	if !l.Allow("source-a") {
		t.Fatal("first request from source-a should be allowed")
	}
	if !l.Allow("source-b") {
		t.Fatal("source-b has an independent budget from source-a")
	}
	if l.Allow("source-a") {
		t.Error("second request from source-a should be rate limited")
	}
}

func TestSlidingWindowLimiterEvictsStaleHits(t *testing.T) {
	l := newSlidingWindowLimiter(1, time.Millisecond)

	if !l.Allow("1.2.3.4") {
		t.Fatal("first request should be allowed")
	}
	time.Sleep(5 * time.Millisecond)
	if !l.Allow("1.2.3.4") {
		t.Error("expected the window to have rolled over, allowing a new request")
	}
}

func TestSourceAddrIgnoresForwardedForByDefault(t *testing.T) {
	g := New(nil, 3, time.Hour, nil)

	r := &http.Request{RemoteAddr: "203.0.113.5:1234", Header: http.Header{}}
	r.Header.Set("X-Forwarded-For", "198.51.100.9")

	if got := g.SourceAddr(r); got != "203.0.113.5:1234" {
		t.Errorf("expected RemoteAddr with no trusted proxies configured, got %q", got)
	}
}

func TestSourceAddrIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	g := New(nil, 3, time.Hour, []string{"10.0.0.1"})

	r := &http.Request{RemoteAddr: "203.0.113.5:1234", Header: http.Header{}}
	r.Header.Set("X-Forwarded-For", "198.51.100.9")

	if got := g.SourceAddr(r); got != "203.0.113.5:1234" {
		t.Errorf("expected RemoteAddr from an untrusted peer, got %q", got)
	}
}

func TestSourceAddrHonorsForwardedForFromTrustedPeer(t *testing.T) {
	g := New(nil, 3, time.Hour, []string{"10.0.0.1"})

	r := &http.Request{RemoteAddr: "10.0.0.1:5678", Header: http.Header{}}
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")

	if got := g.SourceAddr(r); got != "198.51.100.9" {
		t.Errorf("expected the left-most forwarded entry from a trusted peer, got %q", got)
	}
}

func TestSourceAddrFallsBackWhenForwardedForMissing(t *testing.T) {
	g := New(nil, 3, time.Hour, []string{"10.0.0.1"})

	r := &http.Request{RemoteAddr: "10.0.0.1:5678", Header: http.Header{}}

	if got := g.SourceAddr(r); got != "10.0.0.1:5678" {
		t.Errorf("expected RemoteAddr when header is absent, got %q", got)
	}
}
