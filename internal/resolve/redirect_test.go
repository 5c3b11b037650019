package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveRecordsChain(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/final", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	p := NewProbe(Config{}, zap.NewNop())
	res, err := p.Resolve(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/final", res.FinalURL)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/final"}, res.Chain)
}

func TestResolveProbeFailure(t *testing.T) {
	t.Parallel()

	p := NewProbe(Config{}, zap.NewNop())
	// Port 1 is never listening.
	_, err := p.Resolve(context.Background(), "http://127.0.0.1:1/x")
	require.Error(t, err)
}

func TestWalkBack(t *testing.T) {
	t.Parallel()

	p := NewProbe(Config{}, zap.NewNop())
	chain := []string{
		"https://doi.org/10.1/x",
		"https://publisher.example.com/article/x",
		"https://hcvalidate.perfdrive.com/captcha?ssa=abc",
	}

	// Final URL trapped; last clean hop wins.
	got := p.walkBack(chain, "https://hcvalidate.perfdrive.com/captcha?ssa=abc")
	require.Equal(t, "https://publisher.example.com/article/x", got)

	// Clean final URL passes through.
	got = p.walkBack(chain, "https://publisher.example.com/article/x")
	require.Equal(t, "https://publisher.example.com/article/x", got)

	// Entirely trapped chain keeps the final URL.
	trapped := []string{"https://hcvalidate.perfdrive.com/a", "https://hcvalidate.perfdrive.com/b"}
	got = p.walkBack(trapped, "https://hcvalidate.perfdrive.com/b")
	require.Equal(t, "https://hcvalidate.perfdrive.com/b", got)
}

func TestIsBotProtected(t *testing.T) {
	t.Parallel()

	p := NewProbe(Config{}, zap.NewNop())
	tests := []struct {
		url  string
		want bool
	}{
		{url: "https://hcvalidate.perfdrive.com/x", want: true},
		{url: "https://perfdrive.com/x", want: true},
		{url: "https://challenges.cloudflare.com/turnstile", want: true},
		{url: "https://example.org/perfdrive.com", want: false},
		{url: "https://notperfdrive.com/x", want: false},
		{url: "://bad", want: false},
	}
	for _, tt := range tests {
		if got := p.isBotProtected(tt.url); got != tt.want {
			t.Fatalf("isBotProtected(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestChooserLink(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head><title>Chooser</title></head><body>
<div class="resource-line">
  <a href="https://pub-a.example.com/work/1">Publisher A</a>
</div>
<div class="resource-line">
  <a href="https://pub-b.example.com/work/1">Publisher B</a>
</div>
</body></html>`)

	link, ok := ChooserLink(body)
	require.True(t, ok)
	require.Equal(t, "https://pub-a.example.com/work/1", link)
}

func TestChooserLinkNonChooser(t *testing.T) {
	t.Parallel()

	if _, ok := ChooserLink([]byte(`<html><title>Article</title><a href="x">x</a></html>`)); ok {
		t.Fatal("non-chooser page yielded a link")
	}
	// Chooser title without any resource line.
	if _, ok := ChooserLink([]byte(`<html><title>Chooser</title></html>`)); ok {
		t.Fatal("chooser without links yielded a link")
	}
}
