// Package resolve turns identifier-style locators into concrete fetch
// targets: a metadata-only redirect probe with bot-protection walk-back,
// plus chooser-page link extraction.
package resolve

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxRedirects = 15

// botProtectionHosts are domains that trap redirect chains behind bot
// challenges. A final URL on one of these is walked back to the last clean
// hop in the chain.
var botProtectionHosts = []string{
	"perfdrive.com",
	"challenges.cloudflare.com",
	"captcha-delivery.com",
	"datadome.co",
}

// Resolution is the outcome of one redirect probe.
type Resolution struct {
	FinalURL   string
	Chain      []string
	StatusCode int
}

// Probe resolves DOI-style locators by following redirects without fetching
// bodies.
type Probe struct {
	transport http.RoundTripper
	timeout   time.Duration
	userAgent string
	botHosts  []string
	logger    *zap.Logger
}

// Config controls probe behavior.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	// BotHosts overrides the default bot-protection domain list. Tests only.
	BotHosts []string
}

// NewProbe builds a Probe.
func NewProbe(cfg Config, logger *zap.Logger) *Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	hosts := cfg.BotHosts
	if hosts == nil {
		hosts = botProtectionHosts
	}
	return &Probe{
		transport: http.DefaultTransport,
		timeout:   timeout,
		userAgent: cfg.UserAgent,
		botHosts:  hosts,
		logger:    logger,
	}
}

// ResolveDOI probes the doi.org resolver for a normalized DOI.
func (p *Probe) ResolveDOI(ctx context.Context, doi string) (Resolution, error) {
	return p.Resolve(ctx, "https://doi.org/"+doi)
}

// Resolve issues a HEAD request following redirects, records every
// intermediate URL, and walks the chain back out of bot-protection traps.
// A probe failure is non-fatal to the harvest; callers fall back to the
// original locator.
func (p *Probe) Resolve(ctx context.Context, target string) (Resolution, error) {
	chain := []string{target}
	client := &http.Client{
		Transport: p.transport,
		Timeout:   p.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			chain = append(chain, req.URL.String())
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return Resolution{}, fmt.Errorf("build probe request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Resolution{}, fmt.Errorf("redirect probe %s: %w", target, err)
	}
	defer resp.Body.Close() //nolint:errcheck // HEAD bodies are empty

	final := resp.Request.URL.String()
	walked := p.walkBack(chain, final)
	if walked != final {
		p.logger.Info("walked back from bot protection",
			zap.String("trapped", final),
			zap.String("selected", walked),
		)
	}
	return Resolution{
		FinalURL:   walked,
		Chain:      chain,
		StatusCode: resp.StatusCode,
	}, nil
}

// walkBack returns the last chain URL not on a bot-protection domain when
// the final URL is trapped; if every hop is trapped the final URL stands.
func (p *Probe) walkBack(chain []string, final string) string {
	if !p.isBotProtected(final) {
		return final
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if !p.isBotProtected(chain[i]) {
			return chain[i]
		}
	}
	return final
}

func (p *Probe) isBotProtected(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, bad := range p.botHosts {
		if host == bad || strings.HasSuffix(host, "."+bad) {
			return true
		}
	}
	return false
}

// Chooser pages offer multiple links to the same work. The first offered
// link is followed exactly once; a single hop avoids redirect loops through
// nested choosers.
var chooserLinkPattern = regexp.MustCompile(`(?s)<div class="resource-line">.*?<a\s+href="(.*?)"`)

// ChooserLink reports the first offered link when the body is a chooser
// marker page.
func ChooserLink(body []byte) (string, bool) {
	text := string(body)
	if !strings.Contains(text, "<title>Chooser</title>") {
		return "", false
	}
	m := chooserLinkPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
