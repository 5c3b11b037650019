package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"taxicab/internal/doi"
)

// Querier is the subset of a pgx pool the crosswalk loader needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Crosswalk holds the legacy lookup indices: repository URL to legacy
// landing-page key, and DOI+version to the publisher PDF URL. Both are
// loaded once per process and read-only afterwards; Load guards against
// concurrent re-initialization.
type Crosswalk struct {
	once    sync.Once
	loadErr error

	landingKeys map[string]string
	pdfURLs     map[string]string
}

// NewCrosswalk returns an empty, unloaded Crosswalk. Lookups against an
// unloaded crosswalk simply miss.
func NewCrosswalk() *Crosswalk {
	return &Crosswalk{
		landingKeys: map[string]string{},
		pdfURLs:     map[string]string{},
	}
}

// Load populates both indices from the database. Only the first call does
// work; later calls return the first call's result.
func (c *Crosswalk) Load(ctx context.Context, db Querier) error {
	c.once.Do(func() {
		c.loadErr = c.load(ctx, db)
	})
	return c.loadErr
}

func (c *Crosswalk) load(ctx context.Context, db Querier) error {
	landing, err := loadPairs(ctx, db,
		`SELECT url, landing_page_key FROM legacy_landing_page_keys`)
	if err != nil {
		return fmt.Errorf("load landing page keys: %w", err)
	}

	rows, err := db.Query(ctx, `SELECT doi, version, url FROM legacy_pdf_urls`)
	if err != nil {
		return fmt.Errorf("load pdf urls: %w", err)
	}
	defer rows.Close()

	pdfURLs := make(map[string]string)
	for rows.Next() {
		var d, version, url string
		if err := rows.Scan(&d, &version, &url); err != nil {
			return fmt.Errorf("scan pdf url row: %w", err)
		}
		pdfURLs[pdfLookupKey(d, doi.ParseVersion(version))] = url
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate pdf urls: %w", err)
	}

	c.landingKeys = landing
	c.pdfURLs = pdfURLs
	return nil
}

func loadPairs(ctx context.Context, db Querier, query string) (map[string]string, error) {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func pdfLookupKey(d string, v doi.Version) string {
	return d + "|" + string(v)
}

// LandingPageKey returns the legacy repository-tier key for a URL.
func (c *Crosswalk) LandingPageKey(url string) (string, bool) {
	k, ok := c.landingKeys[url]
	return k, ok
}

// PDFURL returns the direct PDF URL recorded for a DOI and version.
func (c *Crosswalk) PDFURL(d string, v doi.Version) (string, bool) {
	u, ok := c.pdfURLs[pdfLookupKey(d, v)]
	return u, ok
}
