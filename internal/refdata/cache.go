// Package refdata acquires and parses the reference tables the pipeline
// needs: the ZIP-county crosswalk, county adjacency, RUCC codes, and the
// prescriber claims extract. Downloads land in a read-through file cache
// keyed by logical name.
package refdata

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rxintel-group/exposure-cli/internal/fetcher"
)

// Entry names one cacheable reference file.
type Entry struct {
	Name   string // cache file name under the reference dir
	URL    string // primary source
	Mirror string // optional ftp:// fallback
}

// Cache is a read-through download cache. A present cache file
// short-circuits the fetch unless Force is set.
type Cache struct {
	Dir   string
	HTTP  fetcher.Fetcher
	FTP   fetcher.Fetcher
	Force bool

	log *zap.Logger
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string, httpF, ftpF fetcher.Fetcher, force bool) *Cache {
	return &Cache{
		Dir:   dir,
		HTTP:  httpF,
		FTP:   ftpF,
		Force: force,
		log:   zap.L().With(zap.String("component", "refdata")),
	}
}

// Path returns the local path for an entry, downloading it on a miss. With
// Force set the fetch always happens and overwrites the cache file.
func (c *Cache) Path(ctx context.Context, e Entry) (string, error) {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "refdata: create cache dir %s", c.Dir)
	}
	path := filepath.Join(c.Dir, e.Name)

	if !c.Force {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			c.log.Debug("cache hit", zap.String("name", e.Name), zap.String("path", path))
			return path, nil
		}
	}

	c.log.Info("fetching reference file",
		zap.String("name", e.Name),
		zap.String("url", e.URL),
		zap.Bool("force", c.Force),
	)

	n, err := c.fetch(ctx, e, path)
	if err != nil {
		return "", err
	}
	c.log.Info("reference file cached",
		zap.String("name", e.Name),
		zap.Int64("bytes", n),
	)
	return path, nil
}

func (c *Cache) fetch(ctx context.Context, e Entry, path string) (int64, error) {
	f, err := c.fetcherFor(e.URL)
	if err != nil {
		return 0, err
	}

	n, err := f.DownloadToFile(ctx, e.URL, path)
	if err == nil {
		return n, nil
	}

	if e.Mirror == "" {
		return 0, eris.Wrapf(err, "refdata: fetch %s", e.Name)
	}

	c.log.Warn("primary fetch failed, trying mirror",
		zap.String("name", e.Name),
		zap.String("mirror", e.Mirror),
		zap.Error(err),
	)
	mf, merr := c.fetcherFor(e.Mirror)
	if merr != nil {
		return 0, merr
	}
	n, merr = mf.DownloadToFile(ctx, e.Mirror, path)
	if merr != nil {
		return 0, eris.Wrapf(merr, "refdata: fetch %s from mirror", e.Name)
	}
	return n, nil
}

func (c *Cache) fetcherFor(rawURL string) (fetcher.Fetcher, error) {
	switch {
	case strings.HasPrefix(rawURL, "ftp://"):
		if c.FTP == nil {
			return nil, eris.Errorf("refdata: no ftp fetcher configured for %s", rawURL)
		}
		return c.FTP, nil
	default:
		if c.HTTP == nil {
			return nil, eris.Errorf("refdata: no http fetcher configured for %s", rawURL)
		}
		return c.HTTP, nil
	}
}
