package notify

import (
	"embed"
	"path"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/teranos/reportwatch/errors"
)

// DefaultLocale is used when a requested locale has no catalog
const DefaultLocale = "en"

//go:embed catalogs/*.toml
var catalogFS embed.FS

// Message is one notification's copy
type Message struct {
	Title        string `toml:"title"`
	Body         string `toml:"body"`
	BodyUntitled string `toml:"body_untitled"`
	Action       string `toml:"action"`
}

// Catalog holds the copy for one locale
type Catalog struct {
	ReportReady      Message `toml:"report_ready"`
	ComparisonReady  Message `toml:"comparison_ready"`
	GenerationFailed Message `toml:"generation_failed"`
}

var catalogs = mustLoadCatalogs()

func mustLoadCatalogs() map[string]Catalog {
	out, err := loadCatalogs()
	if err != nil {
		panic(err)
	}
	return out
}

func loadCatalogs() (map[string]Catalog, error) {
	entries, err := catalogFS.ReadDir("catalogs")
	if err != nil {
		return nil, errors.Wrap(err, "read notification catalogs")
	}
	out := make(map[string]Catalog, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".toml") {
			continue
		}
		data, err := catalogFS.ReadFile(path.Join("catalogs", name))
		if err != nil {
			return nil, errors.Wrapf(err, "read catalog %s", name)
		}
		var c Catalog
		if _, err := toml.Decode(string(data), &c); err != nil {
			return nil, errors.Wrapf(err, "decode catalog %s", name)
		}
		out[strings.TrimSuffix(name, ".toml")] = c
	}
	if _, ok := out[DefaultLocale]; !ok {
		return nil, errors.Newf("no %s notification catalog", DefaultLocale)
	}
	return out, nil
}

// Locales lists the locales with a catalog
func Locales() []string {
	out := make([]string, 0, len(catalogs))
	for k := range catalogs {
		out = append(out, k)
	}
	return out
}

// CatalogFor returns the catalog for locale ("zh-CN" and "zh_TW" resolve to
// "zh"), falling back to English.
func CatalogFor(locale string) Catalog {
	l := strings.ToLower(strings.TrimSpace(locale))
	if c, ok := catalogs[l]; ok {
		return c
	}
	if i := strings.IndexAny(l, "-_"); i > 0 {
		if c, ok := catalogs[l[:i]]; ok {
			return c
		}
	}
	return catalogs[DefaultLocale]
}
