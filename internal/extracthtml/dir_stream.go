package extracthtml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lingyjava/page-parser/internal/siteconfig"
)

// StreamFromDir extracts every file in dir as an independent page and
// streams one JSON array of results to w.
//
// Behavior:
//   - files are processed in filename order
//   - unreadable or unparseable files are skipped and logged
//   - each result's meta carries url=file://<abs path>, the given domain and
//     the page's <title>
func StreamFromDir(w io.Writer, dir, domain string, site *siteconfig.Site, now func() time.Time, opts ...Option) error {
	o := buildOptions(opts)
	if now == nil {
		now = time.Now
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if _, err := io.WriteString(w, "["); err != nil {
		return fmt.Errorf("write [: %w", err)
	}

	first := true
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		full, err := filepath.Abs(filepath.Join(dir, e.Name()))
		if err != nil {
			full = filepath.Join(dir, e.Name())
		}
		doc, err := readDocument(full)
		if err != nil {
			o.logger.Warn("skip file", zap.String("file", full), zap.Error(err))
			continue
		}

		res := Extract(doc, site, opts...)
		res.Meta = NewMeta("file://"+filepath.ToSlash(full), domain, doc.Title(), now())

		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return fmt.Errorf("write comma: %w", err)
			}
		}
		first = false
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode %s: %w", e.Name(), err)
		}
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return fmt.Errorf("write ]: %w", err)
	}
	return nil
}

func readDocument(path string) (*HTMLDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewDocument(f)
}
