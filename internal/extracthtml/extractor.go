package extracthtml

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lingyjava/page-parser/internal/metrics"
	"github.com/lingyjava/page-parser/internal/siteconfig"
)

// Option configures Extract.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used to report per-field failures.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Extract applies every selector of site to doc and returns one field per
// selector, in configuration order.
//
// Extract never fails as a whole. A field whose selector matches nothing is
// null. A field whose processing fails (malformed selector, DOM error, panic)
// is also null; the failure is logged and the remaining fields are still
// extracted. doc is never modified.
//
// The returned Result has no Meta; the caller owns page metadata.
func Extract(doc Document, site *siteconfig.Site, opts ...Option) *Result {
	o := buildOptions(opts)

	res := &Result{}
	if site == nil {
		return res
	}
	res.Fields = make([]Field, 0, len(site.Selectors))

	for _, e := range site.Selectors {
		v, err := extractField(doc, e.Selector)
		status := "ok"
		switch {
		case err != nil:
			status = "error"
			o.logger.Warn("extract field failed",
				zap.String("field", e.Field),
				zap.String("selector", e.Selector),
				zap.Error(err),
			)
			v = Null()
		case v.IsNull():
			status = "empty"
		}
		metrics.IncCounter(metrics.FieldsTotal, 1, metrics.Labels{"status": status})

		res.Fields = append(res.Fields, Field{Name: e.Field, Value: v})
	}
	return res
}

// extractField resolves one selector string against doc.
func extractField(doc Document, raw string) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = Null(), fmt.Errorf("panic: %v", r)
		}
	}()

	spec := ParseSpec(raw)
	els, err := doc.QueryAll(spec.Path)
	if err != nil {
		return Null(), err
	}
	if len(els) == 0 {
		return Null(), nil
	}

	vals := make([]string, 0, len(els))
	for _, el := range els {
		if spec.HasAttr() {
			// A missing attribute reads as "".
			a, _ := el.Attr(spec.Attr)
			vals = append(vals, a)
			continue
		}
		text, err := ElementText(el)
		if err != nil {
			return Null(), err
		}
		vals = append(vals, text)
	}
	return fold(vals), nil
}
