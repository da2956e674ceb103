package storage

import (
	"encoding/json"
	"fmt"

	"github.com/lingyjava/page-parser/internal/siteconfig"
)

// Table is the table every SQL backend stores configurations in.
const Table = "site_configs"

// EncodeSelectors serializes selectors for a TEXT column. JSON text keeps
// field order, which a JSONB column would not.
func EncodeSelectors(sel siteconfig.Selectors) (string, error) {
	b, err := json.Marshal(sel)
	if err != nil {
		return "", fmt.Errorf("encode selectors: %w", err)
	}
	return string(b), nil
}

// DecodeSite rebuilds a configuration from its stored columns.
func DecodeSite(name, selectors string) (*siteconfig.Site, error) {
	var sel siteconfig.Selectors
	if err := json.Unmarshal([]byte(selectors), &sel); err != nil {
		return nil, fmt.Errorf("decode selectors: %w", err)
	}
	return &siteconfig.Site{Name: name, Selectors: sel}, nil
}
