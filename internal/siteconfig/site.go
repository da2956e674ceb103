// Package siteconfig defines per-domain extraction configurations and the
// import/export bundle format they are exchanged in.
package siteconfig

import (
	"errors"
	"fmt"
	"strings"
)

// MetaField is the result key reserved for the metadata sidecar.
const MetaField = "_meta"

var (
	ErrNilSite        = errors.New("configuration is nil")
	ErrNoSelectors    = errors.New("configuration has no selectors")
	ErrEmptyField     = errors.New("field name is empty")
	ErrReservedField  = fmt.Errorf("field name %q is reserved", MetaField)
	ErrDuplicateField = errors.New("field name is duplicated")
	ErrEmptySelector  = errors.New("selector is empty")
)

// Site is the extraction configuration for one domain.
type Site struct {
	Name      string    `json:"name" yaml:"name"`
	Selectors Selectors `json:"selectors" yaml:"selectors"`
}

// Validate reports every structural problem of s joined into one error.
// A configuration without selectors is never valid.
func (s *Site) Validate() error {
	if s == nil {
		return ErrNilSite
	}
	if len(s.Selectors) == 0 {
		return ErrNoSelectors
	}

	var errs []error
	seen := make(map[string]struct{}, len(s.Selectors))
	for i, e := range s.Selectors {
		field := strings.TrimSpace(e.Field)
		switch {
		case field == "":
			errs = append(errs, fmt.Errorf("selectors[%d]: %w", i, ErrEmptyField))
			continue
		case field == MetaField:
			errs = append(errs, fmt.Errorf("selectors[%d]: %w", i, ErrReservedField))
			continue
		}
		if _, dup := seen[field]; dup {
			errs = append(errs, fmt.Errorf("field %q: %w", field, ErrDuplicateField))
		}
		seen[field] = struct{}{}

		if strings.TrimSpace(e.Selector) == "" {
			errs = append(errs, fmt.Errorf("field %q: %w", field, ErrEmptySelector))
		}
	}
	return errors.Join(errs...)
}

// Normalize trims names and selectors in place and fills an empty Name with
// fallback. It mirrors what the configuration editor does before saving.
func (s *Site) Normalize(fallback string) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = fallback
	}
	for i := range s.Selectors {
		s.Selectors[i].Field = strings.TrimSpace(s.Selectors[i].Field)
		s.Selectors[i].Selector = strings.TrimSpace(s.Selectors[i].Selector)
	}
}

// Clone returns a deep copy of s.
func (s *Site) Clone() *Site {
	if s == nil {
		return nil
	}
	return &Site{
		Name:      s.Name,
		Selectors: append(Selectors(nil), s.Selectors...),
	}
}
