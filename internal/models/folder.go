package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type FolderKind string

const (
	FolderManual  FolderKind = "manual"
	FolderDynamic FolderKind = "dynamic"
	FolderHybrid  FolderKind = "hybrid"
)

func (k FolderKind) Valid() bool {
	switch k {
	case FolderManual, FolderDynamic, FolderHybrid:
		return true
	}
	return false
}

// HasRules reports whether folders of this kind evaluate rule groups.
func (k FolderKind) HasRules() bool {
	return k == FolderDynamic || k == FolderHybrid
}

// MatchType selects how a folder's rule groups combine.
type MatchType string

const (
	MatchAll MatchType = "all"
	MatchAny MatchType = "any"
)

func (m MatchType) Valid() bool {
	return m == MatchAll || m == MatchAny
}

var (
	ErrInvalidFolderKind = errors.New("models: invalid folder kind")
	ErrInvalidMatchType  = errors.New("models: invalid match type")
	ErrEmptyFolderName   = errors.New("models: folder name is empty")
)

type Folder struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Kind       FolderKind  `json:"kind"`
	MatchType  MatchType   `json:"match_type"`
	RuleGroups []RuleGroup `json:"rule_groups"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Validate checks the folder settings and every condition.
func (f Folder) Validate() error {
	if err := f.ValidateSettings(); err != nil {
		return err
	}
	for _, g := range f.RuleGroups {
		for _, c := range g.Conditions {
			if err := c.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateSettings checks name, kind and match type only.
func (f Folder) ValidateSettings() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyFolderName
	}
	if !f.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFolderKind, f.Kind)
	}
	if f.Kind.HasRules() && !f.MatchType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMatchType, f.MatchType)
	}
	return nil
}

type folderRecord struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Kind       FolderKind      `json:"kind"`
	Type       FolderKind      `json:"type"`
	MatchType  MatchType       `json:"match_type"`
	MatchCamel MatchType       `json:"matchType"`
	RuleGroups json.RawMessage `json:"rule_groups"`
	Rules      json.RawMessage `json:"rules"`
	CreatedAt  json.RawMessage `json:"created_at"`
	UpdatedAt  json.RawMessage `json:"updated_at"`
}

// UnmarshalJSON runs the rule group migration so a decoded Folder only holds
// canonical groups. A missing match type loads as MatchAll. A null
// rule_groups falls back to the legacy rules key.
func (f *Folder) UnmarshalJSON(data []byte) error {
	var rec folderRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	raw := rec.RuleGroups
	if isNull(raw) {
		raw = rec.Rules
	}
	// Rule groups that are not an array load as none; the folder still loads.
	groups, _ := DecodeRuleGroups(raw)

	*f = Folder{
		ID:         rec.ID,
		Name:       rec.Name,
		Kind:       rec.Kind,
		MatchType:  rec.MatchType,
		RuleGroups: groups,
		CreatedAt:  firstTime(rec.CreatedAt),
		UpdatedAt:  firstTime(rec.UpdatedAt),
	}
	if f.Kind == "" {
		f.Kind = rec.Type
	}
	if f.MatchType == "" {
		f.MatchType = rec.MatchCamel
	}
	f.MatchType = NormalizeMatchType(f.MatchType)
	return nil
}

// NormalizeMatchType maps an unset match type to MatchAll. Unknown values are
// kept so they can be reported and evaluate to no match.
func NormalizeMatchType(m MatchType) MatchType {
	if m == "" {
		return MatchAll
	}
	return MatchType(strings.ToLower(string(m)))
}
