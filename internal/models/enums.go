package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Subject is the closed set of school subjects a task may belong to.
type Subject string

const (
	SubjectMath      Subject = "math"
	SubjectGerman    Subject = "german"
	SubjectEnglish   Subject = "english"
	SubjectFrench    Subject = "french"
	SubjectBiology   Subject = "biology"
	SubjectChemistry Subject = "chemistry"
	SubjectPhysics   Subject = "physics"
	SubjectHistory   Subject = "history"
	SubjectGeography Subject = "geography"
	SubjectArt       Subject = "art"
	SubjectMusic     Subject = "music"
	SubjectSports    Subject = "sports"
	SubjectReligion  Subject = "religion"
	SubjectComputing Subject = "computing"
	SubjectOther     Subject = "other"
)

var subjects = map[Subject]struct{}{
	SubjectMath: {}, SubjectGerman: {}, SubjectEnglish: {}, SubjectFrench: {},
	SubjectBiology: {}, SubjectChemistry: {}, SubjectPhysics: {}, SubjectHistory: {},
	SubjectGeography: {}, SubjectArt: {}, SubjectMusic: {}, SubjectSports: {},
	SubjectReligion: {}, SubjectComputing: {}, SubjectOther: {},
}

// ParseSubject normalises raw input. Unknown values fall back to SubjectOther.
func ParseSubject(raw string) Subject {
	candidate := Subject(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := subjects[candidate]; ok {
		return candidate
	}
	return SubjectOther
}

// Scan implements sql.Scanner so rows written by older clients never yield an unknown subject.
func (s *Subject) Scan(value interface{}) error {
	raw, err := scanEnumString(value)
	if err != nil {
		return err
	}
	*s = ParseSubject(raw)
	return nil
}

// Value implements driver.Valuer.
func (s Subject) Value() (driver.Value, error) {
	return string(ParseSubject(string(s))), nil
}

// Urgency expresses how pressing a help request is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency normalises raw input, defaulting to UrgencyMedium.
func ParseUrgency(raw string) Urgency {
	switch Urgency(strings.ToLower(strings.TrimSpace(raw))) {
	case UrgencyLow:
		return UrgencyLow
	case UrgencyHigh:
		return UrgencyHigh
	default:
		return UrgencyMedium
	}
}

// Scan implements sql.Scanner.
func (u *Urgency) Scan(value interface{}) error {
	raw, err := scanEnumString(value)
	if err != nil {
		return err
	}
	*u = ParseUrgency(raw)
	return nil
}

// Value implements driver.Valuer.
func (u Urgency) Value() (driver.Value, error) {
	return string(ParseUrgency(string(u))), nil
}

// HelpCategory classifies what a student needs help with.
type HelpCategory string

const (
	HelpCategoryUnderstanding  HelpCategory = "understanding"
	HelpCategoryTaskContent    HelpCategory = "task-content"
	HelpCategoryTechnical      HelpCategory = "technical"
	HelpCategoryOrganisational HelpCategory = "organisational"
	HelpCategoryOther          HelpCategory = "other"
)

// ParseHelpCategory normalises raw input, defaulting to HelpCategoryOther.
func ParseHelpCategory(raw string) HelpCategory {
	switch candidate := HelpCategory(strings.ToLower(strings.TrimSpace(raw))); candidate {
	case HelpCategoryUnderstanding, HelpCategoryTaskContent, HelpCategoryTechnical, HelpCategoryOrganisational:
		return candidate
	default:
		return HelpCategoryOther
	}
}

// Scan implements sql.Scanner.
func (c *HelpCategory) Scan(value interface{}) error {
	raw, err := scanEnumString(value)
	if err != nil {
		return err
	}
	*c = ParseHelpCategory(raw)
	return nil
}

// Value implements driver.Valuer.
func (c HelpCategory) Value() (driver.Value, error) {
	return string(ParseHelpCategory(string(c))), nil
}

func scanEnumString(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported enum value type %T", value)
	}
}
