package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// AnswerKind tags the variant held by an AnswerValue.
type AnswerKind string

const (
	AnswerNone   AnswerKind = ""
	AnswerText   AnswerKind = "text"
	AnswerNumber AnswerKind = "number"
	AnswerBool   AnswerKind = "bool"
)

// AnswerValue is a tagged scalar a student entered for one field.
// On the wire it is a plain JSON scalar: string, number, boolean or null.
type AnswerValue struct {
	Kind   AnswerKind
	Text   string
	Number float64
	Bool   bool
}

// TextAnswer builds a text variant.
func TextAnswer(text string) AnswerValue {
	return AnswerValue{Kind: AnswerText, Text: text}
}

// NumberAnswer builds a number variant.
func NumberAnswer(n float64) AnswerValue {
	return AnswerValue{Kind: AnswerNumber, Number: n}
}

// BoolAnswer builds a boolean variant.
func BoolAnswer(b bool) AnswerValue {
	return AnswerValue{Kind: AnswerBool, Bool: b}
}

// String renders the answer as text. Absent answers render as the empty string.
func (a AnswerValue) String() string {
	switch a.Kind {
	case AnswerText:
		return a.Text
	case AnswerNumber:
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	case AnswerBool:
		return strconv.FormatBool(a.Bool)
	default:
		return ""
	}
}

// MarshalJSON encodes the variant as a bare JSON scalar.
func (a AnswerValue) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerText:
		return json.Marshal(a.Text)
	case AnswerNumber:
		return json.Marshal(a.Number)
	case AnswerBool:
		return json.Marshal(a.Bool)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar. Arrays and objects are rejected.
func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = AnswerValue{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*a = TextAnswer(text)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*a = BoolAnswer(b)
	case '{', '[':
		return fmt.Errorf("answer must be a scalar value")
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*a = NumberAnswer(n)
	}
	return nil
}

// Answers maps field ids to the student's current values.
type Answers map[string]AnswerValue

// Clone returns a shallow copy safe to mutate.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
