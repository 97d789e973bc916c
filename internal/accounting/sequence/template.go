package sequence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Template formats document numbers from a pattern such as
// "{TYPE}-{YYYY}{MM}-{SEQ:5}". Supported placeholders: {TYPE}, {YYYY}, {YY},
// {MM}, and {SEQ:n} with a zero-padded width n. The period key derives from
// the placeholders present: templates carrying {MM} reset monthly, the rest
// yearly.
type Template struct {
	raw      string
	seqWidth int
	monthly  bool
}

// DefaultPattern is used when no pattern is configured for a document type.
const DefaultPattern = "{TYPE}-{YYYY}{MM}-{SEQ:5}"

// ParseTemplate validates the pattern and precomputes the sequence width.
func ParseTemplate(raw string) (Template, error) {
	if !strings.Contains(raw, "{SEQ:") {
		return Template{}, fmt.Errorf("sequence: pattern %q missing {SEQ:n} placeholder", raw)
	}
	start := strings.Index(raw, "{SEQ:")
	end := strings.Index(raw[start:], "}")
	if end < 0 {
		return Template{}, fmt.Errorf("sequence: pattern %q has unterminated {SEQ:n}", raw)
	}
	widthStr := raw[start+len("{SEQ:") : start+end]
	width, err := strconv.Atoi(widthStr)
	if err != nil || width < 1 || width > 9 {
		return Template{}, fmt.Errorf("sequence: pattern %q has invalid sequence width %q", raw, widthStr)
	}
	return Template{
		raw:      raw,
		seqWidth: width,
		monthly:  strings.Contains(raw, "{MM}"),
	}, nil
}

// MustParseTemplate panics on an invalid pattern; for configuration defaults.
func MustParseTemplate(raw string) Template {
	t, err := ParseTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// PeriodKey returns the counter key segment for a posting date.
func (t Template) PeriodKey(date time.Time) string {
	if t.monthly {
		return date.Format("200601")
	}
	return date.Format("2006")
}

// Max is the largest sequence value the configured width can carry.
func (t Template) Max() int64 {
	max := int64(1)
	for i := 0; i < t.seqWidth; i++ {
		max *= 10
	}
	return max - 1
}

// Format renders the document number for a sequence value.
func (t Template) Format(docType string, date time.Time, value int64) string {
	out := t.raw
	out = strings.ReplaceAll(out, "{TYPE}", docType)
	out = strings.ReplaceAll(out, "{YYYY}", date.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", date.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", date.Format("01"))
	seq := fmt.Sprintf("%0*d", t.seqWidth, value)
	start := strings.Index(out, "{SEQ:")
	end := start + strings.Index(out[start:], "}")
	return out[:start] + seq + out[end+1:]
}
