package diffapi

import (
	"encoding/base64"
	"fmt"
)

// Bundle is the artifact set of one resource. Every field is optional.
// Images are base64 PNG; HTML fields are base64 UTF-8 text.
type Bundle struct {
	DiffAmount     *float64 `json:"diffAmount,omitempty"`
	HTMLDiffAmount *float64 `json:"htmlDiffAmount,omitempty"`
	ScreenshotDiff string   `json:"screenshotDiff,omitempty"`
	Baseline       string   `json:"baseline,omitempty"`
	Target         string   `json:"target,omitempty"`
	HTMLDiff       string   `json:"htmlDiff,omitempty"`
	BaselineHTML   string   `json:"baselineHtml,omitempty"`
	TargetHTML     string   `json:"targetHtml,omitempty"`
}

// Float returns a pointer to f, for building bundles.
func Float(f float64) *float64 {
	return &f
}

// Field names one artifact of a bundle.
type Field string

const (
	FieldScreenshotDiff Field = "screenshotDiff"
	FieldBaseline       Field = "baseline"
	FieldTarget         Field = "target"
	FieldHTMLDiff       Field = "htmlDiff"
	FieldBaselineHTML   Field = "baselineHtml"
	FieldTargetHTML     Field = "targetHtml"
)

// Fields lists the encoded artifacts in display order.
var Fields = []Field{
	FieldScreenshotDiff, FieldBaseline, FieldTarget,
	FieldHTMLDiff, FieldBaselineHTML, FieldTargetHTML,
}

// Encoded returns the raw base64 value of f.
func (b *Bundle) Encoded(f Field) string {
	if b == nil {
		return ""
	}
	switch f {
	case FieldScreenshotDiff:
		return b.ScreenshotDiff
	case FieldBaseline:
		return b.Baseline
	case FieldTarget:
		return b.Target
	case FieldHTMLDiff:
		return b.HTMLDiff
	case FieldBaselineHTML:
		return b.BaselineHTML
	case FieldTargetHTML:
		return b.TargetHTML
	default:
		return ""
	}
}

// Decode returns the decoded bytes of f. An absent field returns (nil, nil).
func (b *Bundle) Decode(f Field) ([]byte, error) {
	enc := b.Encoded(f)
	if enc == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	return data, nil
}

// Summary describes a bundle without its payloads.
type Summary struct {
	DiffAmount     *float64       `json:"diffAmount,omitempty"`
	HTMLDiffAmount *float64       `json:"htmlDiffAmount,omitempty"`
	Sizes          map[Field]int  `json:"sizes,omitempty"`
	Invalid        map[Field]bool `json:"invalid,omitempty"`
}

// Summarize reports decoded sizes for the fields present in b.
func (b *Bundle) Summarize() Summary {
	s := Summary{}
	if b == nil {
		return s
	}
	s.DiffAmount = b.DiffAmount
	s.HTMLDiffAmount = b.HTMLDiffAmount
	for _, f := range Fields {
		if b.Encoded(f) == "" {
			continue
		}
		data, err := b.Decode(f)
		if err != nil {
			if s.Invalid == nil {
				s.Invalid = map[Field]bool{}
			}
			s.Invalid[f] = true
			continue
		}
		if s.Sizes == nil {
			s.Sizes = map[Field]int{}
		}
		s.Sizes[f] = len(data)
	}
	return s
}
