// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package backend

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/monadic/snapdiff/pkg/diffapi"
)

// statusURLs maps each status URL field to the bundle field it fills.
var statusURLs = []struct {
	key   string
	field diffapi.Field
}{
	{"screenshotDiffUrl", diffapi.FieldScreenshotDiff},
	{"baselineUrl", diffapi.FieldBaseline},
	{"targetUrl", diffapi.FieldTarget},
	{"htmlDiffUrl", diffapi.FieldHTMLDiff},
	{"baselineHtmlUrl", diffapi.FieldBaselineHTML},
	{"targetHtmlUrl", diffapi.FieldTargetHTML},
}

// ArtifactRefs is what a snapshot status says about its artifacts.
type ArtifactRefs struct {
	DiffAmount     *float64
	HTMLDiffAmount *float64
	URLs           map[diffapi.Field]string
}

// ReadStatus extracts artifact references from a snapshot or scheduled
// snapshot. Missing or mistyped fields are skipped.
func ReadStatus(obj *unstructured.Unstructured) ArtifactRefs {
	refs := ArtifactRefs{URLs: map[diffapi.Field]string{}}
	if obj == nil {
		return refs
	}
	refs.DiffAmount = nestedNumber(obj.Object, "status", "screenshotDiffAmount")
	refs.HTMLDiffAmount = nestedNumber(obj.Object, "status", "htmlDiffAmount")
	for _, s := range statusURLs {
		if u, found, _ := unstructured.NestedString(obj.Object, "status", s.key); found && u != "" {
			refs.URLs[s.field] = u
		}
	}
	return refs
}

// nestedNumber reads a JSON number that may have decoded as int64 or float64.
func nestedNumber(obj map[string]interface{}, fields ...string) *float64 {
	v, found, err := unstructured.NestedFieldNoCopy(obj, fields...)
	if !found || err != nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return diffapi.Float(n)
	case int64:
		return diffapi.Float(float64(n))
	case int:
		return diffapi.Float(float64(n))
	default:
		return nil
	}
}
