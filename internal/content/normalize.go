package content

import (
	"encoding/json"
	"strconv"
	"strings"

	"parkadmin/app/internal/apperr"
)

var tagObjectKeys = []string{"id", "name", "label", "value"}

var imageObjectKeys = []string{"url", "secure_url", "src"}

// NormalizeTags flattens the shapes the admin frontend has sent for sdg over time into a
// clean list: a plain string, a bracketed list string (single quotes allowed), a comma list,
// an array of strings, or an array of {id|name|label|value} objects. Blank and duplicate
// entries are dropped.
func NormalizeTags(raw any) ([]string, error) {
	out := make([]string, 0)
	if err := collectTags(raw, &out); err != nil {
		return nil, err
	}
	return dedupe(out), nil
}

func collectTags(raw any, out *[]string) error {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		*out = append(*out, splitTagString(v)...)
		return nil
	case float64:
		*out = append(*out, strconv.FormatFloat(v, 'f', -1, 64))
		return nil
	case []string:
		for _, item := range v {
			*out = append(*out, strings.TrimSpace(item))
		}
		return nil
	case []any:
		for _, item := range v {
			if _, nested := item.([]any); nested {
				return apperr.Validation("sdg must not contain nested lists")
			}
			if err := collectTags(item, out); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, key := range tagObjectKeys {
			if value, ok := scalarString(v[key]); ok {
				*out = append(*out, value)
				return nil
			}
		}
		return apperr.Validation("sdg objects need an id, name, label or value")
	default:
		return apperr.Validationf("unsupported sdg value of type %T", raw)
	}
}

func splitTagString(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		var decoded []any
		if err := json.Unmarshal([]byte(strings.ReplaceAll(trimmed, "'", `"`)), &decoded); err == nil {
			var tags []string
			for _, item := range decoded {
				if value, ok := scalarString(item); ok {
					tags = append(tags, value)
				}
			}
			return tags
		}
		trimmed = strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")
	}

	parts := strings.Split(trimmed, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tags = append(tags, strings.Trim(strings.TrimSpace(part), `"'`))
	}
	return tags
}

// NormalizeImages accepts a single URL or data URI, an array of them, or an array of
// {url} objects.
func NormalizeImages(raw any) ([]string, error) {
	out := make([]string, 0)

	switch v := raw.(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	case []string:
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			source, err := imageSource(item)
			if err != nil {
				return nil, err
			}
			if source != "" {
				out = append(out, source)
			}
		}
	case map[string]any:
		source, err := imageSource(v)
		if err != nil {
			return nil, err
		}
		if source != "" {
			out = append(out, source)
		}
	default:
		return nil, apperr.Validationf("unsupported images value of type %T", raw)
	}

	return dedupe(out), nil
}

func imageSource(item any) (string, error) {
	switch v := item.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case map[string]any:
		for _, key := range imageObjectKeys {
			if s, ok := v[key].(string); ok {
				return strings.TrimSpace(s), nil
			}
		}
		return "", apperr.Validation("image objects need a url")
	default:
		return "", apperr.Validationf("unsupported image entry of type %T", item)
	}
}

func scalarString(v any) (string, bool) {
	switch value := v.(type) {
	case string:
		trimmed := strings.TrimSpace(value)
		return trimmed, trimmed != ""
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	default:
		return "", false
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
