package notify

import (
	"encoding/json"
	"fmt"

	"github.com/tinywideclouds/go-carepush-service/pkg/push"
)

// DefaultIcon is the web notification icon used when none is configured.
const DefaultIcon = "/icons/icon-192x192.png"

// Builder constructs vendor-agnostic payloads.
type Builder struct {
	icon string
}

func NewBuilder(icon string) *Builder {
	if icon == "" {
		icon = DefaultIcon
	}
	return &Builder{icon: icon}
}

// Build validates title and body and coerces data values to text.
// Data that is not a JSON object is dropped.
func (b *Builder) Build(title, body string, data any) (push.Payload, error) {
	if title == "" || body == "" {
		return push.Payload{}, &push.ValidationError{Err: push.ErrMissingFields}
	}

	p := push.Payload{
		Title: title,
		Body:  body,
		DisplayHint: push.DisplayHint{
			Icon:    b.icon,
			LinkURL: push.DefaultLink,
		},
	}

	fields, ok := data.(map[string]any)
	if !ok || fields == nil {
		return p, nil
	}

	p.Data = make(map[string]string, len(fields))
	for k, v := range fields {
		text, err := stringify(v)
		if err != nil {
			return push.Payload{}, fmt.Errorf("failed to encode data field %q: %w", k, err)
		}
		p.Data[k] = text
	}

	if _, hasLink := fields["link"]; hasLink && p.Data["link"] != "" {
		p.DisplayHint.LinkURL = p.Data["link"]
	}
	return p, nil
}

func stringify(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
