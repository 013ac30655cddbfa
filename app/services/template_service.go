package services

import (
	"strings"
)

// LinkPlaceholder is the marker a template uses where the trackable short
// link should be substituted.
const LinkPlaceholder = "{link}"

// TemplateService renders message templates. Variables use {name} markers;
// lines whose markers all resolve to nothing are dropped so optional fields
// do not leave blank lines in the message body.
type TemplateService interface {
	Render(template string, vars map[string]string) string
	HasLink(template string) bool
}

type TemplateServiceImpl struct{}

func NewTemplateService() TemplateService {
	return &TemplateServiceImpl{}
}

func (t *TemplateServiceImpl) HasLink(template string) bool {
	return strings.Contains(template, LinkPlaceholder)
}

func (t *TemplateServiceImpl) Render(template string, vars map[string]string) string {
	lines := strings.Split(template, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		hadMarker := strings.Contains(line, "{")
		rendered := substituteLine(line, vars)
		// A line that only existed to carry optional variables disappears
		// when none of them resolved.
		if hadMarker && strings.TrimSpace(rendered) == "" {
			continue
		}
		out = append(out, rendered)
	}

	return strings.Join(out, "\n")
}

func substituteLine(line string, vars map[string]string) string {
	var b strings.Builder
	for {
		start := strings.Index(line, "{")
		if start < 0 {
			b.WriteString(line)
			break
		}
		end := strings.Index(line[start:], "}")
		if end < 0 {
			b.WriteString(line)
			break
		}
		end += start
		b.WriteString(line[:start])
		name := line[start+1 : end]
		if v, ok := vars[name]; ok {
			b.WriteString(v)
		}
		// Unknown markers render as empty rather than leaking braces
		line = line[end+1:]
	}
	return b.String()
}
