package content

import (
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

var (
	descriptionOnce      sync.Once
	descriptionPolicy    *bluemonday.Policy
	descriptionConverter *converter.Converter
)

func initDescription() {
	descriptionPolicy = bluemonday.UGCPolicy()
	descriptionConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
}

// NormalizeDescription sanitizes provider-supplied HTML and converts it to Markdown.
// Plain text passes through unchanged apart from trimming. If conversion fails the
// sanitized text is returned.
func NormalizeDescription(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.ContainsAny(raw, "<&") {
		return raw
	}

	descriptionOnce.Do(initDescription)

	clean := descriptionPolicy.Sanitize(raw)
	md, err := descriptionConverter.ConvertString(clean)
	if err != nil || strings.TrimSpace(md) == "" {
		return strings.TrimSpace(clean)
	}
	return strings.TrimSpace(md)
}
