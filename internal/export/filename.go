package export

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeChars   = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f\x7f]`)
)

// Filename derives the download name from an invoice number:
// whitespace runs and path-unsafe characters become "-".
func Filename(number string) string {
	name := whitespaceRun.ReplaceAllString(number, "-")
	name = unsafeChars.ReplaceAllString(name, "-")
	if strings.Trim(name, "-.") == "" {
		name = "invoice"
	}
	return name + ".pdf"
}
