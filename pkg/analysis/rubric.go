package analysis

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/rubric.md
var rubricPromptRaw string

var rubricPromptTmpl = template.Must(template.New("rubric").Parse(rubricPromptRaw))

// Rubric renders the instruction text sent with every event group
func Rubric(count int) (string, error) {
	var buf bytes.Buffer
	if err := rubricPromptTmpl.Execute(&buf, map[string]any{
		"Count": count,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute rubric prompt template")
	}
	return buf.String(), nil
}
