package mailer

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
)

type templateData struct {
	Langcode    string
	Subject     string
	Message     template.HTML
	DisplayName string
}

var (
	//go:embed templates/action_send_email.html
	actionSendEmailRaw string

	templates = map[string]*template.Template{
		KeyActionSendEmail: template.Must(template.New(KeyActionSendEmail).Parse(actionSendEmailRaw)),
	}
)

// Render returns the subject and HTML body of msg.
func Render(msg Message) (subject, body string, err error) {
	t, ok := templates[msg.Key]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", msg.Key)
	}

	var b bytes.Buffer
	err = t.Execute(&b, templateData{
		Langcode:    msg.Langcode,
		Subject:     msg.Params.Subject,
		Message:     template.HTML(msg.Params.Message), //nolint:gosec
		DisplayName: msg.Params.DisplayName,
	})
	if err != nil {
		return "", "", fmt.Errorf("render %s: %w", msg.Key, err)
	}
	return msg.Params.Subject, b.String(), nil
}
