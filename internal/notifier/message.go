package notifier

import (
	"bytes"
	"html/template"
)

var completionTemplate = template.Must(template.New("completion").Parse(
	"<strong>(This message is automatically generated)</strong>\n" +
		"Dear {{.Name}},\n" +
		"\n" +
		"A background process sending e-mail <em>{{.Subject}}</em> has just finished."))

// ComposeCompletionMessage renders the private message body sent to the
// owner of a finished batch. Interpolated values are HTML-escaped.
func ComposeCompletionMessage(recipientName, subject string) string {
	var b bytes.Buffer
	// Execute only fails on writer errors, which bytes.Buffer never returns.
	_ = completionTemplate.Execute(&b, struct{ Name, Subject string }{recipientName, subject})
	return b.String()
}
