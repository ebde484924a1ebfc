package email

import (
	"bytes"
	"html/template"
	texttemplate "text/template"
	"time"
)

// ResetEmailData alimenta la plantilla de reset.
type ResetEmailData struct {
	Name     string
	Username string
	Link     string
	TTL      time.Duration
}

var resetHTML = template.Must(template.New("reset.html").Parse(`<!doctype html>
<html><body>
<p>Hi {{.Name}},</p>
<p>Someone asked to reset the password for <strong>{{.Username}}</strong>.</p>
<p><a href="{{.Link}}">Reset your password</a></p>
<p>The link works once and expires in {{.TTL}}. If it wasn't you, ignore this email.</p>
</body></html>`))

var resetText = texttemplate.Must(texttemplate.New("reset.txt").Parse(`Hi {{.Name}},

Someone asked to reset the password for {{.Username}}.
Open this link to choose a new one: {{.Link}}

The link works once and expires in {{.TTL}}. If it wasn't you, ignore this email.
`))

// RenderReset arma el Message del reset para to.
func RenderReset(toAddress string, data ResetEmailData) (Message, error) {
	var h, t bytes.Buffer
	if err := resetHTML.Execute(&h, data); err != nil {
		return Message{}, err
	}
	if err := resetText.Execute(&t, data); err != nil {
		return Message{}, err
	}
	return Message{
		ToAddress: toAddress,
		ToName:    data.Name,
		Subject:   "Reset Your Password",
		HTML:      h.String(),
		Text:      t.String(),
	}, nil
}
