package smtp

import (
	"fmt"
	"strings"
	"text/template"
)

var (
	accessCodeTmpl = template.Must(template.New("access_code").Parse(
		`Hello,

{{.SenderName}} sent you a secure delivery: "{{.DeliveryTitle}}".

Your access code is: {{.Code}}

The code expires in {{.ValidMinutes}} minutes and can be tried {{.Attempts}} times.
Open the delivery at {{.Link}}

If you were not expecting this, you can ignore this email.
`))

	invitationTmpl = template.Must(template.New("invitation").Parse(
		`Hello,

{{.InviterName}} invited you to join {{.OrganizationName}} on Sealdrop as {{.Role}}.

Accept the invitation: {{.Link}}

The invitation expires on {{.ExpiresOn}}.
`))
)

type AccessCodeData struct {
	DeliveryID    string
	DeliveryTitle string
	SenderName    string
	Code          string
	ValidMinutes  int
	Attempts      int
}

type InvitationData struct {
	OrganizationName string
	InviterName      string
	Role             string
	Token            string
	ExpiresOn        string
}

// Messages renders the application's emails and hands them to a Mailer.
type Messages struct {
	mailer Mailer
	appURL string
}

func NewMessages(m Mailer, appURL string) *Messages {
	return &Messages{mailer: m, appURL: strings.TrimRight(appURL, "/")}
}

func (m *Messages) SendAccessCode(to string, d AccessCodeData) error {
	body, err := render(accessCodeTmpl, struct {
		AccessCodeData
		Link string
	}{d, m.appURL + "/d/" + d.DeliveryID})
	if err != nil {
		return err
	}
	return m.mailer.SendEmail(to, "Your access code for "+d.DeliveryTitle, body)
}

func (m *Messages) SendInvitation(to string, d InvitationData) error {
	body, err := render(invitationTmpl, struct {
		InvitationData
		Link string
	}{d, m.appURL + "/invitations/" + d.Token})
	if err != nil {
		return err
	}
	return m.mailer.SendEmail(to, "You're invited to "+d.OrganizationName, body)
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return b.String(), nil
}
