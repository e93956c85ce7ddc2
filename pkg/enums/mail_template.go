package enums

import "fmt"

// MailTemplate identifies a transactional email template.
type MailTemplate string

const (
	MailTemplateInvitation         MailTemplate = "invitation"
	MailTemplateInvitationReminder MailTemplate = "invitation_reminder"
	MailTemplateAccountCreated     MailTemplate = "account_created"
)

var validMailTemplates = []MailTemplate{
	MailTemplateInvitation,
	MailTemplateInvitationReminder,
	MailTemplateAccountCreated,
}

// String implements fmt.Stringer.
func (m MailTemplate) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MailTemplate.
func (m MailTemplate) IsValid() bool {
	for _, candidate := range validMailTemplates {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMailTemplate converts raw input into a MailTemplate.
func ParseMailTemplate(value string) (MailTemplate, error) {
	for _, candidate := range validMailTemplates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mail template %q", value)
}
