package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Regression: the MFA wait must end on a state change, not a domain
// change. On IAM Identity Center the account chooser is served from the
// same domain as the MFA prompt, so a domain-departure predicate would
// sit out the full budget after the human approved the push and then
// misreport the approval as a timeout.
func TestMFAResolved(t *testing.T) {
	ep := awsEndpoints()

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"mfa prompt", "https://d-1234567890.awsapps.com/start/user-consent", false},
		{"approval prompt deep path", "https://d-1234567890.awsapps.com/auth/mfa", false},
		{"account chooser on the mfa domain", "https://d-1234567890.awsapps.com/start/#/account/select", true},
		{"role page", "https://signin.aws.amazon.com/saml", true},
		{"console", "https://us-east-1.console.aws.amazon.com/console/home", true},
		{"blank read mid-redirect", "", false},
		{"hostless read mid-redirect", "about:blank", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mfaResolved(tt.url, ep))
		})
	}
}
