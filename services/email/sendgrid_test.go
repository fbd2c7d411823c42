package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/core"
	logsvc "github.com/alumnet/alumnet/services/logger"
)

func Test_sendgridService_prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(logsvc.NewTestLogger(), conf).(*sendgridService)

	tests := []struct {
		template     string
		wantCategory string
		wantTracking bool
	}{
		{"otp", "otp", false},
		{"password_reset", "password_reset", false},
		{"welcome", "welcome", true},
		{"", plainCategory, true},
	}
	for _, tc := range tests {
		t.Run(tc.wantCategory, func(t *testing.T) {
			m := svc.prepare(core.EmailMessage{
				To:           []mail.Address{{Name: "Ada", Address: "ada@test.cd"}},
				Subject:      "Hello",
				TemplateName: tc.template,
				TextContent:  "hi",
			})

			require.Len(t, m.Personalizations, 1)
			assert.Equal(t, "["+conf.AppName+"] Hello", m.Personalizations[0].Subject)
			assert.Equal(t, []string{tc.wantCategory}, m.Categories)
			require.NotNil(t, m.MailSettings)
			assert.True(t, *m.MailSettings.SandboxMode.Enable)

			if tc.wantTracking {
				assert.Nil(t, m.TrackingSettings)
				return
			}
			require.NotNil(t, m.TrackingSettings)
			assert.False(t, *m.TrackingSettings.ClickTracking.Enable)
			assert.False(t, *m.TrackingSettings.OpenTracking.Enable)
		})
	}
}
