package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certimail/models"
)

func TestBuildDialerGmailUsesManagedEndpoint(t *testing.T) {
	for _, host := range []string{"smtp.gmail.com", "smtp.google.com", " SMTP.GMAIL.COM "} {
		profile := &models.EmailProfile{
			SMTPServer:   host,
			SMTPPort:     "587",
			SMTPUsername: "user@gmail.com",
		}

		d := BuildDialer(profile, "secret")
		assert.Equal(t, "smtp.gmail.com", d.Host, host)
		assert.Equal(t, 465, d.Port, host)
		assert.True(t, d.SSL, host)
		require.NotNil(t, d.TLSConfig)
		assert.Equal(t, "smtp.gmail.com", d.TLSConfig.ServerName)
	}
}

func TestBuildDialerPort465ImpliesSSL(t *testing.T) {
	profile := &models.EmailProfile{
		SMTPServer:   "mail.example.com",
		SMTPPort:     "465",
		SMTPUsername: "user",
	}

	d := BuildDialer(profile, "secret")
	assert.Equal(t, "mail.example.com", d.Host)
	assert.Equal(t, 465, d.Port)
	assert.True(t, d.SSL)
}

func TestBuildDialerStartTLSOnOtherPorts(t *testing.T) {
	profile := &models.EmailProfile{
		SMTPServer:   "mail.example.com",
		SMTPPort:     "587",
		SMTPUsername: "user",
	}

	d := BuildDialer(profile, "secret")
	assert.Equal(t, 587, d.Port)
	assert.False(t, d.SSL)
	require.NotNil(t, d.TLSConfig)
	assert.Equal(t, "mail.example.com", d.TLSConfig.ServerName)
}

func TestBuildDialerInvalidPortFallsBackTo587(t *testing.T) {
	for _, port := range []string{"", "not-a-port", "-1", "0"} {
		profile := &models.EmailProfile{
			SMTPServer: "mail.example.com",
			SMTPPort:   port,
		}

		d := BuildDialer(profile, "secret")
		assert.Equal(t, 587, d.Port, "port %q", port)
		assert.False(t, d.SSL)
	}
}

func TestBuildDialerPassesCredentials(t *testing.T) {
	profile := &models.EmailProfile{
		SMTPServer:   "mail.example.com",
		SMTPPort:     "587",
		SMTPUsername: "user@example.com",
	}

	d := BuildDialer(profile, "decrypted-password")
	assert.Equal(t, "user@example.com", d.Username)
	assert.Equal(t, "decrypted-password", d.Password)
}
