package utils

import (
	"crypto/tls"
	"strconv"
	"strings"

	"gopkg.in/gomail.v2"

	"certimail/models"
)

const gmailHost = "smtp.gmail.com"

// BuildDialer maps an email profile to an SMTP dialer. Gmail hosts use
// the managed endpoint on 465 with implicit TLS; every other host uses
// the stored port, where 465 means implicit TLS and anything else is
// plain dial with STARTTLS upgrade. The password must already be
// decrypted by the caller.
func BuildDialer(profile *models.EmailProfile, password string) *gomail.Dialer {
	host := strings.ToLower(strings.TrimSpace(profile.SMTPServer))

	if host == gmailHost || host == "smtp.google.com" {
		d := gomail.NewDialer(gmailHost, 465, profile.SMTPUsername, password)
		d.SSL = true
		d.TLSConfig = &tls.Config{ServerName: gmailHost}
		return d
	}

	port, err := strconv.Atoi(strings.TrimSpace(profile.SMTPPort))
	if err != nil || port <= 0 {
		port = 587
	}

	d := gomail.NewDialer(host, port, profile.SMTPUsername, password)
	d.SSL = port == 465
	d.TLSConfig = &tls.Config{ServerName: host}
	return d
}
