// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alert sends failure notifications by mail.
package alert // import "github.com/go-lpc/csi/alert"

import (
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	mail "gopkg.in/gomail.v2"
)

// Config holds the mail server credentials and the recipients of alerts.
type Config struct {
	Server   string   `toml:"server"`
	Port     int      `toml:"port"`
	User     string   `toml:"username"`
	Password string   `toml:"password"`
	To       []string `toml:"to"`
	Insecure bool     `toml:"insecure"` // skip TLS certificate verification
}

// FromEnv returns the configuration described by the MAIL_USERNAME,
// MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
func FromEnv() Config {
	port, _ := strconv.Atoi(os.Getenv("MAIL_PORT"))
	cfg := Config{
		Server:   os.Getenv("MAIL_SERVER"),
		Port:     port,
		User:     os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
		Insecure: true,
	}
	for _, v := range strings.Split(os.Getenv("MAIL_TGTS"), ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		cfg.To = append(cfg.To, v)
	}
	return cfg
}

// Merge fills the unset fields of cfg with the ones of o.
func (cfg Config) Merge(o Config) Config {
	if cfg.Server == "" {
		cfg.Server = o.Server
	}
	if cfg.Port == 0 {
		cfg.Port = o.Port
	}
	if cfg.User == "" {
		cfg.User = o.User
	}
	if cfg.Password == "" {
		cfg.Password = o.Password
	}
	if len(cfg.To) == 0 {
		cfg.To = o.To
	}
	cfg.Insecure = cfg.Insecure || o.Insecure
	return cfg
}

func (cfg Config) valid() bool {
	return cfg.User != "" && cfg.Password != "" &&
		cfg.Server != "" && cfg.Port != 0 &&
		len(cfg.To) != 0
}

// Mailer sends alert mails.
type Mailer struct {
	cfg  Config
	msg  *log.Logger
	send mail.Sender // nil sends through cfg.Server
}

// New returns a mailer sending alerts with the provided configuration.
func New(cfg Config, msg *log.Logger) *Mailer {
	if msg == nil {
		msg = log.New(io.Discard, "alert: ", 0)
	}
	return &Mailer{cfg: cfg, msg: msg}
}

// Send sends a plain text mail to all recipients.
// Send logs and ignores alerts that can not be sent for lack of credentials.
func (m *Mailer) Send(subject, body string) error {
	if !m.cfg.valid() {
		m.msg.Printf("could not send mail alert %q: missing credentials", subject)
		return nil
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.User)
	msg.SetHeader("Bcc", m.cfg.To...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	var err error
	switch m.send {
	case nil:
		dial := mail.NewDialer(m.cfg.Server, m.cfg.Port, m.cfg.User, m.cfg.Password)
		if m.cfg.Insecure {
			dial.TLSConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}
		err = dial.DialAndSend(msg)
	default:
		err = mail.Send(m.send, msg)
	}
	if err != nil {
		return fmt.Errorf("alert: could not send mail %q: %w", subject, err)
	}
	return nil
}

// Failures sends one mail listing all the failures of a run.
// Nothing is sent when errs is empty.
func (m *Mailer) Failures(subject string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var body strings.Builder
	fmt.Fprintf(&body, "%d failure(s):\n\n", len(errs))
	for _, err := range errs {
		fmt.Fprintf(&body, "- %v\n", err)
	}
	return m.Send(subject, body.String())
}
