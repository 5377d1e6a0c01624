// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alert

import (
	"bytes"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	mail "gopkg.in/gomail.v2"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("MAIL_USERNAME", "bot@example.org")
	t.Setenv("MAIL_PASSWORD", "s3cr3t")
	t.Setenv("MAIL_SERVER", "smtp.example.org")
	t.Setenv("MAIL_PORT", "587")
	t.Setenv("MAIL_TGTS", "a@example.org, b@example.org,")

	got := FromEnv()
	want := Config{
		Server:   "smtp.example.org",
		Port:     587,
		User:     "bot@example.org",
		Password: "s3cr3t",
		To:       []string{"a@example.org", "b@example.org"},
		Insecure: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("invalid config (-want +got):\n%s", diff)
	}

	got = Config{Server: "mail.local", To: []string{"c@example.org"}}.Merge(want)
	want.Server = "mail.local"
	want.To = []string{"c@example.org"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("invalid merged config (-want +got):\n%s", diff)
	}
}

type sent struct {
	from string
	to   []string
	body string
}

func newTestMailer(cfg Config, msg *log.Logger) (*Mailer, *[]sent) {
	var out []sent
	m := New(cfg, msg)
	m.send = mail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		buf := new(bytes.Buffer)
		_, err := msg.WriteTo(buf)
		if err != nil {
			return err
		}
		out = append(out, sent{from: from, to: to, body: buf.String()})
		return nil
	})
	return m, &out
}

func TestSend(t *testing.T) {
	cfg := Config{
		Server: "smtp.example.org", Port: 587,
		User: "bot@example.org", Password: "s3cr3t",
		To: []string{"a@example.org", "b@example.org"},
	}
	m, out := newTestMailer(cfg, nil)

	err := m.Failures("Talltowers - FAILURE", []error{
		errors.New("hamSg8muk.bdat: invalid frame"),
		errors.New("stoAg8muk.bdat: empty table"),
	})
	if err != nil {
		t.Fatalf("could not send alert: %+v", err)
	}

	if got, want := len(*out), 1; got != want {
		t.Fatalf("invalid number of mails: got=%d, want=%d", got, want)
	}
	msg := (*out)[0]
	if got, want := msg.from, cfg.User; got != want {
		t.Fatalf("invalid sender: got=%q, want=%q", got, want)
	}
	if diff := cmp.Diff(cfg.To, msg.to); diff != "" {
		t.Fatalf("invalid recipients (-want +got):\n%s", diff)
	}
	for _, want := range []string{
		"Subject: Talltowers - FAILURE",
		"2 failure(s):",
		"- hamSg8muk.bdat: invalid frame",
		"- stoAg8muk.bdat: empty table",
	} {
		if !strings.Contains(msg.body, want) {
			t.Fatalf("mail does not contain %q:\n%s", want, msg.body)
		}
	}

	err = m.Failures("Talltowers - FAILURE", nil)
	if err != nil {
		t.Fatalf("could not send empty alert: %+v", err)
	}
	if got, want := len(*out), 1; got != want {
		t.Fatalf("invalid number of mails: got=%d, want=%d", got, want)
	}
}

func TestSendMissingCredentials(t *testing.T) {
	buf := new(bytes.Buffer)
	m, out := newTestMailer(Config{Server: "smtp.example.org"}, log.New(buf, "", 0))

	err := m.Send("Talltowers - FAILURE", "boom")
	if err != nil {
		t.Fatalf("missing credentials should not fail: %+v", err)
	}
	if len(*out) != 0 {
		t.Fatalf("mail sent without credentials")
	}
	if !strings.Contains(buf.String(), "missing credentials") {
		t.Fatalf("missing credentials not logged: %q", buf.String())
	}
}

func TestSendError(t *testing.T) {
	cfg := Config{
		Server: "smtp.example.org", Port: 587,
		User: "bot@example.org", Password: "s3cr3t",
		To: []string{"a@example.org"},
	}
	boom := errors.New("boom")
	m := New(cfg, nil)
	m.send = mail.SendFunc(func(string, []string, io.WriterTo) error { return boom })

	err := m.Send("subject", "body")
	if err == nil || !strings.Contains(err.Error(), boom.Error()) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, boom)
	}
}
