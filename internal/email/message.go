package email

import (
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"
)

type Message struct {
	From         string
	To           []string
	Subject      string
	PlainMessage string
	HtmlMessage  string
	Rand         *rand.Rand
}

var globalRand *rand.Rand

func init() { // #nosec G404
	globalRand = rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
}

func (e *Message) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n",
		e.From, strings.Join(e.To, ", "), e.Subject)
	if err != nil {
		return err
	}

	random := e.Rand
	if random == nil {
		random = globalRand
	}

	multi := multipart.NewWriter(w)
	if err := multi.SetBoundary(boundary(random)); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", multi.Boundary())
	if err != nil {
		return err
	}

	if e.PlainMessage != "" {
		if err := addQuotedPrintablePart(multi, "text/plain", e.PlainMessage); err != nil {
			return err
		}
	}
	if e.HtmlMessage != "" {
		if err := addQuotedPrintablePart(multi, "text/html", e.HtmlMessage); err != nil {
			return err
		}
	}
	return multi.Close()
}

func addQuotedPrintablePart(multi *multipart.Writer, contentType string, body string) error {
	part, err := multi.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType + "; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

func boundary(random *rand.Rand) string {
	var buf [30]byte
	for i := range buf {
		buf[i] = "0123456789abcdef"[random.Intn(16)]
	}
	return string(buf[:])
}
