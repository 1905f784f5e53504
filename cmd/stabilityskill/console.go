package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/manash/stability-skill/internal/host"
	"github.com/manash/stability-skill/internal/locale"
)

// console speaks dialogs by printing them.
type console struct {
	mu     sync.Mutex
	out    io.Writer
	bundle *locale.Bundle
}

func newConsole(out io.Writer, bundle *locale.Bundle) *console {
	return &console{out: out, bundle: bundle}
}

func (c *console) SpeakDialog(sess host.Session, id string, data map[string]string) error {
	line := c.bundle.Dialog(sess.Lang, id, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "» %s\n", line)
	return err
}

// contextLog records conversation context at debug level.
type contextLog struct {
	log logrus.FieldLogger
}

func (c contextLog) SetContext(sess host.Session, key, value string) {
	c.log.WithFields(logrus.Fields{
		"session": sess.ID,
		"key":     key,
		"value":   value,
	}).Debug("context set")
}
