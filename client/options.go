package client

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Option configures a Client constructed by Dial or New.
type Option func(*Client)

// WithDialTimeout bounds how long Dial waits for the TCP handshake.
// Default: 10 seconds.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithLogger attaches a logger used for connection-lifecycle messages.
// Default: logrus.StandardLogger(), tagged with no extra fields.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) { c.log = log }
}
