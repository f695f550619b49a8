// Package server wires a net.Listener to a bounded pool of qooil sessions:
// accept, hand the connection to a worker, repeat.
package server

import (
	"context"
	"errors"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	"github.com/qooil/qooil/internal/pool"
	"github.com/qooil/qooil/internal/session"
)

// Config configures one listener's sessions: the sandbox root every
// connection is confined to, the limits advertised via GetInfo, and the
// maximum number of sessions served concurrently.
type Config struct {
	Root           string
	MaxName        uint64
	MaxPath        uint64
	Version        string
	MaxConnections int
	Logger         *logrus.Entry
}

// Serve accepts connections from ln until ctx is canceled or Accept fails
// permanently. Each connection is handed to a fixed-size worker pool;
// netutil.LimitListener additionally bounds the number of simultaneously
// accepted (not yet drained) connections to MaxConnections, so a burst of
// dials cannot outrun the pool and pile up half-open sockets.
func Serve(ctx context.Context, ln net.Listener, cfg Config) error {
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 64
	}

	limited := netutil.LimitListener(ln, maxConns)
	workers := pool.New(ctx, maxConns)
	defer workers.Close()

	go func() {
		<-ctx.Done()
		limited.Close()
	}()

	for {
		conn, err := limited.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("qooil: accept failed")
			continue
		}

		sessCfg := session.Config{MaxName: cfg.MaxName, MaxPath: cfg.MaxPath, Version: cfg.Version}
		root := cfg.Root
		connLog := log.WithField("remote_addr", conn.RemoteAddr().String())

		accepted := workers.Submit(func() {
			serveOne(conn, root, sessCfg, connLog)
		})
		if !accepted {
			conn.Close()
		}
	}
}

func serveOne(conn net.Conn, root string, cfg session.Config, log *logrus.Entry) {
	defer conn.Close()

	sess, err := session.New(conn, root, cfg, log)
	if err != nil {
		log.WithError(err).Error("qooil: failed to start session")
		return
	}
	defer sess.Close()

	log.Info("qooil: session started")
	if err := sess.Serve(); err != nil {
		log.WithError(err).Warn("qooil: session ended with an error")
		return
	}
	log.Info("qooil: session ended")
}
