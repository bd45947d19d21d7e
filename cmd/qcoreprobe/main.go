// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command qcoreprobe dials a UDP peer and prints a line once Dial returns,
// for exercising the client dialer outside of a test binary. Dial does not
// wait for the handshake, so the line does not show that the connection
// reached Handshaked. Flag-based rather than built on a CLI framework: none of the
// example repos this engine is grounded on pull one in, so the standard
// flag package is the right call here rather than an unjustified import.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qcore/quicengine"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4433", "UDP address to probe")
	serverName := flag.String("server-name", "localhost", "TLS server name to present")
	timeout := flag.Duration("timeout", 5*time.Second, "dial timeout")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := &quic.Config{
		Logger:          logger,
		ReuseConnection: false,
	}
	conn, err := quic.Dial(ctx, *addr, *serverName, cfg)
	if err != nil {
		logger.WithError(err).Error("dial failed")
		os.Exit(1)
	}
	defer conn.Close(0, "probe done")

	fmt.Printf("connected to %s (server-name=%s)\n", *addr, *serverName)
}
