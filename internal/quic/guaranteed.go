// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

// guaranteedFrame tags a frame recorded in the data space's sent journal
// with enough of its origin to route a loss notification back to the
// subsystem that owns retransmission for it, mirroring the three-way split
// the original qconnection GuaranteedFrame enum makes between crypto,
// stream, and other reliable frames.
type guaranteedFrame struct {
	crypto   *CryptoFrame
	stream   *StreamFrame
	reliable Frame // NEW_CONNECTION_ID, MAX_DATA, HANDSHAKE_DONE, ...
}

func cryptoGuaranteed(f *CryptoFrame) guaranteedFrame   { return guaranteedFrame{crypto: f} }
func streamGuaranteed(f *StreamFrame) guaranteedFrame   { return guaranteedFrame{stream: f} }
func reliableGuaranteed(f Frame) guaranteedFrame        { return guaranteedFrame{reliable: f} }

func (g guaranteedFrame) asFrame() Frame {
	switch {
	case g.crypto != nil:
		return g.crypto
	case g.stream != nil:
		return g.stream
	default:
		return g.reliable
	}
}
