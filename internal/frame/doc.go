// Package frame implements the RFC 6455 WebSocket frame codec used by the raw
// connection engine.
//
// Only frame headers are decoded eagerly. Payloads stay on the wire so the
// caller can read them in fixed-size chunks and enforce its own size limits
// without allocating the declared length up front.
//
// # Frame Layout
//
//	 0                   1                   2                   3
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
//	|N|V|V|V|       |S|             |   (if payload len==126/127)   |
//	| |1|2|3|       |K|             |                               |
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|                 Masking-key (0 or 4 bytes)                    |
//	+---------------------------------------------------------------+
//
// # Masking
//
// Client frames are masked. Mask takes the payload position so a payload read
// in several chunks unmasks identically to one read in a single call:
//
//	pos := 0
//	for ... {
//	    n, _ := r.Read(buf)
//	    pos = frame.Mask(h.MaskKey, pos, buf[:n])
//	}
package frame
