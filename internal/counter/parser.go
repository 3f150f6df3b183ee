package counter

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ErrProtocol marks a byte stream that is not valid RESP
var ErrProtocol = errors.New("resp protocol error")

// ReplyKind identifies a parsed RESP reply
type ReplyKind int

const (
	ReplySimple ReplyKind = iota
	ReplyError
	ReplyInteger
	ReplyBulk
	ReplyNull
)

// Reply is one parsed RESP value. Array headers are consumed, not emitted.
type Reply struct {
	Kind ReplyKind
	Str  string
	Int  int64
}

type parserState int

const (
	stateType parserState = iota
	stateLine
	stateBulkBody
)

var crlf = []byte("\r\n")

// maxBulkLen matches the server's default proto-max-bulk-len (512 MiB)
const maxBulkLen = 512 << 20

// ReplyParser incrementally decodes RESP replies from a byte stream.
// Bytes may arrive in arbitrary chunks; Next returns ok=false until a whole reply is buffered.
type ReplyParser struct {
	buf     []byte
	state   parserState
	marker  byte
	bulkLen int
}

// Feed appends received bytes
func (p *ReplyParser) Feed(b []byte) {
	p.buf = append(p.buf, b...)
}

// Next returns the next complete reply, if any
func (p *ReplyParser) Next() (Reply, bool, error) {
	for {
		switch p.state {
		case stateType:
			// stray CR/LF between replies
			for len(p.buf) > 0 && (p.buf[0] == '\r' || p.buf[0] == '\n') {
				p.buf = p.buf[1:]
			}
			if len(p.buf) == 0 {
				return Reply{}, false, nil
			}
			switch p.buf[0] {
			case '+', '-', ':', '$', '*':
			default:
				return Reply{}, false, fmt.Errorf("%w: unexpected reply marker %q", ErrProtocol, p.buf[0])
			}
			p.marker = p.buf[0]
			p.buf = p.buf[1:]
			p.state = stateLine

		case stateLine:
			idx := bytes.Index(p.buf, crlf)
			if idx < 0 {
				return Reply{}, false, nil
			}
			line := string(p.buf[:idx])
			p.buf = p.buf[idx+len(crlf):]
			p.state = stateType

			switch p.marker {
			case '+':
				return Reply{Kind: ReplySimple, Str: line}, true, nil
			case '-':
				return Reply{Kind: ReplyError, Str: line}, true, nil
			case ':':
				n, err := strconv.ParseInt(line, 10, 64)
				if err != nil {
					return Reply{}, false, fmt.Errorf("%w: invalid integer %q", ErrProtocol, line)
				}
				return Reply{Kind: ReplyInteger, Int: n}, true, nil
			case '*':
				if _, err := strconv.Atoi(line); err != nil {
					return Reply{}, false, fmt.Errorf("%w: invalid array length %q", ErrProtocol, line)
				}
			case '$':
				n, err := strconv.Atoi(line)
				if err != nil {
					return Reply{}, false, fmt.Errorf("%w: invalid bulk length %q", ErrProtocol, line)
				}
				if n < 0 {
					return Reply{Kind: ReplyNull}, true, nil
				}
				if n > maxBulkLen {
					return Reply{}, false, fmt.Errorf("%w: bulk length %d exceeds limit", ErrProtocol, n)
				}
				p.bulkLen = n
				p.state = stateBulkBody
			}

		case stateBulkBody:
			if len(p.buf)-len(crlf) < p.bulkLen {
				return Reply{}, false, nil
			}
			if !bytes.Equal(p.buf[p.bulkLen:p.bulkLen+len(crlf)], crlf) {
				return Reply{}, false, fmt.Errorf("%w: bulk string not terminated", ErrProtocol)
			}
			body := string(p.buf[:p.bulkLen])
			p.buf = p.buf[p.bulkLen+len(crlf):]
			p.state = stateType
			return Reply{Kind: ReplyBulk, Str: body}, true, nil
		}
	}
}

// appendCommand encodes args as a RESP array of bulk strings
func appendCommand(dst []byte, args ...string) []byte {
	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(len(args)), 10)
	dst = append(dst, crlf...)
	for _, arg := range args {
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(arg)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, arg...)
		dst = append(dst, crlf...)
	}
	return dst
}
