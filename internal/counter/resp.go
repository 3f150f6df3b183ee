package counter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultRESPPort    = "6379"
	defaultRESPTimeout = 500 * time.Millisecond
	readChunkSize      = 512
)

// RESPConfig addresses a remote counter store
type RESPConfig struct {
	Addr     string // host:port
	Password string
	Timeout  time.Duration // connect + round trip
}

// ParseRedisURL parses redis://[[user]:password@]host[:port]; the port defaults to 6379
func ParseRedisURL(raw string) (RESPConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		// url.Error repeats the raw URL, password included
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return RESPConfig{}, fmt.Errorf("invalid redis url: %w", err)
	}
	if u.Scheme != "redis" {
		return RESPConfig{}, fmt.Errorf("invalid redis url: unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return RESPConfig{}, errors.New("invalid redis url: missing host")
	}
	port := u.Port()
	if port == "" {
		port = defaultRESPPort
	} else if _, err := strconv.Atoi(port); err != nil {
		return RESPConfig{}, fmt.Errorf("invalid redis url: bad port %q", port)
	}

	cfg := RESPConfig{Addr: net.JoinHostPort(host, port)}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			cfg.Password = pw
		}
	}
	return cfg, nil
}

// RESPClient is a minimal RESP client that opens one connection per Increment.
// It only speaks AUTH, INCR and PEXPIRE.
type RESPClient struct {
	cfg    RESPConfig
	dialer net.Dialer
}

// NewRESPClient creates a RESPClient; a zero Timeout means 500ms
func NewRESPClient(cfg RESPConfig) *RESPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRESPTimeout
	}
	return &RESPClient{cfg: cfg}
}

// Addr returns the remote address
func (c *RESPClient) Addr() string {
	return c.cfg.Addr
}

// Increment sends (AUTH), INCR and, when the INCR reply is 1, PEXPIRE on the
// same connection. Every failure wraps ErrBackendUnavailable.
func (c *RESPClient) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.increment(ctx, key, window)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return count, nil
}

func (c *RESPClient) increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "tcp", c.cfg.Addr)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return 0, err
	}
	// unblock reads if the caller gives up first
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	var req []byte
	if c.cfg.Password != "" {
		req = appendCommand(req, "AUTH", c.cfg.Password)
	}
	req = appendCommand(req, "INCR", key)
	if _, err := conn.Write(req); err != nil {
		return 0, err
	}

	rd := &replyReader{conn: conn, buf: make([]byte, readChunkSize)}

	if c.cfg.Password != "" {
		if _, err := rd.expect(ReplySimple); err != nil {
			return 0, fmt.Errorf("AUTH: %w", err)
		}
	}

	reply, err := rd.expect(ReplyInteger)
	if err != nil {
		return 0, fmt.Errorf("INCR: %w", err)
	}
	count := reply.Int

	if count == 1 {
		ms := strconv.FormatInt(window.Milliseconds(), 10)
		if _, err := conn.Write(appendCommand(nil, "PEXPIRE", key, ms)); err != nil {
			return 0, err
		}
		if _, err := rd.expect(ReplyInteger); err != nil {
			return 0, fmt.Errorf("PEXPIRE: %w", err)
		}
	}

	return count, nil
}

type replyReader struct {
	conn   net.Conn
	parser ReplyParser
	buf    []byte
}

// next blocks until a full reply is parsed or the connection fails
func (r *replyReader) next() (Reply, error) {
	for {
		reply, ok, err := r.parser.Next()
		if err != nil {
			return Reply{}, err
		}
		if ok {
			return reply, nil
		}

		n, err := r.conn.Read(r.buf)
		if n > 0 {
			r.parser.Feed(r.buf[:n])
		}
		if err != nil {
			if reply, ok, perr := r.parser.Next(); perr == nil && ok {
				return reply, nil
			}
			return Reply{}, err
		}
	}
}

// expect reads one reply; error replies and unexpected kinds are failures
func (r *replyReader) expect(kind ReplyKind) (Reply, error) {
	reply, err := r.next()
	if err != nil {
		return Reply{}, err
	}
	if reply.Kind == ReplyError {
		return Reply{}, fmt.Errorf("error reply: %s", reply.Str)
	}
	if reply.Kind != kind {
		return Reply{}, fmt.Errorf("%w: unexpected reply kind %d", ErrProtocol, reply.Kind)
	}
	return reply, nil
}
