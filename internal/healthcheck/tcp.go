package healthcheck

import (
	"context"
	"net"
	"strconv"
	"time"
)

// TCPTier succeeds when a TCP connection can be established. An address
// carrying its own port overrides the tier's default port.
type TCPTier struct {
	port    int
	timeout time.Duration
}

func NewTCPTier(port int, timeout time.Duration) *TCPTier {
	return &TCPTier{port: port, timeout: timeout}
}

func (t *TCPTier) Name() string           { return TierTCP }
func (t *TCPTier) Timeout() time.Duration { return t.timeout }

func (t *TCPTier) Probe(ctx context.Context, address string) error {
	host, port := splitAddress(address)
	if port == "" {
		port = strconv.Itoa(t.port)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return err
	}
	return conn.Close()
}
