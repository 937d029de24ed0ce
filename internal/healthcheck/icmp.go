package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP     = 1
	protocolICMPv6   = 58
	icmpPayload      = "fleetwatch"
	icmpReadBufBytes = 1500
)

var errNoAddress = errors.New("no address resolved")

// ICMPTier sends a single echo request and waits for the matching reply.
// It prefers unprivileged datagram ICMP sockets and falls back to raw
// sockets, which need CAP_NET_RAW.
type ICMPTier struct {
	timeout time.Duration
	id      int
	seq     atomic.Uint32
}

func NewICMPTier(timeout time.Duration) *ICMPTier {
	return &ICMPTier{timeout: timeout, id: os.Getpid() & 0xffff}
}

func (t *ICMPTier) Name() string           { return TierICMP }
func (t *ICMPTier) Timeout() time.Duration { return t.timeout }

func (t *ICMPTier) Probe(ctx context.Context, address string) error {
	host, _ := splitAddress(address)

	ip, err := resolve(ctx, host)
	if err != nil {
		return err
	}
	v4 := ip.To4() != nil

	conn, privileged, err := listenICMP(v4)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	seq := int(t.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Code: 0,
		Body: &icmp.Echo{ID: t.id, Seq: seq, Data: []byte(icmpPayload)},
	}
	proto := protocolICMP
	if v4 {
		msg.Type = ipv4.ICMPTypeEcho
	} else {
		msg.Type = ipv6.ICMPTypeEchoRequest
		proto = protocolICMPv6
	}

	wire, err := msg.Marshal(nil)
	if err != nil {
		return fmt.Errorf("marshal echo: %w", err)
	}

	var dst net.Addr = &net.UDPAddr{IP: ip}
	if privileged {
		dst = &net.IPAddr{IP: ip}
	}
	if _, err := conn.WriteTo(wire, dst); err != nil {
		return err
	}

	buf := make([]byte, icmpReadBufBytes)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if !sameHost(peer, ip) {
			continue
		}
		reply, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}
		if reply.Type != ipv4.ICMPTypeEchoReply && reply.Type != ipv6.ICMPTypeEchoReply {
			continue
		}
		// Datagram sockets rewrite the echo ID, so only the sequence is
		// compared.
		if echo, ok := reply.Body.(*icmp.Echo); ok && echo.Seq == seq {
			return nil
		}
	}
}

func resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0].IP, nil
	}
	return nil, errNoAddress
}

func listenICMP(v4 bool) (conn *icmp.PacketConn, privileged bool, err error) {
	if v4 {
		if conn, err = icmp.ListenPacket("udp4", "0.0.0.0"); err == nil {
			return conn, false, nil
		}
		conn, err = icmp.ListenPacket("ip4:icmp", "0.0.0.0")
		return conn, true, err
	}
	if conn, err = icmp.ListenPacket("udp6", "::"); err == nil {
		return conn, false, nil
	}
	conn, err = icmp.ListenPacket("ip6:ipv6-icmp", "::")
	return conn, true, err
}

func sameHost(peer net.Addr, ip net.IP) bool {
	switch p := peer.(type) {
	case *net.UDPAddr:
		return p.IP.Equal(ip)
	case *net.IPAddr:
		return p.IP.Equal(ip)
	default:
		return false
	}
}
