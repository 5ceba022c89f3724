package ndns

import (
	"context"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sys/unix"
)

// dapProvider is implemented by resolvers that expose the DAP table the
// server loop charges for per-IP ingress/egress heat, alongside the
// per-domain charging NVSResolver already does internally. Both charge
// the same table (just different key folds), per §4.2.
type dapProvider interface {
	DAP() *DAP
}

// Server is the single-threaded UDP receive loop described by §4.7. It
// deliberately does not use dns.Server.ActivateAndServe, which dispatches
// each datagram on its own goroutine: the resolver's invariants (strict
// receive-order replies, one in-flight request at a time) require the
// loop to stay on a single goroutine, so the socket is read and answered
// synchronously here instead.
type Server struct {
	id       string
	bindAddr string
	port     uint16
	resolver Resolver
	dap      *DAP

	conn net.PacketConn
}

// NewServer builds a Server bound to bindAddr:port, dispatching decoded
// queries to resolver. If resolver also implements DAP() *DAP, its table
// is charged for per-IP ingress/egress heat around every datagram.
func NewServer(bindAddr string, port uint16, resolver Resolver) *Server {
	var dap *DAP
	if p, ok := resolver.(dapProvider); ok {
		dap = p.DAP()
	}
	return &Server{
		id:       resolver.String(),
		bindAddr: bindAddr,
		port:     port,
		resolver: resolver,
		dap:      dap,
	}
}

// Start opens the UDP socket and runs the receive loop until Shutdown is
// called or the socket errors. IPv6 is preferred (with IPV6_V6ONLY
// disabled, so IPv4 clients reach it via a mapped address); if the
// dual-stack bind fails, it falls back to plain IPv4.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.bindAddr, strconv.Itoa(int(s.port)))

	conn, err := listenUDPDualStack(addr)
	if err != nil {
		conn, err = listenUDPDualStack(net.JoinHostPort(fallbackV4Addr(s.bindAddr), strconv.Itoa(int(s.port))))
		if err != nil {
			return err
		}
	}
	s.conn = conn

	buf := make([]byte, BufSize)
	for {
		n, peer, err := s.conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		s.dap.Tick(time.Now())
		s.handleDatagram(buf[:n], peer)
	}
}

// BufSize bounds one incoming datagram read (2*MaxOut, matching BUF_SIZE).
const BufSize = 2 * MaxOut

// Shutdown closes the listening socket, causing Start's read loop to
// return an error and exit.
func (s *Server) Shutdown() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Server) String() string { return s.id }

func (s *Server) handleDatagram(payload []byte, peer net.Addr) {
	ci := ClientInfo{Listener: s.id, SourceIP: udpAddrIP(peer)}

	if mintemp, admit := s.dap.CheckIP(ci.SourceIP, uint16(len(payload)/32)); !admit {
		logger(s.id, nil, ci).WithField("mintemp", mintemp).Debug("dap denied source ip")
		return
	}

	q := new(dns.Msg)
	if err := q.Unpack(payload); err != nil {
		res, ok := rawFormErr(payload)
		if !ok || res.Drop {
			s.dap.CheckIP(ci.SourceIP, 150)
			return
		}
		s.writeReply(res.Msg, peer, true)
		return
	}

	a, err := s.resolver.Resolve(q, ci)
	if err != nil {
		logger(s.id, q, ci).WithError(err).Error("resolve failed")
		a = rcodeMsg(q, dns.RcodeServerFailure)
	}
	if a == nil {
		s.dap.CheckIP(ci.SourceIP, 150)
		return
	}
	s.writeReply(a, peer, false)
}

func (s *Server) writeReply(a *dns.Msg, peer net.Addr, raw bool) {
	out, err := a.Pack()
	if err != nil {
		return
	}
	if _, err := s.conn.WriteTo(out, peer); err != nil {
		logger(s.id, nil, ClientInfo{Listener: s.id}).WithError(err).Debug("write failed")
		return
	}

	inctemp := uint16(len(out) / 32)
	if a.Rcode != dns.RcodeSuccess {
		inctemp += 100
	}
	s.dap.CheckIP(udpAddrIP(peer), inctemp)
}

func udpAddrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	default:
		return nil
	}
}

// fallbackV4Addr drops a bracketed/IPv6 bind address down to "0.0.0.0" so
// the IPv4 retry doesn't reuse an address family the first bind rejected.
func fallbackV4Addr(bindAddr string) string {
	if ip := net.ParseIP(strings.Trim(bindAddr, "[]")); bindAddr == "" || (ip != nil && ip.To4() == nil) {
		return "0.0.0.0"
	}
	return bindAddr
}

// listenUDPDualStack opens a UDP socket with IPV6_V6ONLY cleared, so an
// IPv6 wildcard bind also accepts IPv4-mapped connections. Clearing the
// option is a no-op (and harmless) on an IPv4-only socket.
func listenUDPDualStack(addr string) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
			})
			if err != nil {
				return err
			}
			// Ignore ctrlErr: an IPv4-only socket doesn't support this
			// option, and that's fine — it simply has no dual-stack
			// behavior to disable.
			_ = ctrlErr
			return nil
		},
	}
	return lc.ListenPacket(context.Background(), "udp", addr)
}
