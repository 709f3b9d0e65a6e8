//go:build linux || darwin

package aio

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// recvfrom reads one datagram from fd, returning its payload and the
// sender's address formatted as "ip:port".
func recvfrom(fd int, maxSize int) ([]byte, string, error) {
	buf := make([]byte, maxSize)
	n, from, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		return nil, "", err
	}
	return buf[:n], sockaddrString(from), nil
}

// sendtoAddr resolves addr ("ip:port") and sends data to it via fd.
func sendtoAddr(fd int, data []byte, addr string) error {
	sa, err := resolveSockaddr(addr)
	if err != nil {
		return err
	}
	return unix.Sendto(fd, data, 0, sa)
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(a.Addr[:])
		return fmt.Sprintf("%s:%d", ip.String(), a.Port)
	case *unix.SockaddrInet6:
		ip := net.IP(a.Addr[:])
		return fmt.Sprintf("[%s]:%d", ip.String(), a.Port)
	default:
		return ""
	}
}

// bindListen creates a non-blocking TCP socket bound to addr and
// listening with the given backlog, returning its fd.
func bindListen(addr string, backlog int) (int, error) {
	sa, err := resolveSockaddr(addr)
	if err != nil {
		return -1, err
	}
	family := unix.AF_INET
	if _, ok := sa.(*unix.SockaddrInet6); ok {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := setNonblock(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// bindDatagram creates a non-blocking UDP socket bound to addr,
// returning its fd.
func bindDatagram(addr string) (int, error) {
	sa, err := resolveSockaddr(addr)
	if err != nil {
		return -1, err
	}
	family := unix.AF_INET
	if _, ok := sa.(*unix.SockaddrInet6); ok {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := setNonblock(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// dialUDPClient creates a non-blocking UDP socket and connects it to
// remoteAddr, fixing a local ephemeral port and restricting delivery to
// datagrams from that one peer (so ICMP unreachable errors surface the
// way a client talking to a single server expects). sendto still takes
// an explicit destination on every call, which the kernel honours as a
// one-off override of the connected peer, matching the spec's
// addr-per-call Write shape rather than a plain connected write.
func dialUDPClient(remoteAddr string) (int, error) {
	sa, err := resolveSockaddr(remoteAddr)
	if err != nil {
		return -1, err
	}
	family := unix.AF_INET
	if _, ok := sa.(*unix.SockaddrInet6); ok {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return -1, err
	}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := setNonblock(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// acceptConn accepts one pending connection on the non-blocking listener
// fd, returning the new connection's fd (already non-blocking) and its
// peer address formatted as "ip:port".
func acceptConn(fd int) (int, string, error) {
	connFD, sa, err := unix.Accept(fd)
	if err != nil {
		return -1, "", err
	}
	if err := setNonblock(connFD); err != nil {
		unix.Close(connFD)
		return -1, "", err
	}
	return connFD, sockaddrString(sa), nil
}

func resolveSockaddr(addr string) (unix.Sockaddr, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, fmt.Errorf("aio: cannot resolve %q", addr)
		}
		ip = ips[0]
	}
	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return nil, err
	}
	if ip4 := ip.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = p
		copy(sa.Addr[:], ip4)
		return &sa, nil
	}
	var sa unix.SockaddrInet6
	sa.Port = p
	copy(sa.Addr[:], ip.To16())
	return &sa, nil
}
