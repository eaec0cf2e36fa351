package server

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/yoe/dvswitch/errors"
)

// Listen creates a non-blocking listening socket bound to addr
// ("host:port", host may be empty for all interfaces). IPv4/IPv6 are
// chosen based on what addr resolves to.
func Listen(addr string) (int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return -1, errors.WrapInvalid(err, "server", "Listen", "parse listen address")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return -1, errors.WrapInvalid(err, "server", "Listen", "parse listen port")
	}

	var ip net.IP
	switch host {
	case "":
		ip = net.IPv4zero
	default:
		ip = net.ParseIP(host)
		if ip == nil {
			addrs, lookupErr := net.LookupIP(host)
			if lookupErr != nil || len(addrs) == 0 {
				return -1, errors.WrapInvalid(errors.ErrInvalidConfig, "server", "Listen", "resolve listen host")
			}
			ip = addrs[0]
		}
	}

	domain := unix.AF_INET
	if ip.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, errors.WrapFatal(err, "server", "Listen", "create socket")
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, errors.WrapFatal(err, "server", "Listen", "set SO_REUSEADDR")
	}

	var sa unix.Sockaddr
	if domain == unix.AF_INET {
		addr4 := &unix.SockaddrInet4{Port: port}
		copy(addr4.Addr[:], ip.To4())
		sa = addr4
	} else {
		addr6 := &unix.SockaddrInet6{Port: port}
		copy(addr6.Addr[:], ip.To16())
		sa = addr6
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, errors.WrapFatal(err, "server", "Listen", "bind socket")
	}

	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return -1, errors.WrapFatal(err, "server", "Listen", "listen on socket")
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, errors.WrapFatal(err, "server", "Listen", "set listener non-blocking")
	}

	return fd, nil
}

// Accept accepts one pending connection on a non-blocking listener,
// returning the new connection's fd already set non-blocking. Returns
// unix.EWOULDBLOCK/EAGAIN when no connection is currently pending, which
// is not an error worth logging.
func Accept(listenFD int) (int, error) {
	fd, _, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK)
	if err != nil {
		return -1, err
	}
	return fd, nil
}
