//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package app

import (
	"context"
	"net"

	"conduithttp/pkg/logger"
)

func listen(ctx context.Context, addr string, reusePort bool) (net.Listener, error) {
	if reusePort {
		logger.Warn("reuse_port_unsupported", "addr", addr)
	}
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}
