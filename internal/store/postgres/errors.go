package postgres

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// classifyErr tags connectivity failures with domain.ErrStoreUnavailable so
// callers can tell an unreachable database apart from a query bug. Every
// other error passes through unchanged, including the domain sentinels the
// stores wrap themselves.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if isConnectivityErr(err) {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}

// isConnectivityErr reports whether the error chain indicates the server
// could not be reached: dial failures, refused or reset connections,
// broken pipes, and network timeouts. pgx wraps these in its connect and
// I/O errors, so unwrapping to the net and syscall layers covers both the
// initial connect and a connection dropped mid-query.
func isConnectivityErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
