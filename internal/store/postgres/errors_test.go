package postgres

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

func TestClassifyErrTagsConnectivityFailures(t *testing.T) {
	refused := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
	}

	tests := []struct {
		name string
		err  error
	}{
		{
			name: "dial refused wrapped by driver",
			err:  fmt.Errorf("failed to connect to `host=127.0.0.1`: %w", refused),
		},
		{
			name: "connection reset mid query",
			err:  fmt.Errorf("read tcp: %w", syscall.ECONNRESET),
		},
		{
			name: "broken pipe",
			err:  fmt.Errorf("write tcp: %w", syscall.EPIPE),
		},
		{
			name: "dns failure",
			err:  &net.DNSError{Err: "no such host", Name: "db.internal"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr(tt.err)
			if !errors.Is(got, domain.ErrStoreUnavailable) {
				t.Errorf("classifyErr(%v) not tagged store-unavailable", tt.err)
			}
			// The original cause must stay reachable through the chain.
			if !errors.Is(got, tt.err) {
				t.Errorf("classifyErr dropped the underlying error: %v", got)
			}
		})
	}
}

func TestClassifyErrPassesOtherErrorsThrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "nil", err: nil},
		{name: "no rows", err: pgx.ErrNoRows},
		{name: "domain sentinel", err: domain.ErrAlreadyExists},
		{name: "plain query bug", err: errors.New(`relation "positions" does not exist`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr(tt.err)
			if got != tt.err {
				t.Errorf("classifyErr(%v) = %v, want unchanged", tt.err, got)
			}
			if errors.Is(got, domain.ErrStoreUnavailable) {
				t.Errorf("classifyErr(%v) wrongly tagged store-unavailable", tt.err)
			}
		})
	}
}
