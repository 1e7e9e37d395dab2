// Package clients holds the external collaborators the reconciler talks to:
// the DNS provider API, the managed host (service manager, files, proxy
// config) and the proxy health endpoint. Probes and executors consume these
// interfaces only; no protocol logic lives outside this package.
package clients

import (
	"context"
	"os"
)

// DnsRecord is a provider-side record in the managed zone. Name is relative
// to the zone (e.g. "www"), not a FQDN.
type DnsRecord struct {
	Name  string
	Type  string
	Value string
	TTL   int
}

// DNSAPI is the record-management surface of the DNS provider.
type DNSAPI interface {
	// Lookup returns the record for a name, or nil if no record exists.
	Lookup(ctx context.Context, name string) (*DnsRecord, error)

	// List returns every record in the managed zone. Used by prune mode.
	List(ctx context.Context) ([]DnsRecord, error)

	Upsert(ctx context.Context, record DnsRecord) error
	Delete(ctx context.Context, record DnsRecord) error
}

// Host is the managed machine: command execution plus file operations. The
// local implementation shells out, the remote one goes over SSH/SFTP.
type Host interface {
	Exec(ctx context.Context, cmd string) (string, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, mode os.FileMode) error
	Remove(path string) error
	Stat(path string) (os.FileInfo, error)
	Close() error
}

// HealthChecker verifies a proxy route answers on its health URL.
type HealthChecker interface {
	Check(ctx context.Context, url, expr, want string) error
}

// Set bundles the collaborators for one environment.
type Set struct {
	Dns    DNSAPI
	Host   Host
	Health HealthChecker
}
