// Package probe reads the live observed state of declared resources. Probing
// never mutates anything; every collaborator call here is read-only.
package probe

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/edgeops/converge/kernel/clients"
	"github.com/edgeops/converge/kernel/model"
	"github.com/edgeops/converge/kernel/routeconf"
	"github.com/michaelquigley/pfxlog"
)

type Prober struct {
	clients clients.Set
	cfg     model.ProbeConfig
	proxy   model.ProxyConfig
}

func NewProber(set clients.Set, cfg *model.Config) *Prober {
	return &Prober{clients: set, cfg: cfg.Probe, proxy: cfg.Proxy}
}

// Observe gathers the live state of one declared resource. Failures are folded
// into the observation (Unreachable presence plus error kind) rather than
// returned, so one dead probe never aborts the phase.
func (p *Prober) Observe(ctx context.Context, decl *model.Declaration) model.Observation {
	id := decl.Id()
	var obs model.Observation
	switch spec := decl.Spec.(type) {
	case *model.DnsRecordSpec:
		obs = p.observeDnsRecord(ctx, id)
	case *model.ServiceUnitSpec:
		obs = p.observeServiceUnit(ctx, id)
	case *model.ProxyRouteSpec:
		obs = p.observeProxyRoute(ctx, id, spec)
	case *model.CertificateBindingSpec:
		obs = p.observeCertificateBinding(id, spec)
	case *model.EnvFileSpec:
		obs = p.observeEnvFile(id, spec)
	default:
		obs = model.Unreachable(id, model.ProbeLocalInspectionFailed,
			fmt.Errorf("no probe for resource kind '%s'", id.Kind))
	}
	pfxlog.Logger().WithField("resource", id.String()).
		Debugf("observed presence=%s", obs.Presence)
	return obs
}

// networkProbe runs fn with a bounded timeout, retrying with linear backoff.
// Local inspections never come through here.
func (p *Prober) networkProbe(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= p.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * p.cfg.Backoff()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout())
		err = fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}

func (p *Prober) observeDnsRecord(ctx context.Context, id model.ResourceId) model.Observation {
	var record *clients.DnsRecord
	err := p.networkProbe(ctx, func(ctx context.Context) error {
		var lookupErr error
		record, lookupErr = p.clients.Dns.Lookup(ctx, id.Name)
		return lookupErr
	})
	if err != nil {
		return model.Unreachable(id, model.ProbeUnreachable, err)
	}
	if record == nil {
		return model.Absent(id)
	}
	return model.Present(id, map[string]string{
		"type":  record.Type,
		"value": record.Value,
		"ttl":   strconv.Itoa(record.TTL),
	})
}

func (p *Prober) observeServiceUnit(ctx context.Context, id model.ResourceId) model.Observation {
	out, err := p.clients.Host.Exec(ctx,
		fmt.Sprintf("systemctl show %s.service --property=LoadState,ActiveState,UnitFileState", id.Name))
	if err != nil {
		return model.Unreachable(id, model.ProbeLocalInspectionFailed, err)
	}
	props := parseProperties(out)
	if props["LoadState"] == "not-found" {
		return model.Absent(id)
	}
	return model.Present(id, map[string]string{
		"running": strconv.FormatBool(props["ActiveState"] == "active"),
		"enabled": strconv.FormatBool(props["UnitFileState"] == "enabled"),
	})
}

func (p *Prober) observeProxyRoute(ctx context.Context, id model.ResourceId, spec *model.ProxyRouteSpec) model.Observation {
	data, err := p.clients.Host.ReadFile(routeconf.Path(p.proxy, id.Name))
	if os.IsNotExist(err) {
		return model.Absent(id)
	}
	if err != nil {
		return model.Unreachable(id, model.ProbeLocalInspectionFailed, err)
	}

	attrs := routeconf.Parse(data)
	attrs["healthy"] = "false"
	if spec.HealthURL == "" {
		attrs["healthy"] = "true"
	} else {
		healthErr := p.networkProbe(ctx, func(ctx context.Context) error {
			return p.clients.Health.Check(ctx, spec.HealthURL, spec.HealthExpr, spec.HealthWant)
		})
		if healthErr == nil {
			attrs["healthy"] = "true"
		}
	}
	return model.Present(id, attrs)
}

func (p *Prober) observeCertificateBinding(id model.ResourceId, spec *model.CertificateBindingSpec) model.Observation {
	if _, err := p.clients.Host.Stat(spec.KeyPath); err != nil {
		if os.IsNotExist(err) {
			return model.Absent(id)
		}
		return model.Unreachable(id, model.ProbeLocalInspectionFailed, err)
	}
	data, err := p.clients.Host.ReadFile(spec.CertPath)
	if os.IsNotExist(err) {
		return model.Absent(id)
	}
	if err != nil {
		return model.Unreachable(id, model.ProbeLocalInspectionFailed, err)
	}
	domains, err := certificateDomains(data)
	if err != nil {
		return model.Unreachable(id, model.ProbeLocalInspectionFailed, err)
	}
	return model.Present(id, map[string]string{
		"domains":   domains,
		"cert_path": spec.CertPath,
		"key_path":  spec.KeyPath,
	})
}

func (p *Prober) observeEnvFile(id model.ResourceId, spec *model.EnvFileSpec) model.Observation {
	data, err := p.clients.Host.ReadFile(spec.Path)
	if os.IsNotExist(err) {
		return model.Absent(id)
	}
	if err != nil {
		return model.Unreachable(id, model.ProbeLocalInspectionFailed, err)
	}
	info, err := p.clients.Host.Stat(spec.Path)
	if err != nil {
		return model.Unreachable(id, model.ProbeLocalInspectionFailed, err)
	}
	return model.Present(id, map[string]string{
		"checksum": model.ChecksumOf(data),
		"mode":     fmt.Sprintf("%04o", info.Mode().Perm()),
	})
}

func parseProperties(out string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		if key, value, found := strings.Cut(strings.TrimSpace(line), "="); found {
			props[key] = value
		}
	}
	return props
}

func certificateDomains(pemData []byte) (string, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return "", fmt.Errorf("no pem block in certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", err
	}
	domains := make([]string, len(cert.DNSNames))
	for i, d := range cert.DNSNames {
		domains[i] = strings.ToLower(d)
	}
	sort.Strings(domains)
	return strings.Join(domains, ","), nil
}
