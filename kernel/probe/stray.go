package probe

import (
	"context"
	"strconv"

	"github.com/edgeops/converge/kernel/clients"
	"github.com/edgeops/converge/kernel/model"
	"github.com/michaelquigley/pfxlog"
)

// ListStray enumerates live DNS records in the managed zone that the document
// does not declare. They feed prune mode, or Unmanaged reporting when prune
// is off. The zone's apex NS delegation is never considered stray.
//
// Only the DNS zone is enumerable as a resource collection; host-side files
// and units have no authoritative listing, so stray detection stops here.
func (p *Prober) ListStray(ctx context.Context, state *model.DesiredState) []model.Observation {
	if p.clients.Dns == nil {
		return nil
	}

	var records []clients.DnsRecord
	err := p.networkProbe(ctx, func(ctx context.Context) error {
		var listErr error
		records, listErr = p.clients.Dns.List(ctx)
		return listErr
	})
	if err != nil {
		pfxlog.Logger().WithError(err).Warn("unable to enumerate zone for stray records")
		return nil
	}

	var stray []model.Observation
	for _, record := range records {
		if record.Name == "@" && record.Type == "NS" {
			continue
		}
		id := model.ResourceId{Kind: model.KindDnsRecord, Name: record.Name}
		if _, declared := state.Lookup(id); declared {
			continue
		}
		stray = append(stray, model.Present(id, map[string]string{
			"type":  record.Type,
			"value": record.Value,
			"ttl":   strconv.Itoa(record.TTL),
		}))
	}
	return stray
}
