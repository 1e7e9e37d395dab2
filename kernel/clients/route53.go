package clients

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/edgeops/converge/kernel/model"
	"github.com/pkg/errors"
)

// Route53DNS implements DNSAPI against an AWS Route53 hosted zone.
// Credentials come from the standard AWS chain (env, profile, instance role).
type Route53DNS struct {
	svc    *route53.Route53
	zoneId string
	zone   string
}

func NewRoute53DNS(cfg model.DnsConfig) (*Route53DNS, error) {
	if cfg.ZoneId == "" || cfg.Zone == "" {
		return nil, errors.New("dns.zone and dns.zone_id are required for the route53 provider")
	}
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create aws session")
	}
	return &Route53DNS{
		svc:    route53.New(sess),
		zoneId: cfg.ZoneId,
		zone:   strings.TrimSuffix(cfg.Zone, "."),
	}, nil
}

// fqdn maps a relative record name to the zone. "@" addresses the apex.
func (d *Route53DNS) fqdn(name string) string {
	if name == "@" || name == "" {
		return d.zone + "."
	}
	return name + "." + d.zone + "."
}

func (d *Route53DNS) relative(fqdn string) string {
	trimmed := strings.TrimSuffix(fqdn, ".")
	if trimmed == d.zone {
		return "@"
	}
	return strings.TrimSuffix(trimmed, "."+d.zone)
}

func (d *Route53DNS) Lookup(ctx context.Context, name string) (*DnsRecord, error) {
	fqdn := d.fqdn(name)
	out, err := d.svc.ListResourceRecordSetsWithContext(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(d.zoneId),
		StartRecordName: aws.String(fqdn),
		MaxItems:        aws.String("5"),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "route53 list failed for [%s]", fqdn)
	}
	for _, rrset := range out.ResourceRecordSets {
		if aws.StringValue(rrset.Name) != fqdn {
			continue
		}
		if rec := d.toRecord(rrset); rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

func (d *Route53DNS) List(ctx context.Context) ([]DnsRecord, error) {
	var records []DnsRecord
	err := d.svc.ListResourceRecordSetsPagesWithContext(ctx,
		&route53.ListResourceRecordSetsInput{HostedZoneId: aws.String(d.zoneId)},
		func(page *route53.ListResourceRecordSetsOutput, last bool) bool {
			for _, rrset := range page.ResourceRecordSets {
				if rec := d.toRecord(rrset); rec != nil {
					records = append(records, *rec)
				}
			}
			return true
		})
	if err != nil {
		return nil, errors.Wrap(err, "route53 list failed")
	}
	return records, nil
}

func (d *Route53DNS) Upsert(ctx context.Context, record DnsRecord) error {
	return d.change(ctx, route53.ChangeActionUpsert, record)
}

func (d *Route53DNS) Delete(ctx context.Context, record DnsRecord) error {
	return d.change(ctx, route53.ChangeActionDelete, record)
}

func (d *Route53DNS) change(ctx context.Context, action string, record DnsRecord) error {
	value := record.Value
	if record.Type == "TXT" && !strings.HasPrefix(value, `"`) {
		value = `"` + value + `"`
	}
	_, err := d.svc.ChangeResourceRecordSetsWithContext(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(d.zoneId),
		ChangeBatch: &route53.ChangeBatch{
			Changes: []*route53.Change{{
				Action: aws.String(action),
				ResourceRecordSet: &route53.ResourceRecordSet{
					Name: aws.String(d.fqdn(record.Name)),
					Type: aws.String(record.Type),
					TTL:  aws.Int64(int64(record.TTL)),
					ResourceRecords: []*route53.ResourceRecord{
						{Value: aws.String(value)},
					},
				},
			}},
		},
	})
	return errors.Wrapf(err, "route53 %s failed for [%s]", strings.ToLower(action), record.Name)
}

var managedRecordTypes = map[string]bool{
	"A": true, "AAAA": true, "CNAME": true, "NS": true, "TXT": true,
}

func (d *Route53DNS) toRecord(rrset *route53.ResourceRecordSet) *DnsRecord {
	rtype := aws.StringValue(rrset.Type)
	if !managedRecordTypes[rtype] || len(rrset.ResourceRecords) == 0 {
		return nil
	}
	value := aws.StringValue(rrset.ResourceRecords[0].Value)
	if rtype == "TXT" {
		value = strings.Trim(value, `"`)
	}
	if rtype == "CNAME" || rtype == "NS" {
		value = strings.TrimSuffix(value, ".")
	}
	return &DnsRecord{
		Name:  d.relative(aws.StringValue(rrset.Name)),
		Type:  rtype,
		Value: value,
		TTL:   int(aws.Int64Value(rrset.TTL)),
	}
}
