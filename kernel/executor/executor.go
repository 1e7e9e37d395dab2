// Package executor applies planned actions to the live environment. Creates
// and updates are idempotent per resource type; deletes of already-absent
// resources converge without touching the collaborator.
package executor

import (
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/edgeops/converge/kernel/clients"
	"github.com/edgeops/converge/kernel/model"
	"github.com/edgeops/converge/kernel/routeconf"
	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/foundation/v2/stringz"
	"github.com/pkg/errors"
)

// Result is the outcome of one apply, including how many attempts it took.
type Result struct {
	Id        model.ResourceId
	Op        model.Op
	Attempts  int
	Err       *model.ExecError
	Cancelled bool
}

func (r Result) Converged() bool { return r.Err == nil && !r.Cancelled }

type Executor struct {
	clients clients.Set
	cfg     model.ExecuteConfig
	proxy   model.ProxyConfig

	// One handle per resource type: the DNS API session, the service-manager
	// connection and the proxy config dir are each single-writer.
	handleMu map[model.Kind]*sync.Mutex
}

func NewExecutor(set clients.Set, cfg *model.Config) *Executor {
	handles := make(map[model.Kind]*sync.Mutex)
	for _, kind := range model.RegisteredKinds() {
		handles[kind] = &sync.Mutex{}
	}
	return &Executor{
		clients:  set,
		cfg:      cfg.Execute,
		proxy:    cfg.Proxy,
		handleMu: handles,
	}
}

// Apply executes one action. Transient failures are retried with exponential
// backoff up to the configured bound; permanent failures surface immediately.
func (e *Executor) Apply(ctx context.Context, action model.Action) Result {
	result := Result{Id: action.Id, Op: action.Op}
	if !action.Mutates() {
		return result
	}

	mu := e.handle(action.Id.Kind)
	mu.Lock()
	defer mu.Unlock()

	log := pfxlog.Logger().WithField("resource", action.Id.String())
	backoff := e.cfg.BackoffBase()
	for attempt := 1; attempt <= e.cfg.Retries+1; attempt++ {
		result.Attempts = attempt
		err := e.applyOnce(ctx, action)
		if err == nil {
			log.Infof("%s applied (attempt %d)", action.Op, attempt)
			return result
		}
		execErr := classify(action.Id, err)
		result.Err = execErr
		if execErr.Kind == model.ExecPermanent {
			log.WithError(err).Errorf("%s failed permanently", action.Op)
			return result
		}
		if attempt == e.cfg.Retries+1 {
			log.WithError(err).Errorf("%s failed after %d attempts", action.Op, attempt)
			return result
		}
		log.WithError(err).Warnf("%s failed transiently, backing off %s", action.Op, backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			result.Err = model.Transientf(action.Id, "cancelled during backoff: %v", ctx.Err())
			return result
		}
		if backoff *= 2; backoff > e.cfg.BackoffCap() {
			backoff = e.cfg.BackoffCap()
		}
	}
	return result
}

func (e *Executor) handle(kind model.Kind) *sync.Mutex {
	if mu, ok := e.handleMu[kind]; ok {
		return mu
	}
	// Unregistered kinds only appear in tests; fall back to a fresh lock.
	return &sync.Mutex{}
}

func (e *Executor) applyOnce(ctx context.Context, action model.Action) error {
	switch action.Id.Kind {
	case model.KindDnsRecord:
		return e.applyDnsRecord(ctx, action)
	case model.KindServiceUnit:
		return e.applyServiceUnit(ctx, action)
	case model.KindProxyRoute:
		return e.applyProxyRoute(ctx, action)
	case model.KindCertificateBinding:
		return e.applyCertificateBinding(action)
	case model.KindEnvFile:
		return e.applyEnvFile(action)
	default:
		return model.Permanentf(action.Id, "no applier for resource kind '%s'", action.Id.Kind)
	}
}

func (e *Executor) applyDnsRecord(ctx context.Context, action model.Action) error {
	if action.Op == model.OpDelete {
		if action.Prior.Presence != model.PresencePresent {
			return nil
		}
		ttl, _ := strconv.Atoi(action.Prior.Attr("ttl"))
		return e.clients.Dns.Delete(ctx, clients.DnsRecord{
			Name:  action.Id.Name,
			Type:  action.Prior.Attr("type"),
			Value: action.Prior.Attr("value"),
			TTL:   ttl,
		})
	}

	spec := action.Target.(*model.DnsRecordSpec)
	// Upsert keeps create and update idempotent at the provider level. A
	// record-type change needs the old rrset removed first.
	if action.Prior.Presence == model.PresencePresent && action.Prior.Attr("type") != spec.RecordType {
		ttl, _ := strconv.Atoi(action.Prior.Attr("ttl"))
		if err := e.clients.Dns.Delete(ctx, clients.DnsRecord{
			Name:  action.Id.Name,
			Type:  action.Prior.Attr("type"),
			Value: action.Prior.Attr("value"),
			TTL:   ttl,
		}); err != nil {
			return err
		}
	}
	return e.clients.Dns.Upsert(ctx, clients.DnsRecord{
		Name:  action.Id.Name,
		Type:  spec.RecordType,
		Value: spec.Value,
		TTL:   spec.TTL,
	})
}

func (e *Executor) applyServiceUnit(ctx context.Context, action model.Action) error {
	if action.Op == model.OpDelete {
		return nil
	}
	if action.Op == model.OpCreate {
		// Unit files are installed by the environment, not synthesized here.
		return model.Permanentf(action.Id, "unit '%s' is not installed on the host", action.Id.Name)
	}

	spec := action.Target.(*model.ServiceUnitSpec)
	unit := action.Id.Name + ".service"

	if action.Prior.Attr("enabled") != strconv.FormatBool(spec.Enabled) {
		verb := "disable"
		if spec.Enabled {
			verb = "enable"
		}
		if out, err := e.clients.Host.Exec(ctx, "systemctl "+verb+" "+unit); err != nil {
			return errors.Wrapf(err, "systemctl %s %s: %s", verb, unit, out)
		}
	}
	if action.Prior.Attr("running") != strconv.FormatBool(spec.Running) {
		verb := "stop"
		if spec.Running {
			verb = "start"
		}
		if out, err := e.clients.Host.Exec(ctx, "systemctl "+verb+" "+unit); err != nil {
			return errors.Wrapf(err, "systemctl %s %s: %s", verb, unit, out)
		}
	}
	return nil
}

func (e *Executor) applyProxyRoute(ctx context.Context, action model.Action) error {
	path := routeconf.Path(e.proxy, action.Id.Name)
	if action.Op == model.OpDelete {
		if action.Prior.Presence != model.PresencePresent {
			return nil
		}
		if err := e.clients.Host.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return e.reloadProxy(ctx)
	}

	spec := action.Target.(*model.ProxyRouteSpec)
	if err := e.clients.Host.WriteFile(path, routeconf.Render(spec), 0o644); err != nil {
		return err
	}
	return e.reloadProxy(ctx)
}

func (e *Executor) reloadProxy(ctx context.Context) error {
	if out, err := e.clients.Host.Exec(ctx, e.proxy.ReloadCommand); err != nil {
		return errors.Wrapf(err, "proxy reload: %s", out)
	}
	return nil
}

func (e *Executor) applyCertificateBinding(action model.Action) error {
	if action.Op == model.OpDelete {
		return nil
	}
	// Issuance is an external concern. The binding converges only once the
	// issued material is in place; until then this is a terminal failure the
	// operator resolves outside the reconciler.
	return model.Permanentf(action.Id, "certificate material for '%s' is not in place; issuance is external", action.Id.Name)
}

func (e *Executor) applyEnvFile(action model.Action) error {
	spec, _ := action.Target.(*model.EnvFileSpec)
	if action.Op == model.OpDelete {
		if action.Prior.Presence != model.PresencePresent {
			return nil
		}
		if spec == nil {
			// The observation carries only checksum and mode; without the
			// declared spec there is no path to remove.
			return model.Permanentf(action.Id, "env file '%s' has no declared path to delete", action.Id.Name)
		}
		if err := e.clients.Host.Remove(spec.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	mode, err := strconv.ParseUint(spec.Mode, 8, 32)
	if err != nil {
		return model.Permanentf(action.Id, "bad mode '%s'", spec.Mode)
	}
	return e.clients.Host.WriteFile(spec.Path, []byte(spec.Render()), os.FileMode(mode))
}

var transientAwsCodes = []string{
	"Throttling", "ThrottlingException", "RequestError", "RequestTimeout",
	"ServiceUnavailable", "PriorRequestNotComplete", "InternalError",
}

// classify splits apply failures into retryable and terminal. Permission and
// shape problems never heal on retry; network and throttling problems might.
func classify(id model.ResourceId, err error) *model.ExecError {
	var execErr *model.ExecError
	if errors.As(err, &execErr) {
		return execErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &model.ExecError{Id: id, Kind: model.ExecTransient, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &model.ExecError{Id: id, Kind: model.ExecTransient, Cause: err}
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) && stringz.Contains(transientAwsCodes, awsErr.Code()) {
		return &model.ExecError{Id: id, Kind: model.ExecTransient, Cause: err}
	}
	return &model.ExecError{Id: id, Kind: model.ExecPermanent, Cause: err}
}
