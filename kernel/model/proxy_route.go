package model

import "fmt"

// ProxyRouteSpec implements ResourceSpec for one reverse-proxy route. The
// declaration name selects the route's config file in the proxy config
// directory; converging writes the file and reloads the proxy.
type ProxyRouteSpec struct {
	ServerName string `yaml:"server_name"`
	Upstream   string `yaml:"upstream"`
	HealthURL  string `yaml:"health_url"`
	HealthExpr string `yaml:"health_expr"`
	HealthWant string `yaml:"health_want"`
}

func (s *ProxyRouteSpec) Kind() Kind {
	return KindProxyRoute
}

func (s *ProxyRouteSpec) Validate(name string) error {
	id := ResourceId{Kind: KindProxyRoute, Name: name}
	if s.ServerName == "" {
		return NewSpecError(id, "server_name is required")
	}
	if s.Upstream == "" {
		return NewSpecError(id, "upstream is required")
	}
	if s.HealthExpr != "" && s.HealthURL == "" {
		return NewSpecError(id, "health_expr requires health_url")
	}
	return nil
}

func (s *ProxyRouteSpec) Diff(observed Observation) Op {
	if observed.Presence == PresenceAbsent {
		return OpCreate
	}
	if observed.Attr("server_name") != s.ServerName ||
		observed.Attr("upstream") != s.Upstream {
		return OpUpdate
	}
	// A config-complete route that fails its health check is re-applied.
	if s.HealthURL != "" && observed.Attr("healthy") != "true" {
		return OpUpdate
	}
	return OpNoOp
}

func (s *ProxyRouteSpec) Describe() string {
	return fmt.Sprintf("route %s -> %s", s.ServerName, s.Upstream)
}

func init() {
	RegisterResourceType(KindProxyRoute, func() ResourceSpec { return &ProxyRouteSpec{} })
}
