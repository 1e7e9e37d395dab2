package routeconf

import (
	"strings"
	"testing"

	"github.com/edgeops/converge/kernel/model"
)

func TestRenderParse_RoundTrip(t *testing.T) {
	spec := &model.ProxyRouteSpec{
		ServerName: "web.example.com",
		Upstream:   "http://127.0.0.1:8080",
	}

	attrs := Parse(Render(spec))
	if attrs["server_name"] != spec.ServerName {
		t.Errorf("expected server_name '%s', got '%s'", spec.ServerName, attrs["server_name"])
	}
	if attrs["upstream"] != spec.Upstream {
		t.Errorf("expected upstream '%s', got '%s'", spec.Upstream, attrs["upstream"])
	}
}

func TestRender_NginxBlock(t *testing.T) {
	out := string(Render(&model.ProxyRouteSpec{
		ServerName: "web.example.com",
		Upstream:   "http://127.0.0.1:8080",
	}))
	if !strings.Contains(out, "server_name web.example.com;") {
		t.Error("expected rendered server_name directive")
	}
	if !strings.Contains(out, "proxy_pass http://127.0.0.1:8080;") {
		t.Error("expected rendered proxy_pass directive")
	}
}

func TestParse_HandEditedFile(t *testing.T) {
	// A file without markers yields no managed attrs, which diffs as drift.
	attrs := Parse([]byte("server {\n    listen 80;\n}\n"))
	if len(attrs) != 0 {
		t.Errorf("expected no attrs from unmanaged file, got %v", attrs)
	}
}

func TestPath(t *testing.T) {
	cfg := model.ProxyConfig{ConfDir: "/etc/nginx/conf.d"}
	if got := Path(cfg, "web"); got != "/etc/nginx/conf.d/web.conf" {
		t.Errorf("unexpected path '%s'", got)
	}
}
