// Package routeconf renders and parses the reverse-proxy config files the
// reconciler manages. Each route owns one file in the proxy conf directory;
// marker comments at the top make the managed values recoverable on probe
// without a full nginx parser.
package routeconf

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/edgeops/converge/kernel/model"
)

const markerPrefix = "# converge:"

func Path(cfg model.ProxyConfig, name string) string {
	return filepath.Join(cfg.ConfDir, name+".conf")
}

func Render(spec *model.ProxyRouteSpec) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%sserver_name %s\n", markerPrefix, spec.ServerName)
	fmt.Fprintf(&b, "%supstream %s\n", markerPrefix, spec.Upstream)
	b.WriteString("server {\n")
	b.WriteString("    listen 80;\n")
	fmt.Fprintf(&b, "    server_name %s;\n", spec.ServerName)
	b.WriteString("    location / {\n")
	fmt.Fprintf(&b, "        proxy_pass %s;\n", spec.Upstream)
	b.WriteString("        proxy_set_header Host $host;\n")
	b.WriteString("        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return []byte(b.String())
}

// Parse recovers the managed values from a route file's marker comments.
// A hand-edited file without markers parses to empty attrs, which diffs as
// drifted and gets rewritten.
func Parse(data []byte) map[string]string {
	attrs := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, markerPrefix) {
			continue
		}
		rest := strings.TrimPrefix(line, markerPrefix)
		if key, value, found := strings.Cut(rest, " "); found {
			attrs[key] = strings.TrimSpace(value)
		}
	}
	return attrs
}
