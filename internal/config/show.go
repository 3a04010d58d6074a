package config

import (
	"fmt"
	"io"
	"strings"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after all four override layers
// (defaults -> file -> env -> CLI) have been applied.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (%s)\n\n", r.Path)

	a := &r.Auth
	ew.printf("[auth]\n")
	ew.printf("  provider      = %q\n", a.Provider)
	ew.printf("  tenant_id     = %q\n", a.TenantID)
	ew.printf("  client_id     = %q\n", a.ClientID)
	ew.printf("  authority     = %q\n", a.Authority)
	ew.printf("  scopes        = [%s]\n", quoteList(a.Scopes))
	ew.printf("  domain_suffix = %q\n", a.DomainSuffix)
	ew.printf("  flow          = %q\n", a.Flow)

	if a.Issuer != "" {
		ew.printf("  issuer        = %q\n", a.Issuer)
	}

	if a.DeviceAuthURL != "" {
		ew.printf("  device_auth_url = %q\n", a.DeviceAuthURL)
		ew.printf("  token_url       = %q\n", a.TokenURL)
	}

	d := &r.Database
	ew.printf("\n[database]\n")
	ew.printf("  server            = %q\n", d.Server)
	ew.printf("  database          = %q\n", d.Database)
	ew.printf("  driver            = %q\n", d.Driver)
	ew.printf("  fallback_driver   = %q\n", d.FallbackDriver)
	ew.printf("  max_open_conns    = %d\n", d.MaxOpenConns)
	ew.printf("  conn_max_lifetime = %q\n", d.ConnMaxLifetime)

	ew.printf("\n[cache]\n")
	ew.printf("  location = %q\n", r.Cache.Location)

	ew.printf("\n[logging]\n")
	ew.printf("  log_level = %q\n", r.Logging.LogLevel)

	ew.printf("\n[output]\n")
	ew.printf("  format = %q\n", r.Output.Format)

	if r.ShortName != "" {
		ew.printf("\n# shortname override: %q\n", r.ShortName)
	}

	return ew.err
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}

	return strings.Join(quoted, ", ")
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
