// Package validate normalizes and SSRF-screens URL batches before admission.
package validate

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Report is the outcome of validating a raw batch. Warnings never block;
// any entry in Errors rejects the whole batch and no job is created.
type Report struct {
	Valid    bool
	URLs     []string
	Errors   []string
	Warnings []string
}

// Resolver looks up the addresses a host actually resolves to. Screening the
// resolved addresses, not the literal hostname, is what closes DNS-based
// SSRF vectors.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Config bounds batch size and substitutes the resolver in tests.
type Config struct {
	MaxURLs  int
	Resolver Resolver
}

const defaultMaxURLs = 25

// Validator screens raw URL text against parse, scheme, and network rules.
type Validator struct {
	maxURLs  int
	resolver Resolver
}

// metadataHosts are cloud metadata endpoints that must never be fetched,
// regardless of how their addresses classify.
var metadataHosts = map[string]struct{}{
	"169.254.169.254":          {},
	"metadata.google.internal": {},
	"metadata.goog":            {},
}

// New constructs a Validator. A nil resolver falls back to net.DefaultResolver.
func New(cfg Config) *Validator {
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = defaultMaxURLs
	}
	if cfg.Resolver == nil {
		cfg.Resolver = net.DefaultResolver
	}
	return &Validator{maxURLs: cfg.MaxURLs, resolver: cfg.Resolver}
}

// ValidateBatch splits raw newline/comma-separated text, normalizes each
// entry, and screens it. Duplicates are deduplicated with a warning; counts
// above the cap warn but do not block.
func (v *Validator) ValidateBatch(ctx context.Context, raw string) Report {
	entries := splitBatch(raw)
	report := Report{}
	if len(entries) == 0 {
		report.Errors = append(report.Errors, "no URLs provided")
		return report
	}

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		normalized, err := Normalize(entry)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", entry, err))
			continue
		}
		if _, dup := seen[normalized]; dup {
			report.Warnings = append(report.Warnings, fmt.Sprintf("duplicate URL removed: %s", normalized))
			continue
		}
		if err := v.screen(ctx, normalized); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", normalized, err))
			continue
		}
		seen[normalized] = struct{}{}
		report.URLs = append(report.URLs, normalized)
	}

	if len(report.URLs) > v.maxURLs {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("batch has %d URLs; audits above %d may be slow", len(report.URLs), v.maxURLs))
	}
	report.Valid = len(report.Errors) == 0
	return report
}

// screen rejects URLs whose resolved addresses land in loopback, link-local,
// private, unspecified, or multicast ranges, or hit a metadata endpoint.
func (v *Validator) screen(ctx context.Context, normalized string) error {
	u, err := url.Parse(normalized)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("missing host")
	}
	if _, blocked := metadataHosts[host]; blocked {
		return fmt.Errorf("metadata endpoint is blocked")
	}

	if ip := net.ParseIP(host); ip != nil {
		if reason := classifyIP(ip); reason != "" {
			return fmt.Errorf("%s address is blocked", reason)
		}
		return nil
	}

	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve host: %w", err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("host does not resolve")
	}
	for _, addr := range addrs {
		if reason := classifyIP(addr.IP); reason != "" {
			return fmt.Errorf("host resolves to %s address %s", reason, addr.IP)
		}
	}
	return nil
}

func classifyIP(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "loopback"
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return "link-local"
	case ip.IsPrivate():
		return "private"
	case ip.IsUnspecified():
		return "unspecified"
	case ip.IsMulticast():
		return "multicast"
	default:
		return ""
	}
}

// DialGuard screens a dial target immediately before the connection is made.
// Batch screening resolves hosts once at submission time; the fetch happens
// later, follows redirects, and may resolve again, so every hop is classified
// here with the same rules. Install it on the fetch transport's dialer.
func DialGuard(_ string, address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	if _, blocked := metadataHosts[strings.ToLower(host)]; blocked {
		return fmt.Errorf("metadata endpoint is blocked")
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("dial target %q is not an IP address", host)
	}
	if reason := classifyIP(ip); reason != "" {
		return fmt.Errorf("%s address is blocked", reason)
	}
	return nil
}

// Normalize standardizes a URL: lowercases scheme and host, strips default
// ports and fragments, sorts query parameters, and requires http/https.
func Normalize(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func splitBatch(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
