// Package siteorigin computes the "site" and "origin" of a registered URI.
//
// Origin is scheme + authority. Site is scheme + top-private-domain for web
// URIs, and the origin itself for app URIs (spec.md §3, §4.5). spec.md §1
// marks public-suffix extraction as "assumed available as a helper" and out
// of scope for the core; this package is the minimal stand-in the pipeline's
// rate-limit gate depends on. It is deliberately not a full Public Suffix
// List implementation — see DESIGN.md for why no pack library covers this.
package siteorigin

import (
	"errors"
	"net/url"
	"strings"
)

// ErrUnresolvable is returned when a URI cannot be parsed into a site/origin
// pair. Callers in the rate-limit gate treat this as "cannot verify" and pass
// the check open rather than fail closed (spec.md §4.8).
var ErrUnresolvable = errors.New("siteorigin: cannot resolve site/origin for uri")

// Origin returns scheme://host[:port] for uri.
func Origin(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrUnresolvable
	}

	return u.Scheme + "://" + u.Host, nil
}

// Site returns the top-private-domain-and-scheme for a web URI, or the
// origin itself for an app URI (app "sites" are just their base URI per
// spec.md §3).
func Site(uri string, isApp bool) (string, error) {
	origin, err := Origin(uri)
	if err != nil {
		return "", err
	}

	if isApp {
		return origin, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", ErrUnresolvable
	}

	registrable, err := registrableDomain(u.Hostname())
	if err != nil {
		return "", err
	}

	return u.Scheme + "://" + registrable, nil
}

// registrableDomain is a minimal, non-PSL-aware approximation: the last two
// dot-separated labels. It is wrong for multi-part public suffixes (e.g.
// "co.uk") but matches spec.md's framing of this logic as an externally
// supplied helper the core only consumes.
func registrableDomain(host string) (string, error) {
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", ErrUnresolvable
	}

	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		// Single-label host (e.g. "localhost"): treat the whole host as the
		// registrable domain rather than failing closed.
		return host, nil
	}

	return strings.Join(labels[len(labels)-2:], "."), nil
}
