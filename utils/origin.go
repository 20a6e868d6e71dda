package utils

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const androidAppScheme = "android-app"

// ParseOrigin validates raw as an absolute URI and returns it parsed
func ParseOrigin(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid origin %q: scheme and host are required", raw)
	}
	return u, nil
}

// IsAppURI reports whether raw names an installed application rather than a web origin
func IsAppURI(raw string) bool {
	return strings.HasPrefix(raw, androidAppScheme+"://")
}

// TopPrivateDomainAndScheme reduces a web URI to scheme://eTLD+1. Hosts without a
// registrable domain (IP literals, localhost) are kept as they are.
func TopPrivateDomainAndScheme(raw string) (string, error) {
	u, err := ParseOrigin(raw)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if net.ParseIP(host) != nil {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		return u.Scheme + "://" + host, nil
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		site = host
	}
	return u.Scheme + "://" + site, nil
}

// BaseURI strips path, query and fragment, keeping scheme://host[:port]
func BaseURI(raw string) (string, error) {
	u, err := ParseOrigin(raw)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

// JoinOriginPath resolves an absolute path against a reporting origin
func JoinOriginPath(origin, path string) (string, error) {
	base, err := BaseURI(origin)
	if err != nil {
		return "", err
	}
	return base + "/" + strings.TrimPrefix(path, "/"), nil
}
