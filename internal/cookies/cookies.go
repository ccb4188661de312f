// Package cookies parses and serializes browser cookie jars in the Netscape
// cookie file format and the raw "name=value; name=value" header format.
// The parsed jar is what the RPC client sends as the Cookie header.
package cookies

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Cookie is a single browser cookie record. The field set mirrors the seven
// columns of the Netscape cookie file format.
type Cookie struct {
	Domain            string `json:"domain"`
	IncludeSubdomains bool   `json:"include_subdomains"`
	Path              string `json:"path"`
	Secure            bool   `json:"secure"`
	ExpiresAt         int64  `json:"expires_at"`
	Name              string `json:"name"`
	Value             string `json:"value"`
}

// ErrNoCookies is returned when parsing yields an empty jar.
var ErrNoCookies = errors.New("cookies: no valid cookies found")

// httpOnlyPrefix marks cookies exported by browsers as HttpOnly. The prefix
// is metadata, not part of the domain.
const httpOnlyPrefix = "#HttpOnly_"

// ParseNetscape parses a Netscape-format cookie file (the format produced by
// browser cookie exporters and curl's cookie jar). Lines that are comments,
// blank, or malformed are skipped rather than failing the whole file; only a
// file with zero usable cookies is an error.
func ParseNetscape(data string) ([]Cookie, error) {
	var jar []Cookie
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		name := fields[5]
		if name == "" {
			continue
		}

		expiresAt, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		if err != nil {
			continue
		}

		jar = append(jar, Cookie{
			Domain:            fields[0],
			IncludeSubdomains: strings.EqualFold(fields[1], "TRUE"),
			Path:              fields[2],
			Secure:            strings.EqualFold(fields[3], "TRUE"),
			ExpiresAt:         expiresAt,
			Name:              name,
			Value:             fields[6],
		})
	}
	if len(jar) == 0 {
		return nil, ErrNoCookies
	}
	return jar, nil
}

// ParseString parses a pasted "name=value; name=value" cookie string, the
// format shown in browser devtools. Parsed cookies get session-cookie
// defaults for the fields the header format does not carry.
func ParseString(data string) ([]Cookie, error) {
	var jar []Cookie
	for _, pair := range strings.Split(data, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		jar = append(jar, Cookie{
			Domain:            ".google.com",
			IncludeSubdomains: true,
			Path:              "/",
			Secure:            true,
			ExpiresAt:         0,
			Name:              name,
			Value:             strings.TrimSpace(value),
		})
	}
	if len(jar) == 0 {
		return nil, ErrNoCookies
	}
	return jar, nil
}

// Header renders the jar as a Cookie request header value.
func Header(jar []Cookie) string {
	pairs := make([]string, 0, len(jar))
	for _, c := range jar {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// SerializeNetscape renders the jar back into the Netscape cookie file
// format, one cookie per line.
func SerializeNetscape(jar []Cookie) string {
	var sb strings.Builder
	sb.WriteString("# Netscape HTTP Cookie File\n")
	for _, c := range jar {
		fmt.Fprintf(&sb, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			c.Domain,
			netscapeBool(c.IncludeSubdomains),
			c.Path,
			netscapeBool(c.Secure),
			c.ExpiresAt,
			c.Name,
			c.Value,
		)
	}
	return sb.String()
}

func netscapeBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
