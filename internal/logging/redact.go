// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package logging

import (
	"net/url"
	"strings"
)

// SanitizeToken masks a bearer token for logging. Only the first and last
// four characters survive, and short tokens are hidden completely.
func SanitizeToken(token string) string {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "[REDACTED]"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeURL strips credentials and query values from a URL so that
// connection strings and signed links can be logged.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[INVALID_URL]"
	}
	if u.User != nil {
		u.User = url.User("REDACTED")
	}
	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			q.Set(k, "REDACTED")
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}
