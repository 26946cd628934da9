// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "strings"

// ResolveAPIURL picks the relay base URL for the client. An explicit APIURL
// wins; otherwise a localhost host maps to DevAPIURL and anything else to the
// production URL. The result never ends in a slash.
func ResolveAPIURL(c ClientConfig) string {
	if u := strings.TrimSpace(c.APIURL); u != "" {
		return strings.TrimRight(u, "/")
	}
	if strings.EqualFold(strings.TrimSpace(c.Host), "localhost") {
		return DevAPIURL
	}
	return strings.TrimRight(strings.TrimSpace(c.ProductionURL), "/")
}
