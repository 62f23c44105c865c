package transport

import (
	"encoding/base64"
	"net"
	"net/url"
	"os"
	"strings"
)

// endpoint parses an Azure-storage addr string used by the azblob/azqueue/
// aztable drivers' Bind/Connect: scheme://[account[:key]@]host[/account]
// [?sas=...].
type endpoint struct {
	URL     *url.URL
	Account string
	Key     string
	IsAzure bool
}

// parseSAS extracts a single base64-encoded SAS token from the URL query
// under the given key, decoding it back to the raw query string form.
func parseSAS(u *url.URL, key string) (string, bool) {
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", false
	}
	encoded := query.Get(key)
	if encoded == "" {
		return "", false
	}
	sas, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(sas), true
}

// newEndpoint creates an endpoint from a parsed URL, resolving account/key
// from userinfo, host, path, or environment, in that order of precedence.
func newEndpoint(u *url.URL) *endpoint {
	ep := &endpoint{URL: u}

	hostOnly := u.Host
	if h, _, err := net.SplitHostPort(u.Host); err == nil {
		hostOnly = h
	}
	ep.IsAzure = strings.HasSuffix(strings.ToLower(hostOnly), ".core.windows.net")

	if u.User.Username() != "" {
		ep.Account = u.User.Username()
	} else if ep.IsAzure {
		ep.Account = strings.Split(hostOnly, ".")[0]
	} else if path := strings.Trim(u.Path, "/"); path != "" {
		ep.Account = strings.Split(path, "/")[0]
	}
	if ep.Account == "" {
		ep.Account = os.Getenv("AZURE_STORAGE_ACCOUNT")
	}
	if key, ok := u.User.Password(); ok {
		ep.Key = key
	} else {
		ep.Key = os.Getenv("AZURE_STORAGE_ACCOUNT_KEY")
	}
	return ep
}

// ServiceURL returns the base URL for the Azure Storage service.
func (e *endpoint) ServiceURL() string {
	if e.IsAzure {
		return e.URL.Scheme + "://" + e.URL.Host
	}
	return e.URL.Scheme + "://" + e.URL.Host + "/" + e.Account
}

// JoinURL joins the base service URL with a resource name and optional SAS.
func (e *endpoint) JoinURL(resource, sas string) string {
	baseURL := e.ServiceURL()
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u := baseURL + resource
	if sas != "" {
		if !strings.HasPrefix(sas, "?") {
			u += "?"
		}
		u += sas
	}
	return u
}

// resourceName derives the container/queue/table name a Bind or Connect
// addr designates: the first path segment after the account (path-style
// addressing) or, failing that, "spdnet".
func resourceName(u *url.URL, account string) string {
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "spdnet"
	}
	parts := strings.Split(path, "/")
	if len(parts) > 0 && parts[0] == account {
		parts = parts[1:]
	}
	if len(parts) == 0 || parts[0] == "" {
		return "spdnet"
	}
	return parts[0]
}
