package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dunglas/httpsfv"
	"golang.org/x/mod/semver"
)

// ClientHeader identifies the storefront build making the request.
// Format: RFC 8941 Dictionary, e.g.
//
//	Storefront-Client: name="webshop", version="1.4.2"
const ClientHeader = "Storefront-Client"

// ClientInfo is the parsed Storefront-Client header.
type ClientInfo struct {
	Name    string
	Version string
}

// ParseClientHeader extracts name and version from a Storefront-Client
// header value.
func ParseClientHeader(header string) (*ClientInfo, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("empty %s header", ClientHeader)
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return nil, fmt.Errorf("invalid %s header: %w", ClientHeader, err)
	}

	info := &ClientInfo{}
	if name, ok := dictString(dict, "name"); ok {
		info.Name = name
	}
	version, ok := dictString(dict, "version")
	if !ok {
		return nil, fmt.Errorf("version key not found in %s header", ClientHeader)
	}
	info.Version = version
	return info, nil
}

func dictString(dict *httpsfv.Dictionary, key string) (string, bool) {
	member, ok := dict.Get(key)
	if !ok {
		return "", false
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", false
	}
	s, ok := item.Value.(string)
	return s, ok
}

// ClientGate returns middleware rejecting storefront builds older than
// minVersion with 426 Upgrade Required. Requests without the header pass
// through: curl and health checks are not storefront builds. An empty
// minVersion disables the gate entirely.
func ClientGate(minVersion string, logger *slog.Logger) func(http.Handler) http.Handler {
	min := canonical(minVersion)
	return func(next http.Handler) http.Handler {
		if min == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(ClientHeader)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := ParseClientHeader(header)
			if err != nil {
				logger.Debug("unparseable client header",
					slog.String("header", header),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if v := canonical(info.Version); v != "" && semver.Compare(v, min) < 0 {
				logger.Info("stale storefront build rejected",
					slog.String("client", info.Name),
					slog.String("version", info.Version),
					slog.String("min_version", minVersion),
				)
				http.Error(w, "storefront build too old, please reload", http.StatusUpgradeRequired)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// canonical normalizes "1.4.2" to the "v1.4.2" form semver.Compare expects.
// Returns "" for values that are not semantic versions.
func canonical(version string) string {
	if version == "" {
		return ""
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		return ""
	}
	return version
}
