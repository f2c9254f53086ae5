package httpapi

import (
	"net/http"
	"strings"
)

const (
	schemeHTTP           = "http"
	schemeHTTPS          = "https"
	headerForwardedProto = "X-Forwarded-Proto"
)

func normalizeBaseURL(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.TrimRight(trimmed, "/")
}

func joinBaseURL(baseURL string, path string) string {
	normalizedBaseURL := normalizeBaseURL(baseURL)
	if normalizedBaseURL == "" {
		return path
	}
	if path == "" || path == "/" {
		return normalizedBaseURL + "/"
	}
	if strings.HasPrefix(path, "/") {
		return normalizedBaseURL + path
	}
	return normalizedBaseURL + "/" + path
}

// requestOrigin is scheme://host of request, honouring a proxy's X-Forwarded-Proto.
func requestOrigin(request *http.Request) string {
	scheme := schemeHTTP
	if request.TLS != nil {
		scheme = schemeHTTPS
	}
	if forwarded := strings.ToLower(strings.TrimSpace(request.Header.Get(headerForwardedProto))); forwarded == schemeHTTP || forwarded == schemeHTTPS {
		scheme = forwarded
	}
	return scheme + "://" + request.Host
}
