package util

import (
	"net"
	"net/http"
	"time"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 10 * time.Second
)

// NewHTTPClient bounds the dial/TLS phase by connect and the wait for response
// headers by read. The overall client timeout covers both phases plus the body read.
func NewHTTPClient(connect, read time.Duration) *http.Client {
	connect = defaultDur(connect, DefaultConnectTimeout)
	read = defaultDur(read, DefaultReadTimeout)
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connect, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
	}
	return &http.Client{Timeout: connect + read, Transport: tr}
}

func defaultDur(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
