package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/watchmen/internal/domain"
)

const (
	DefaultInterval         = time.Minute
	DefaultWarningThreshold = 1500 * time.Millisecond
)

var ErrInvalidServices = errors.New("invalid services file")

// servicesFile is the on-disk shape:
//
//	services:
//	  - id: api
//	    target: https://api.example.com/healthz
//	    interval: 30s
//	    failure_interval: 10s
//	    warning_threshold: 1500ms
type servicesFile struct {
	Services []domain.Service `yaml:"services"`
}

func LoadServices(path string) ([]domain.Service, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read services file: %w", err)
	}
	return ParseServices(bytes.NewReader(b))
}

// ParseServices decodes a services file, fills defaults and validates it.
func ParseServices(r io.Reader) ([]domain.Service, error) {
	var f servicesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServices, err)
	}

	seen := make(map[domain.ServiceID]bool, len(f.Services))
	for i := range f.Services {
		s := &f.Services[i]
		if s.ID == "" {
			return nil, fmt.Errorf("%w: service #%d has no id", ErrInvalidServices, i+1)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidServices, s.ID)
		}
		seen[s.ID] = true
		if s.Target == "" {
			return nil, fmt.Errorf("%w: service %q has no target", ErrInvalidServices, s.ID)
		}
		if s.Interval < 0 || s.FailureInterval < 0 || s.WarningThreshold < 0 {
			return nil, fmt.Errorf("%w: service %q has a negative duration", ErrInvalidServices, s.ID)
		}
		if s.Interval == 0 {
			s.Interval = DefaultInterval
		}
		if s.FailureInterval == 0 {
			s.FailureInterval = s.Interval
		}
		if s.WarningThreshold == 0 {
			s.WarningThreshold = DefaultWarningThreshold
		}
		if s.Kind == "" {
			s.Kind = "http"
		}
		if strings.HasPrefix(s.Kind, "http") {
			if !isValidHTTPURL(s.Target) {
				return nil, fmt.Errorf("%w: service %q target %q is not an http(s) url", ErrInvalidServices, s.ID, s.Target)
			}
			s.Target = normalizeHTTPURL(s.Target)
		}
		if s.Name == "" {
			s.Name = string(s.ID)
		}
	}
	return f.Services, nil
}

func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Hostname() != ""
}

// normalizeHTTPURL lowercases the host, drops default ports and a bare trailing slash.
func normalizeHTTPURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}
	u.Host = host
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}
