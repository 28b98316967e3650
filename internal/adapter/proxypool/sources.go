package proxypool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zaxtyson/spidercrawl/internal/core/domain"
)

// farFutureExpiry is the synthetic lease for file-sourced proxies,
// which never refresh and so never need a real one.
var farFutureExpiry = time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

// FileSource loads a static "host:port" list; Fetch is idempotent and
// re-reads the same file.
type FileSource struct {
	Path string
}

func (s *FileSource) Fetch(_ context.Context) ([]*domain.Proxy, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("proxypool: opening proxy file: %w", err)
	}
	defer f.Close()

	var proxies []*domain.Proxy
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		host, portStr, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		proxies = append(proxies, &domain.Proxy{
			Host:      host,
			Port:      port,
			ExpiresAt: farFutureExpiry,
			Valid:     true,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("proxypool: reading proxy file: %w", err)
	}
	return proxies, nil
}

// vendorEnvelope is the common {code/data/msg}-shaped wrapper vending APIs use.
type vendorEnvelope struct {
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

// ZhimaSource fetches proxies from a zhima-style vending API whose data is a
// list of {ip, port, expire_time} objects.
type ZhimaSource struct {
	API    string
	Client *http.Client
}

type zhimaEntry struct {
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	ExpireTime string `json:"expire_time"`
}

func (s *ZhimaSource) Fetch(ctx context.Context) ([]*domain.Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.API, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var env vendorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("proxypool: decoding zhima envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("proxypool: zhima fetch failed: %s", env.Msg)
	}

	var entries []zhimaEntry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return nil, fmt.Errorf("proxypool: decoding zhima entries: %w", err)
	}

	proxies := make([]*domain.Proxy, 0, len(entries))
	for _, e := range entries {
		expiry, err := time.ParseInLocation("2006-01-02 15:04:05", e.ExpireTime, time.Local)
		if err != nil {
			continue
		}
		proxies = append(proxies, &domain.Proxy{
			Host:      e.IP,
			Port:      e.Port,
			ExpiresAt: expiry,
			Valid:     true,
		})
	}
	return proxies, nil
}

// JuliangSource fetches proxies from a juliang-style vending API whose data
// is {"proxy_list": ["host:port,ttl_seconds", ...]}.
type JuliangSource struct {
	API    string
	Client *http.Client
}

type juliangData struct {
	ProxyList []string `json:"proxy_list"`
}

func (s *JuliangSource) Fetch(ctx context.Context) ([]*domain.Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.API, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var env vendorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("proxypool: decoding juliang envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("proxypool: juliang fetch failed: %s", env.Msg)
	}

	var data juliangData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("proxypool: decoding juliang data: %w", err)
	}

	now := time.Now()
	proxies := make([]*domain.Proxy, 0, len(data.ProxyList))
	for _, item := range data.ProxyList {
		// "117.27.118.94:53471,205"
		hostPort, ttlStr, ok := strings.Cut(item, ",")
		if !ok {
			continue
		}
		host, portStr, ok := strings.Cut(hostPort, ":")
		if !ok {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			continue
		}
		proxies = append(proxies, &domain.Proxy{
			Host:      host,
			Port:      port,
			ExpiresAt: now.Add(time.Duration(ttl) * time.Second),
			Valid:     true,
		})
	}
	return proxies, nil
}
