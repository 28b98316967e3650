package proxypool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaxtyson/spidercrawl/internal/core/domain"
	"github.com/zaxtyson/spidercrawl/internal/logger"
)

func testLogger() *logger.StyledLogger {
	_, l, cleanup, err := logger.NewWithTheme(&logger.Config{Level: "error", PrettyLogs: false})
	if err != nil {
		panic(err)
	}
	_ = cleanup
	return l
}

type fakeSource struct {
	proxies []*domain.Proxy
}

func (f *fakeSource) Fetch(_ context.Context) ([]*domain.Proxy, error) {
	return f.proxies, nil
}

func TestFileSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proxies.txt")
	require.NoError(t, os.WriteFile(path, []byte("1.2.3.4:8080\n5.6.7.8:9090\n\n"), 0o644))

	src := &FileSource{Path: path}
	proxies, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, proxies, 2)
	assert.Equal(t, "1.2.3.4", proxies[0].Host)
	assert.Equal(t, 8080, proxies[0].Port)
	assert.True(t, proxies[0].Valid)
}

func TestPool_GetBlocksUntilAvailable(t *testing.T) {
	p := New(&fakeSource{}, 1, true, testLogger())
	p.proxies = nil

	resultCh := make(chan *domain.Proxy, 1)
	go func() {
		proxy, err := p.Get(context.Background())
		assert.NoError(t, err)
		resultCh <- proxy
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-resultCh:
		t.Fatal("Get returned before a proxy was available")
	default:
	}

	p.mu.Lock()
	p.proxies = append(p.proxies, &domain.Proxy{Host: "1.1.1.1", Port: 80, Valid: true, ExpiresAt: farFutureExpiry})
	p.cond.Broadcast()
	p.mu.Unlock()

	select {
	case proxy := <-resultCh:
		require.NotNil(t, proxy)
		assert.Equal(t, "1.1.1.1", proxy.Host)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake up after a proxy became available")
	}
}

func TestPool_DisabledBypassesSelection(t *testing.T) {
	p := New(&fakeSource{}, 1, false, testLogger())
	proxy, err := p.Get(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, proxy)
}

func TestPool_MarkBannedFollowsSchedule(t *testing.T) {
	p := New(&fakeSource{}, 1, true, testLogger())
	proxy := &domain.Proxy{Host: "1.1.1.1", Port: 80, Valid: true, ExpiresAt: farFutureExpiry}
	p.proxies = []*domain.Proxy{proxy}

	p.MarkBanned(proxy)
	assert.Equal(t, 1, proxy.BanCount)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), proxy.ReuseAfter, 2*time.Second)

	p.MarkBanned(proxy)
	assert.WithinDuration(t, time.Now().Add(60*time.Second), proxy.ReuseAfter, 2*time.Second)

	p.MarkBanned(proxy)
	assert.WithinDuration(t, time.Now().Add(120*time.Second), proxy.ReuseAfter, 2*time.Second)

	p.MarkBanned(proxy)
	assert.WithinDuration(t, time.Now().Add(60*time.Second), proxy.ReuseAfter, 2*time.Second)
}

func TestPool_GetExcludesExpiredOrInvalid(t *testing.T) {
	p := New(&fakeSource{}, 1, true, testLogger())
	expired := &domain.Proxy{Host: "dead", Port: 1, Valid: true, ExpiresAt: time.Now().Add(-time.Minute)}
	invalid := &domain.Proxy{Host: "invalid", Port: 1, Valid: false, ExpiresAt: farFutureExpiry}
	good := &domain.Proxy{Host: "good", Port: 1, Valid: true, ExpiresAt: farFutureExpiry}
	p.proxies = []*domain.Proxy{expired, invalid, good}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	proxy, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "good", proxy.Host)
}
