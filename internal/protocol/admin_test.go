package protocol_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loxp/kvs/internal/engine"
	"github.com/loxp/kvs/internal/protocol"
)

func TestAdminHealthzAndStats(t *testing.T) {
	e, err := engine.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	require.NoError(t, e.Set("k", "v"))

	addr := freeAddr(t)
	admin := protocol.NewAdmin(addr, e, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = admin.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(fmt.Sprintf("http://%s/stats", addr))
	require.NoError(t, err)
	defer resp2.Body.Close()

	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&stats))
	require.Equal(t, float64(1), stats["keys"])
}
