package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"nftmarket/core"
	"nftmarket/core/events"
	"nftmarket/native/marketplace"
	"nftmarket/storage"
)

func TestEventsWebsocketReplaysBacklog(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	stream := events.NewStream(0)
	host, err := core.NewHost(db, core.HostConfig{Emitter: stream})
	require.NoError(t, err)
	ts := httptest.NewServer(NewServer(host, ServerConfig{AuthToken: testToken, Stream: stream}).Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = host.Initialize(ctx, marketplace.InitMsg{Name: "test market"})
	require.NoError(t, err)
	payload, err := marketplace.EncodeListPrice(marketplace.NewCoin(5, "ATOM"))
	require.NoError(t, err)
	_, err = host.ReceiveNFT(ctx, marketplace.MessageInfo{Sender: "anyone"},
		marketplace.ReceiveMsg{Sender: "seller", TokenID: "SellableNFT", Msg: payload})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events?cursor=1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt StreamedEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, uint64(2), evt.Height)
	require.Equal(t, marketplace.EventTypeOfferingListed, evt.Type)
	require.Equal(t, "SellableNFT", evt.Attributes["tokenId"])
}

func TestEventsWebsocketRejectsBadCursor(t *testing.T) {
	srv := NewServer(nil, ServerConfig{Stream: events.NewStream(0)})
	rec := httptest.NewRecorder()
	srv.handleEventsWS(rec, httptest.NewRequest(http.MethodGet, "/ws/events?cursor=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMutationsAreRateLimited(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	host, err := core.NewHost(db, core.HostConfig{})
	require.NoError(t, err)
	ts := httptest.NewServer(NewServer(host, ServerConfig{
		AuthToken: testToken,
		RateLimit: RateLimit{RequestsPerMinute: 1, Burst: 1},
	}).Handler())
	t.Cleanup(ts.Close)
	env := &testEnv{server: ts, host: host}

	_, _, rpcErr := env.call(t, testToken, "market_receiveNft", listParams(1))
	require.Nil(t, rpcErr)
	status, _, rpcErr := env.call(t, testToken, "market_receiveNft", listParams(1))
	require.Equal(t, http.StatusTooManyRequests, status)
	require.NotNil(t, rpcErr)
	require.Equal(t, codeRateLimited, rpcErr.Code)

	_, _, rpcErr = env.call(t, "", "market_getOfferings")
	require.Nil(t, rpcErr, "queries are not throttled")
}
