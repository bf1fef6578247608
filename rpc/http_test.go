package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"nftmarket/core"
	"nftmarket/native/marketplace"
	"nftmarket/services/indexer"
	"nftmarket/storage"
)

const testToken = "rpc-test-token"

type testEnv struct {
	server *httptest.Server
	host   *core.Host
	sink   *indexer.Sink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := indexer.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sink := indexer.NewSink(gdb, nil)

	host, err := core.NewHost(db, core.HostConfig{Emitter: sink})
	require.NoError(t, err)

	srv := NewServer(host, ServerConfig{AuthToken: testToken, Events: sink})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, host: host, sink: sink}
}

func (e *testEnv) call(t *testing.T, token, method string, params ...interface{}) (int, json.RawMessage, *RPCError) {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, err := json.Marshal(p)
		require.NoError(t, err)
		raw = append(raw, b)
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
		"params":  raw,
	})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded.Result, decoded.Error
}

func listParams(amount int64) map[string]interface{} {
	return map[string]interface{}{
		"caller":   "anyone",
		"sender":   "seller",
		"token_id": "SellableNFT",
		"msg": map[string]interface{}{
			"list_price": map[string]interface{}{"amount": fmt.Sprint(amount), "denom": "ATOM"},
		},
	}
}

func TestMarketplaceOverRPC(t *testing.T) {
	env := newTestEnv(t)

	_, _, rpcErr := env.call(t, testToken, "market_initialize", map[string]string{"name": "test market"})
	require.Nil(t, rpcErr)

	_, result, rpcErr := env.call(t, "", "market_getConfig")
	require.Nil(t, rpcErr)
	var info marketplace.ContractInfo
	require.NoError(t, json.Unmarshal(result, &info))
	require.Equal(t, "test market", info.Name)

	_, result, rpcErr = env.call(t, testToken, "market_receiveNft", listParams(5))
	require.Nil(t, rpcErr)
	var listed core.Receipt
	require.NoError(t, json.Unmarshal(result, &listed))
	require.Equal(t, "1", listed.OfferingID)
	require.Equal(t, uint64(2), listed.Height)

	_, result, rpcErr = env.call(t, "", "market_getOfferings")
	require.Nil(t, rpcErr)
	var offerings []marketplace.OfferingView
	require.NoError(t, json.Unmarshal(result, &offerings))
	require.Len(t, offerings, 1)
	require.Equal(t, "anyone", offerings[0].ContractAddr)
	require.True(t, offerings[0].ListPrice.Equal(marketplace.NewCoin(5, "ATOM")))

	status, _, rpcErr := env.call(t, testToken, "market_buyNft", map[string]interface{}{
		"spender":     "buyer",
		"amount":      map[string]string{"amount": "4", "denom": "ATOM"},
		"offering_id": "1",
	})
	require.Equal(t, http.StatusPaymentRequired, status)
	require.NotNil(t, rpcErr)
	require.Equal(t, codeInsufficientFunds, rpcErr.Code)
	require.Equal(t, "insufficient_funds", rpcErr.Message)

	_, result, rpcErr = env.call(t, testToken, "market_buyNft", map[string]interface{}{
		"spender":     "buyer",
		"amount":      map[string]string{"amount": "5", "denom": "ATOM"},
		"offering_id": "1",
	})
	require.Nil(t, rpcErr)
	var sold core.Receipt
	require.NoError(t, json.Unmarshal(result, &sold))
	require.Len(t, sold.Instructions, 2)
	require.Equal(t, marketplace.InstructionBankSend, sold.Instructions[0].Kind)
	require.Equal(t, "seller", sold.Instructions[0].BankSend.To)
	require.Equal(t, marketplace.InstructionAssetTransfer, sold.Instructions[1].Kind)
	require.Equal(t, "buyer", sold.Instructions[1].AssetTransfer.Recipient)

	_, result, rpcErr = env.call(t, "", "market_getOfferings")
	require.Nil(t, rpcErr)
	require.JSONEq(t, `[]`, string(result))

	_, result, rpcErr = env.call(t, "", "market_getEvents", map[string]string{"offeringId": "1"})
	require.Nil(t, rpcErr)
	var indexed []indexer.Event
	require.NoError(t, json.Unmarshal(result, &indexed))
	require.Len(t, indexed, 2)
	require.Equal(t, marketplace.EventTypeOfferingListed, indexed[0].Type)
	require.Equal(t, marketplace.EventTypeOfferingSold, indexed[1].Type)

	_, result, rpcErr = env.call(t, "", "market_getHeight")
	require.Nil(t, rpcErr)
	require.JSONEq(t, `{"height":3}`, string(result))
}

func TestReceiveAcceptsBase64Payload(t *testing.T) {
	env := newTestEnv(t)
	payload, err := marketplace.EncodeListPrice(marketplace.NewCoin(7, "ATOM"))
	require.NoError(t, err)

	_, result, rpcErr := env.call(t, testToken, "market_receiveNft", map[string]interface{}{
		"caller":   "anyone",
		"sender":   "seller",
		"token_id": "t1",
		"msg":      payload,
	})
	require.Nil(t, rpcErr)
	var receipt core.Receipt
	require.NoError(t, json.Unmarshal(result, &receipt))

	view, err := env.host.Offering(context.Background(), receipt.OfferingID)
	require.NoError(t, err)
	require.True(t, view.ListPrice.Equal(marketplace.NewCoin(7, "ATOM")))
}

func TestReceiveWithoutPayload(t *testing.T) {
	env := newTestEnv(t)
	_, _, rpcErr := env.call(t, testToken, "market_receiveNft", map[string]string{
		"caller":   "anyone",
		"sender":   "seller",
		"token_id": "t1",
	})
	require.NotNil(t, rpcErr)
	require.Equal(t, codeMissingListingData, rpcErr.Code)
}

func TestBuyUnknownOffering(t *testing.T) {
	env := newTestEnv(t)
	status, result, rpcErr := env.call(t, testToken, "market_buyNft", map[string]interface{}{
		"spender":     "buyer",
		"amount":      map[string]string{"amount": "5", "denom": "ATOM"},
		"offering_id": "9",
	})
	require.Equal(t, http.StatusNotFound, status)
	require.Empty(t, result)
	require.NotNil(t, rpcErr)
	require.Equal(t, codeOfferingNotFound, rpcErr.Code)
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	for _, token := range []string{"", "wrong"} {
		status, _, rpcErr := env.call(t, token, "market_receiveNft", listParams(1))
		require.Equal(t, http.StatusUnauthorized, status)
		require.NotNil(t, rpcErr)
		require.Equal(t, codeUnauthorized, rpcErr.Code)
	}
	offerings, err := env.host.Offerings(context.Background())
	require.NoError(t, err)
	require.Empty(t, offerings)
}

func TestConfigBeforeInitialize(t *testing.T) {
	env := newTestEnv(t)
	_, _, rpcErr := env.call(t, "", "market_getConfig")
	require.NotNil(t, rpcErr)
	require.Equal(t, codeNotInitialized, rpcErr.Code)
}

func TestRejectsMalformedRequests(t *testing.T) {
	env := newTestEnv(t)

	_, _, rpcErr := env.call(t, "", "market_unknown")
	require.NotNil(t, rpcErr)
	require.Equal(t, codeMethodNotFound, rpcErr.Code)

	_, _, rpcErr = env.call(t, testToken, "market_initialize", map[string]string{"nmae": "typo"})
	require.NotNil(t, rpcErr)
	require.Equal(t, codeInvalidParams, rpcErr.Code)

	resp, err := http.Post(env.server.URL+"/", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	resp, err = http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDecodeReceivePayload(t *testing.T) {
	got, err := decodeReceivePayload(json.RawMessage(`null`))
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = decodeReceivePayload(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(got))

	_, err = decodeReceivePayload(json.RawMessage(`"not base64!"`))
	require.Error(t, err)
}
