package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nftmarket/core"
	"nftmarket/native/marketplace"
	"nftmarket/services/indexer"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeForbidden      = -32003
	codeServerError    = -32000
	codeRateLimited    = -32020

	codeOfferingNotFound   = -32040
	codeMissingListingData = -32041
	codeInsufficientFunds  = -32042
	codeDenomMismatch      = -32043
	codeAlreadyInitialized = -32044
	codeNotInitialized     = -32045
)

// Marketplace is the host surface served over JSON-RPC.
type Marketplace interface {
	Initialize(ctx context.Context, msg marketplace.InitMsg) (*core.Receipt, error)
	ReceiveNFT(ctx context.Context, info marketplace.MessageInfo, msg marketplace.ReceiveMsg) (*core.Receipt, error)
	BuyNFT(ctx context.Context, info marketplace.MessageInfo, msg marketplace.BuyMsg) (*core.Receipt, error)
	Offerings(ctx context.Context) ([]marketplace.OfferingView, error)
	Offering(ctx context.Context, id string) (marketplace.OfferingView, error)
	Config(ctx context.Context) (marketplace.ContractInfo, error)
	Height(ctx context.Context) (uint64, error)
}

// EventSource serves indexed events for market_getEvents.
type EventSource interface {
	List(ctx context.Context, filter indexer.Filter) ([]indexer.Event, error)
}

// ServerConfig configures the JSON-RPC server.
type ServerConfig struct {
	// AuthToken guards mutating methods. When neither AuthToken nor JWT is
	// configured every mutating call is rejected.
	AuthToken string
	JWT       JWTAuth
	RateLimit RateLimit
	Events    EventSource
	Stream    EventStream
	Logger    *slog.Logger

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

type Server struct {
	market    Marketplace
	events    EventSource
	stream    EventStream
	limiter   *rateLimiter
	authToken string
	jwt       *jwtVerifier
	logger    *slog.Logger
	cfg       ServerConfig
}

func NewServer(market Marketplace, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	return &Server{
		market:    market,
		events:    cfg.Events,
		stream:    cfg.Stream,
		limiter:   newRateLimiter(cfg.RateLimit),
		authToken: strings.TrimSpace(cfg.AuthToken),
		jwt:       newJWTVerifier(cfg.JWT),
		logger:    logger,
		cfg:       cfg,
	}
}

// Handler returns the HTTP routes: JSON-RPC on "/", the committed event
// websocket, health and metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Post("/", s.handle)
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(s.Handler(), "marketd.rpc"),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc shutdown: %w", err)
		}
		return nil
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id,omitempty"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func responseID(id json.RawMessage) interface{} {
	if len(id) == 0 {
		return nil
	}
	return id
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: responseID(id), Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: responseID(id), Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeMarketError maps engine sentinels onto JSON-RPC error codes.
func writeMarketError(w http.ResponseWriter, id json.RawMessage, err error) {
	reason := marketplace.Reason(err)
	switch {
	case errors.Is(err, marketplace.ErrOfferingNotFound):
		writeError(w, http.StatusNotFound, id, codeOfferingNotFound, reason, err.Error())
	case errors.Is(err, marketplace.ErrMissingListingData):
		writeError(w, http.StatusBadRequest, id, codeMissingListingData, reason, err.Error())
	case errors.Is(err, marketplace.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, id, codeInsufficientFunds, reason, err.Error())
	case errors.Is(err, marketplace.ErrDenomMismatch):
		writeError(w, http.StatusBadRequest, id, codeDenomMismatch, reason, err.Error())
	case errors.Is(err, marketplace.ErrAlreadyInitialized):
		writeError(w, http.StatusConflict, id, codeAlreadyInitialized, reason, err.Error())
	case errors.Is(err, marketplace.ErrNotInitialized):
		writeError(w, http.StatusNotFound, id, codeNotInitialized, reason, err.Error())
	case errors.Is(err, marketplace.ErrDecode), errors.Is(err, marketplace.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, reason, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, id, codeServerError, "request cancelled", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, reason, nil)
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "market_initialize":
		if authed, ok := s.authorizeMutation(w, r, req); ok {
			s.handleInitialize(w, authed, req)
		}
	case "market_receiveNft":
		if authed, ok := s.authorizeMutation(w, r, req); ok {
			s.handleReceiveNFT(w, authed, req)
		}
	case "market_buyNft":
		if authed, ok := s.authorizeMutation(w, r, req); ok {
			s.handleBuyNFT(w, authed, req)
		}
	case "market_getOfferings":
		s.handleGetOfferings(w, r, req)
	case "market_getOffering":
		s.handleGetOffering(w, r, req)
	case "market_getConfig":
		s.handleGetConfig(w, r, req)
	case "market_getHeight":
		s.handleGetHeight(w, r, req)
	case "market_getEvents":
		s.handleGetEvents(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

// authorizeMutation authenticates and throttles a mutating call. On success
// the returned request carries the caller's principal.
func (s *Server) authorizeMutation(w http.ResponseWriter, r *http.Request, req *RPCRequest) (*http.Request, bool) {
	p, authErr := s.requireAuth(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return nil, false
	}
	if !s.limiter.allow(clientSource(r)) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return nil, false
	}
	return r.WithContext(withPrincipal(r.Context(), p)), true
}

func (s *Server) requireAuth(r *http.Request) (principal, *RPCError) {
	if s.authToken == "" && s.jwt == nil {
		return principal{}, &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return principal{}, &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return principal{}, &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return principal{}, &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if s.authToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1 {
		return principal{operator: true}, nil
	}
	if s.jwt != nil {
		subject, err := s.jwt.verify(token)
		if err != nil {
			s.logger.Debug("jwt rejected", slog.String("error", err.Error()))
			return principal{}, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
		}
		return principal{subject: subject}, nil
	}
	return principal{}, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
}
