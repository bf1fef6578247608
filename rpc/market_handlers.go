package rpc

import (
	"net/http"
	"strings"

	"nftmarket/native/marketplace"
	"nftmarket/services/indexer"
)

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params initializeParams
	if err := decodeParam(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	receipt, err := s.market.Initialize(r.Context(), marketplace.InitMsg{Name: params.Name})
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleReceiveNFT(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params receiveParams
	if err := decodeParam(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	p, _ := principalFrom(r.Context())
	caller, err := bindCaller(p, params.Caller)
	if err != nil {
		writeError(w, http.StatusForbidden, req.ID, codeForbidden, err.Error(), nil)
		return
	}
	if caller == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "caller required", nil)
		return
	}
	payload, err := decodeReceivePayload(params.Msg)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid msg", err.Error())
		return
	}
	receipt, err := s.market.ReceiveNFT(r.Context(),
		marketplace.MessageInfo{Sender: caller},
		marketplace.ReceiveMsg{Sender: params.Sender, TokenID: params.TokenID, Msg: payload},
	)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleBuyNFT(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params buyParams
	if err := decodeParam(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	p, _ := principalFrom(r.Context())
	caller, err := bindCaller(p, params.Caller)
	if err != nil {
		writeError(w, http.StatusForbidden, req.ID, codeForbidden, err.Error(), nil)
		return
	}
	// A JWT subject may only spend its own funds.
	if !p.operator && strings.TrimSpace(params.Spender) != caller {
		writeError(w, http.StatusForbidden, req.ID, codeForbidden, "spender does not match authenticated subject", nil)
		return
	}
	if caller == "" {
		caller = params.Spender
	}
	receipt, err := s.market.BuyNFT(r.Context(),
		marketplace.MessageInfo{Sender: caller},
		marketplace.BuyMsg{Spender: params.Spender, Amount: params.Amount, OfferingID: params.OfferingID},
	)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleGetOfferings(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	offerings, err := s.market.Offerings(r.Context())
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, offerings)
}

func (s *Server) handleGetOffering(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return
	}
	var params offeringParams
	if err := decodeParam(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	offering, err := s.market.Offering(r.Context(), params.ID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, offering)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	info, err := s.market.Config(r.Context())
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, info)
}

func (s *Server) handleGetHeight(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	height, err := s.market.Height(r.Context())
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, HeightResult{Height: height})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "too many parameters", nil)
		return
	}
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "event index unavailable", nil)
		return
	}
	var filter indexer.Filter
	if len(req.Params) == 1 {
		if err := decodeParam(req.Params[0], &filter); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid filter", err.Error())
			return
		}
	}
	events, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list indexed events", "error", err)
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to list events", nil)
		return
	}
	writeResult(w, req.ID, events)
}
