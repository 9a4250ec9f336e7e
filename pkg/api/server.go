package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"escrowbook/pkg/book"
	"escrowbook/pkg/token"
)

// Server exposes the order book over REST and streams order events over
// WebSocket. Mutating endpoints map 1:1 onto the engine operations; the
// engine stays the single source of truth.
type Server struct {
	book        *book.Book
	assets      *token.Registry
	router      *mux.Router
	hub         *Hub
	corsOrigins []string
}

func NewServer(b *book.Book, assets *token.Registry, corsOrigins []string) *Server {
	s := &Server{
		book:        b,
		assets:      assets,
		router:      mux.NewRouter(),
		hub:         NewHub(),
		corsOrigins: corsOrigins,
	}

	// Forward engine events to subscribed clients. Hooks fire after the
	// operation commits, so subscribers never see uncommitted state.
	b.OnOpen = func(ev book.OrderOpened) {
		s.broadcast("order_opened", ev.MakeAsset, ev)
	}
	b.OnFill = func(ev book.OrderFilled) {
		s.broadcast("order_filled", ev.MakeAsset, ev)
	}
	b.OnCancel = func(ev book.OrderCancelled) {
		s.broadcast("order_cancelled", ev.MakeAsset, ev)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order reads
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/orders/next-id", s.handleGetNextID).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}/remaining", s.handleGetRemaining).Methods("GET")
	api.HandleFunc("/assets/{asset}/orders", s.handleGetOrdersByAsset).Methods("GET")
	api.HandleFunc("/takers/{address}/orders", s.handleGetOrdersTakenBy).Methods("GET")

	// Engine operations
	api.HandleFunc("/orders", s.handleOpenOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}/take", s.handleTakeOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}/cancel", s.handleCancelOrder).Methods("POST")

	// Asset ledger reads
	api.HandleFunc("/tokens/{asset}/balances/{owner}", s.handleGetBalance).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, toOrderInfos(s.book.GetOrders()))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := s.book.Get(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, toOrderInfo(o))
}

func (s *Server) handleGetRemaining(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	remaining, err := s.book.RemainingAmount(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, RemainingResponse{ID: id, Remaining: remaining.String()})
}

func (s *Server) handleGetNextID(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, NextIDResponse{NextID: s.book.NextID()})
}

func (s *Server) handleGetOrdersByAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := pathAddress(w, r, "asset")
	if !ok {
		return
	}
	respondJSON(w, toOrderInfos(s.book.GetByAsset(asset)))
}

func (s *Server) handleGetOrdersTakenBy(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	respondJSON(w, toOrderInfos(s.book.GetTakenBy(addr)))
}

func (s *Server) handleOpenOrder(w http.ResponseWriter, r *http.Request) {
	var req OpenOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	maker, ok := parseAddress(w, req.Maker, "maker")
	if !ok {
		return
	}
	makeAsset, ok := parseAddress(w, req.MakeAsset, "makeAsset")
	if !ok {
		return
	}
	takeAsset, ok := parseAddress(w, req.TakeAsset, "takeAsset")
	if !ok {
		return
	}
	makeAmount, ok := parseAmount(w, req.MakeAmount, "makeAmount")
	if !ok {
		return
	}
	takeAmount, ok := parseAmount(w, req.TakeAmount, "takeAmount")
	if !ok {
		return
	}

	id, err := s.book.Open(maker, makeAsset, takeAsset, makeAmount, takeAmount, req.EndDate)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, OpenOrderResponse{ID: id})
}

func (s *Server) handleTakeOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req TakeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	taker, ok := parseAddress(w, req.Taker, "taker")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount, "amount")
	if !ok {
		return
	}

	filled, err := s.book.Take(id, taker, amount)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, TakeOrderResponse{ID: id, Filled: filled.String()})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, ok := parseAddress(w, req.Caller, "caller")
	if !ok {
		return
	}

	refunded, err := s.book.Cancel(id, caller)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, CancelOrderResponse{ID: id, Refunded: refunded.String()})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	asset, ok := pathAddress(w, r, "asset")
	if !ok {
		return
	}
	owner, ok := pathAddress(w, r, "owner")
	if !ok {
		return
	}

	ledger, err := s.assets.Resolve(asset)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown asset", asset.Hex())
		return
	}

	respondJSON(w, BalanceInfo{
		Asset:     asset.Hex(),
		Owner:     owner.Hex(),
		Balance:   ledger.BalanceOf(owner).String(),
		Allowance: ledger.Allowance(owner, s.book.Escrow()).String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast
// ==============================

func (s *Server) broadcast(eventType string, asset common.Address, data interface{}) {
	ev := WSEvent{Type: eventType, Data: data}
	s.hub.BroadcastToChannel("orders", ev)
	if asset != (common.Address{}) {
		s.hub.BroadcastToChannel("orders:"+asset.Hex(), ev)
	}
}

// ==============================
// Helpers
// ==============================

func toOrderInfo(o *book.Order) OrderInfo {
	return OrderInfo{
		ID:              o.ID,
		Maker:           o.Maker.Hex(),
		MakeAsset:       o.MakeAsset.Hex(),
		TakeAsset:       o.TakeAsset.Hex(),
		MakeAmount:      o.MakeAmount.String(),
		TakeAmount:      o.TakeAmount.String(),
		RemainingAmount: o.RemainingAmount.String(),
		EndDate:         o.EndDate,
		CreatedAt:       o.CreatedAt,
		Status:          o.Status.String(),
	}
}

func toOrderInfos(orders []*book.Order) []OrderInfo {
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = toOrderInfo(o)
	}
	return out
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return 0, false
	}
	return id, true
}

func pathAddress(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	return parseAddress(w, mux.Vars(r)[name], name)
}

func parseAddress(w http.ResponseWriter, raw, name string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "invalid address", name+": "+raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func parseAmount(w http.ResponseWriter, raw, name string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amount", name+": "+raw)
		return nil, false
	}
	return amount, true
}

// respondEngineError maps the engine's error taxonomy onto HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, book.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, book.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, book.ErrOrderClosed), errors.Is(err, book.ErrOrderExpired):
		respondError(w, http.StatusConflict, "order closed", err.Error())
	case errors.Is(err, token.ErrInsufficientFunds), errors.Is(err, token.ErrInsufficientAllowance):
		respondError(w, http.StatusPaymentRequired, "insufficient funds", err.Error())
	default:
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errMsg,
		Message: message,
	})
}
