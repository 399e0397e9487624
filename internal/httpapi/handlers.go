package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"libeufin-nexus/internal/iso20022"
	"libeufin-nexus/internal/scheduler"
	"libeufin-nexus/internal/store"
)

// configResponse is GET /taler-wire-gateway/config's body (spec §4.9).
type configResponse struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Currency       string `json:"currency"`
	Implementation string `json:"implementation"`
}

func (s *Server) getWireGatewayConfig(c fiber.Ctx) error {
	return c.JSON(configResponse{
		Name:           "taler-wire-gateway",
		Version:        "0:0:0",
		Currency:       s.cfg.Currency,
		Implementation: "urn:net:taler:specs:wire-gateway:0",
	})
}

func (s *Server) getRevenueConfig(c fiber.Ctx) error {
	return c.JSON(configResponse{
		Name:           "taler-revenue",
		Version:        "0:0:0",
		Currency:       s.cfg.Currency,
		Implementation: "urn:net:taler:specs:revenue:0",
	})
}

// transferRequest is POST /taler-wire-gateway/transfer's body (spec §4.9).
type transferRequest struct {
	RequestUID      string `json:"request_uid"`
	Amount          string `json:"amount"`
	ExchangeBaseURL string `json:"exchange_base_url"`
	WTID            string `json:"wtid"`
	CreditAccount   string `json:"credit_account"`
}

type transferResponse struct {
	Timestamp int64 `json:"timestamp"`
	RowID     int64 `json:"row_id"`
}

// postTransfer implements POST /taler-wire-gateway/transfer (spec §4.9,
// §8 S1): idempotent insert of an initiated payment, subject composed as
// "<wtid> <exchange_base_url>" so the bank's later echo round-trips
// through iso20022.ParseTalerableOutgoingSubject unchanged.
func (s *Server) postTransfer(c fiber.Ctx) error {
	var req transferRequest
	if err := c.Bind().Body(&req); err != nil {
		return errJSON(c, fiber.StatusBadRequest, ecGenericJSONInvalid, "malformed JSON body")
	}
	if req.RequestUID == "" || req.WTID == "" || req.ExchangeBaseURL == "" {
		return errJSON(c, fiber.StatusBadRequest, ecGenericJSONInvalid, "request_uid, wtid and exchange_base_url are required")
	}

	amount, err := iso20022.ParseAmount(req.Amount)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, ecGenericJSONInvalid, err.Error())
	}
	if amount.Currency != s.cfg.Currency {
		return errJSON(c, fiber.StatusBadRequest, ecGenericCurrencyMismatch,
			fmt.Sprintf("currency mismatch: expected %s got %s", s.cfg.Currency, amount.Currency))
	}
	credit, err := iso20022.ParsePayTo(req.CreditAccount)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, ecBankPaytoIBANUnsupported, err.Error())
	}

	subject := req.WTID + " " + req.ExchangeBaseURL

	if existing, err := store.GetInitiatedByRequestUID(c.Context(), s.db, req.RequestUID); err == nil {
		if existing.Amount != amount || existing.CreditPaytoURI != credit.String() || existing.Subject != subject {
			return errJSON(c, fiber.StatusConflict, ecBankTransferRequestUIDReused, "request_uid reused with a different body")
		}
		return c.JSON(transferResponse{Timestamp: existing.CreatedAt.Unix(), RowID: existing.ID})
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("httpapi: transfer: %w", err)
	}

	result, err := store.InsertInitiated(c.Context(), s.db, store.InitiatedPayment{
		Amount:         amount,
		CreditPaytoURI: credit.String(),
		Subject:        subject,
		RequestUID:     req.RequestUID,
	})
	if err != nil {
		return fmt.Errorf("httpapi: transfer: %w", err)
	}

	return c.JSON(transferResponse{Timestamp: time.Now().Unix(), RowID: result.ID})
}

// addIncomingRequest is POST /taler-wire-gateway/admin/add-incoming's
// body (spec §4.9).
type addIncomingRequest struct {
	Amount       string `json:"amount"`
	ReservePub   string `json:"reserve_pub"`
	DebitAccount string `json:"debit_account"`
}

type addIncomingResponse struct {
	Timestamp int64 `json:"timestamp"`
	RowID     int64 `json:"row_id"`
}

// postAddIncoming implements POST /taler-wire-gateway/admin/add-incoming
// (spec §4.9): inserts a talerable-incoming row keyed on a bank_id
// deterministically derived from reserve_pub, so a reserve_pub replay
// with a different body is rejected with 409.
func (s *Server) postAddIncoming(c fiber.Ctx) error {
	var req addIncomingRequest
	if err := c.Bind().Body(&req); err != nil {
		return errJSON(c, fiber.StatusBadRequest, ecGenericJSONInvalid, "malformed JSON body")
	}
	if req.ReservePub == "" {
		return errJSON(c, fiber.StatusBadRequest, ecGenericJSONInvalid, "reserve_pub is required")
	}
	if !iso20022.IsReservePub(req.ReservePub) {
		return errJSON(c, fiber.StatusBadRequest, ecGenericJSONInvalid, "reserve_pub is not a valid Crockford-base32 public key")
	}

	amount, err := iso20022.ParseAmount(req.Amount)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, ecGenericJSONInvalid, err.Error())
	}
	debit, err := iso20022.ParsePayTo(req.DebitAccount)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, ecBankPaytoIBANUnsupported, err.Error())
	}

	bankID := adminIncomingBankID(req.ReservePub)

	if existing, err := store.GetIncomingByBankID(c.Context(), s.db, bankID); err == nil {
		if existing.Amount != amount || existing.DebitPayto != debit.String() {
			return errJSON(c, fiber.StatusConflict, ecBankDuplicateReservePubReused, "reserve_pub reused with a different body")
		}
		return c.JSON(addIncomingResponse{Timestamp: time.Now().Unix(), RowID: existing.RowID})
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("httpapi: add-incoming: %w", err)
	}

	result, err := store.InsertIncoming(c.Context(), s.db, s.cfg.AccountPayto, store.IncomingPayment{
		BankID:     bankID,
		Amount:     amount,
		Subject:    req.ReservePub,
		ExecutedAt: time.Now(),
		DebitPayto: debit.String(),
		Kind:       store.KindExchange,
	})
	if err != nil {
		return fmt.Errorf("httpapi: add-incoming: %w", err)
	}

	return c.JSON(addIncomingResponse{Timestamp: time.Now().Unix(), RowID: result.RowID})
}

// adminIncomingBankID derives a deterministic dedup key for an
// operator-injected incoming payment, namespaced so it can never collide
// with a bank-assigned AcctSvcrRef (spec SPEC_FULL.md Open Question 1's
// "synth:" convention, adapted to the admin-injected case).
func adminIncomingBankID(reservePub string) string {
	sum := sha256.Sum256([]byte(reservePub))
	return "admin:" + hex.EncodeToString(sum[:16])
}

// historyIncomingTx is one row of GET .../history/incoming's response.
type historyIncomingTx struct {
	RowID        int64  `json:"row_id"`
	Date         string `json:"date"`
	Amount       string `json:"amount"`
	DebitAccount string `json:"debit_account"`
	ReservePub   string `json:"reserve_pub"`
}

type historyIncomingResponse struct {
	CreditAccount       string              `json:"credit_account"`
	IncomingTransactions []historyIncomingTx `json:"incoming_transactions"`
}

func (s *Server) getHistoryIncoming(c fiber.Ctx) error {
	start, delta, longPollMs, err := parseHistoryQuery(c)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, ecGenericJSONInvalid, err.Error())
	}

	rows, err := store.HistoryIncoming(c.Context(), s.db, s.cfg.AccountPayto, start, delta, longPollMs, true)
	if err != nil {
		return fmt.Errorf("httpapi: history/incoming: %w", err)
	}

	out := make([]historyIncomingTx, 0, len(rows))
	for _, r := range rows {
		out = append(out, historyIncomingTx{
			RowID:        r.RowID,
			Date:         r.ExecutedAt.UTC().Format(time.RFC3339),
			Amount:       r.Amount.String(),
			DebitAccount: r.DebitPayto,
			ReservePub:   r.ReservePub,
		})
	}
	return c.JSON(historyIncomingResponse{CreditAccount: s.cfg.AccountPayto, IncomingTransactions: out})
}

type historyOutgoingTx struct {
	RowID           int64  `json:"row_id"`
	Date            string `json:"date"`
	Amount          string `json:"amount"`
	CreditAccount   string `json:"credit_account"`
	WTID            string `json:"wtid,omitempty"`
	ExchangeBaseURL string `json:"exchange_base_url,omitempty"`
}

type historyOutgoingResponse struct {
	DebitAccount         string              `json:"debit_account"`
	OutgoingTransactions []historyOutgoingTx `json:"outgoing_transactions"`
}

func (s *Server) getHistoryOutgoing(c fiber.Ctx) error {
	start, delta, longPollMs, err := parseHistoryQuery(c)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, ecGenericJSONInvalid, err.Error())
	}

	rows, err := store.HistoryOutgoing(c.Context(), s.db, s.cfg.AccountPayto, start, delta, longPollMs, false)
	if err != nil {
		return fmt.Errorf("httpapi: history/outgoing: %w", err)
	}

	out := make([]historyOutgoingTx, 0, len(rows))
	for _, r := range rows {
		tx := historyOutgoingTx{
			RowID:         r.RowID,
			Date:          r.ExecutedAt.UTC().Format(time.RFC3339),
			Amount:        r.Amount.String(),
			CreditAccount: r.CreditPayto,
		}
		if wtid, exchangeBaseURL, ok := iso20022.ParseTalerableOutgoingSubject(r.Subject); ok {
			tx.WTID, tx.ExchangeBaseURL = wtid, exchangeBaseURL
		}
		out = append(out, tx)
	}
	return c.JSON(historyOutgoingResponse{DebitAccount: s.cfg.AccountPayto, OutgoingTransactions: out})
}

// getRevenueHistory reuses the outgoing ledger read-only, filtered to
// talerable rows only (spec §4.9's "/taler-revenue/history — analogous,
// read-only").
func (s *Server) getRevenueHistory(c fiber.Ctx) error {
	start, delta, longPollMs, err := parseHistoryQuery(c)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, ecGenericJSONInvalid, err.Error())
	}

	rows, err := store.HistoryOutgoing(c.Context(), s.db, s.cfg.AccountPayto, start, delta, longPollMs, true)
	if err != nil {
		return fmt.Errorf("httpapi: revenue/history: %w", err)
	}

	out := make([]historyOutgoingTx, 0, len(rows))
	for _, r := range rows {
		tx := historyOutgoingTx{
			RowID:         r.RowID,
			Date:          r.ExecutedAt.UTC().Format(time.RFC3339),
			Amount:        r.Amount.String(),
			CreditAccount: r.CreditPayto,
		}
		if wtid, exchangeBaseURL, ok := iso20022.ParseTalerableOutgoingSubject(r.Subject); ok {
			tx.WTID, tx.ExchangeBaseURL = wtid, exchangeBaseURL
		}
		out = append(out, tx)
	}
	return c.JSON(historyOutgoingResponse{DebitAccount: s.cfg.AccountPayto, OutgoingTransactions: out})
}

// historyQuery binds GET .../history/{incoming,outgoing}'s query string,
// matching spec §4.9's "Negative delta ⇒ descending" cursor contract.
type historyQuery struct {
	Delta      int   `query:"delta"`
	Start      int64 `query:"start"`
	LongPollMs int   `query:"long_poll_ms"`
}

func parseHistoryQuery(c fiber.Ctx) (start int64, delta int, longPollMs int, err error) {
	var q historyQuery
	if err := c.Bind().Query(&q); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed query parameters: %w", err)
	}
	if q.Delta == 0 {
		q.Delta = 20
	}
	return q.Start, q.Delta, q.LongPollMs, nil
}

// healthResponse is GET /healthz and /readyz's body (SPEC_FULL.md
// Supplement A), following stronghold's handlers.HealthResponse shape.
type healthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp int64             `json:"timestamp"`
}

func (s *Server) getHealthz(c fiber.Ctx) error {
	return c.JSON(healthResponse{Status: "alive", Timestamp: time.Now().Unix()})
}

// getReadyz checks DB connectivity and scheduler loop health (spec
// Supplement C): a loop that is not running, or whose last recorded
// error is set, makes the instance not-ready. How long ago a loop last
// ticked is not checked.
func (s *Server) getReadyz(c fiber.Ctx) error {
	checks := make(map[string]string)
	status := "ready"

	if err := s.db.Ping(c.Context()); err != nil {
		checks["database"] = "down"
		status = "not_ready"
	} else {
		checks["database"] = "up"
	}

	if s.sched != nil {
		h := s.sched.Health()
		checks["submit_loop"] = loopCheck(h.Submit)
		checks["fetch_loop"] = loopCheck(h.Fetch)
		if checks["submit_loop"] != "up" || checks["fetch_loop"] != "up" {
			status = "not_ready"
		}
	}

	code := fiber.StatusOK
	if status != "ready" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(healthResponse{Status: status, Checks: checks, Timestamp: time.Now().Unix()})
}

func loopCheck(h scheduler.LoopHealth) string {
	if !h.Running {
		return "down"
	}
	if h.LastErr != nil {
		return "degraded"
	}
	return "up"
}
