package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bankmesh.org/internal/auth"
	"bankmesh.org/internal/clock"
	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/stream"
)

type transferRequest struct {
	FromAccount    ledger.AccountID `json:"from_account"`
	To             ledger.Endpoint  `json:"to"`
	Amount         ledger.Money     `json:"amount"`
	IdempotencyKey string           `json:"idempotency_key"`
}

type unprotectedRequest struct {
	From   ledger.Endpoint `json:"from"`
	To     ledger.Endpoint `json:"to"`
	Amount ledger.Money    `json:"amount"`
}

type statusRequest struct {
	Status ledger.Status `json:"status"`
}

type clockRequest struct {
	To     *time.Time `json:"to,omitempty"`
	Months int        `json:"months,omitempty"`
}

type listTransactionsResponse struct {
	Items     []ledger.Transaction `json:"items"`
	NextAfter uint64               `json:"next_after"`
	AsOf      time.Time            `json:"as_of"`
}

type listArchivedResponse struct {
	Items     []stream.TransferEvent `json:"items"`
	NextAfter uint64                 `json:"next_after"`
}

func (a *API) listBanks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": a.engine.Banks()})
}

func (a *API) openAccount(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.engine.OpenAccount(r.Context(), principal(r), bik)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/banks/"+strconv.FormatUint(uint64(bik), 10)+"/accounts/"+id.String())
	writeJSON(w, http.StatusCreated, map[string]any{"bik": bik, "id": id})
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	accs, err := a.engine.Accounts(r.Context(), principal(r), bik)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse[ledger.Account]{Items: accs})
}

func (a *API) closeAccount(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := pathAccount(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.engine.CloseAccount(r.Context(), principal(r), bik, id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setAccountStatus(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := pathAccount(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.engine.SetAccountStatus(r.Context(), principal(r), bik, id, req.Status); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}

func (a *API) transfer(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	idem := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if req.IdempotencyKey != "" {
		bodyKey := strings.TrimSpace(req.IdempotencyKey)
		if idem == "" {
			idem = bodyKey
		} else if idem != bodyKey {
			writeError(w, r, http.StatusBadRequest, "Idempotency-Key header and body value must match")
			return
		}
	}
	if len(idem) > 128 {
		writeError(w, r, http.StatusBadRequest, "Idempotency-Key too long")
		return
	}
	if req.FromAccount == 0 {
		writeError(w, r, http.StatusBadRequest, "from_account is required")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, r, http.StatusBadRequest, "amount must be > 0")
		return
	}

	tx, err := a.engine.Transfer(r.Context(), principal(r), bik, req.FromAccount, req.To, req.Amount, idem)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if idem != "" {
		w.Header().Set("Idempotency-Key", idem)
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) transferUnprotected(w http.ResponseWriter, r *http.Request) {
	var req unprotectedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tx, err := a.engine.TransferUnprotected(r.Context(), principal(r), ledger.Transaction{
		Src:    req.From,
		Dst:    req.To,
		Amount: req.Amount,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) revertLast(w http.ResponseWriter, r *http.Request) {
	tx, err := a.engine.RevertLast(r.Context(), principal(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	after, err := parseAfter(r.URL.Query().Get("after"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, next, err := a.engine.Transactions(r.Context(), principal(r), limit, after)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listTransactionsResponse{
		Items:     items,
		NextAfter: next,
		AsOf:      a.engine.Now().UTC(),
	})
}

func (a *API) listArchived(w http.ResponseWriter, r *http.Request) {
	if a.archive == nil {
		writeError(w, r, http.StatusServiceUnavailable, "archive disabled")
		return
	}
	if err := principal(r).Require(auth.RoleOperator, auth.RoleManager, auth.RoleAdministrator); err != nil {
		handleError(w, r, err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	after, err := parseAfter(r.URL.Query().Get("after"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, next, err := a.archive.ListArchived(r.Context(), limit, after)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listArchivedResponse{Items: items, NextAfter: next})
}

func (a *API) getClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"now": a.engine.Now().UTC()})
}

// advanceClock accepts either an absolute target or a month count.
func (a *API) advanceClock(w http.ResponseWriter, r *http.Request) {
	var req clockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	target, err := req.target(a.engine.Now())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.engine.AdvanceClock(r.Context(), principal(r), target); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"now": a.engine.Now().UTC()})
}

func (c clockRequest) target(now time.Time) (time.Time, error) {
	switch {
	case c.To != nil && c.Months != 0:
		return time.Time{}, errors.New("specify either to or months")
	case c.To != nil:
		return *c.To, nil
	case c.Months > 0:
		return clock.AddMonths(now, c.Months), nil
	default:
		return time.Time{}, errors.New("to or a positive months is required")
	}
}
