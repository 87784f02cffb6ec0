package httpapi

import (
	"net/http"

	"bankmesh.org/internal/credit"
	"bankmesh.org/internal/deposit"
	"bankmesh.org/internal/engine"
	"bankmesh.org/internal/ledger"
)

type withdrawRequest struct {
	Account ledger.AccountID `json:"account"`
}

func (a *API) openDeposit(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req engine.DepositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	d, err := a.engine.OpenDeposit(r.Context(), principal(r), bik, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (a *API) listDeposits(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.engine.Deposits(r.Context(), principal(r), bik)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse[deposit.Deposit]{Items: items})
}

func (a *API) withdrawDeposit(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	idx, err := pathIndex(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req withdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := a.engine.WithdrawDeposit(r.Context(), principal(r), bik, idx, req.Account)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": req.Account,
		"amount":  amount,
		"display": amount.String(),
	})
}

func (a *API) requestCredit(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req credit.Params
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.engine.RequestCredit(r.Context(), principal(r), bik, req); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "pending",
		"monthly_pay": credit.MonthlyPayment(req),
	})
}

func (a *API) listCredits(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.engine.Credits(r.Context(), principal(r), bik)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse[credit.Credit]{Items: items})
}

func (a *API) listPendingCredits(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.engine.PendingCredits(r.Context(), principal(r), bik)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse[credit.Request]{Items: items})
}

func (a *API) acceptCredit(w http.ResponseWriter, r *http.Request) {
	bik, err := pathBIK(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	idx, err := pathIndex(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.engine.AcceptCredit(r.Context(), principal(r), bik, idx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
