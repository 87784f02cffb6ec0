package httpapi

import (
	"net/http"
	"strings"

	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/payroll"
)

type salaryRequest struct {
	Enterprise string          `json:"enterprise"`
	Account    ledger.Endpoint `json:"account"`
}

type decisionRequest struct {
	Accept bool         `json:"accept"`
	Salary ledger.Money `json:"salary"`
}

type projectRequest struct {
	Account ledger.Endpoint `json:"account"`
}

func (a *API) requestSalary(w http.ResponseWriter, r *http.Request) {
	var req salaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	enterprise := strings.TrimSpace(req.Enterprise)
	if err := a.engine.RequestSalary(r.Context(), principal(r), enterprise, req.Account); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"enterprise": enterprise, "status": "pending"})
}

func (a *API) listSalaryRequests(w http.ResponseWriter, r *http.Request) {
	items, err := a.engine.SalaryRequests(r.Context(), principal(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse[payroll.Request]{Items: items})
}

func (a *API) decideSalaryRequest(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIndex(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.engine.DecideSalaryRequest(r.Context(), principal(r), idx, req.Accept, req.Salary); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": idx, "accepted": req.Accept})
}

func (a *API) initSalaryProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.engine.InitSalaryProject(r.Context(), principal(r), req.Account); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payroll.Project{Account: req.Account})
}

func (a *API) getSalaryProject(w http.ResponseWriter, r *http.Request) {
	proj, err := a.engine.SalaryProject(r.Context(), principal(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (a *API) acceptSalaryProject(w http.ResponseWriter, r *http.Request) {
	enterprise := r.PathValue("enterprise")
	if err := a.engine.AcceptSalaryProject(r.Context(), principal(r), enterprise); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enterprise": enterprise, "accepted": true})
}

func (a *API) paySalaries(w http.ResponseWriter, r *http.Request) {
	txs, err := a.engine.PaySalaries(r.Context(), principal(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, itemsResponse[ledger.Transaction]{Items: txs})
}
