package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bankmesh.org/internal/auth"
	"bankmesh.org/internal/clock"
	"bankmesh.org/internal/credit"
	"bankmesh.org/internal/deposit"
	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/obs"
	"bankmesh.org/internal/payroll"
)

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleError maps domain errors to HTTP status codes.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrRegistrationPending),
		errors.Is(err, ledger.ErrOwnershipMismatch):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, credit.ErrInvalidTerm),
		errors.Is(err, deposit.ErrInvalidTerm),
		errors.Is(err, clock.ErrOutOfRange):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNotFound),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrBankNotFound),
		errors.Is(err, ledger.ErrIndexOutOfRange),
		errors.Is(err, payroll.ErrProjectNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrAccountUnavailable),
		errors.Is(err, ledger.ErrAccountInUse),
		errors.Is(err, ledger.ErrBalanceNotZero),
		errors.Is(err, ledger.ErrBankExists),
		errors.Is(err, ledger.ErrNothingToRevert),
		errors.Is(err, deposit.ErrNotMatured),
		errors.Is(err, payroll.ErrProjectNotAccepted),
		errors.Is(err, clock.ErrMovedBackward):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		obs.Component("httpapi").WithError(err).WithField("request_id", RequestIDFromContext(r.Context())).Error("unhandled error")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func parseLimit(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 100, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < 1 || val > 1000 {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}

func parseAfter(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("after must be a non-negative integer")
	}
	return v, nil
}

func pathBIK(r *http.Request) (ledger.BankID, error) {
	v, err := strconv.ParseUint(r.PathValue("bik"), 10, 64)
	if err != nil || v == 0 {
		return 0, errors.New("bik must be a positive integer")
	}
	return ledger.BankID(v), nil
}

func pathAccount(r *http.Request) (ledger.AccountID, error) {
	v, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || v == 0 {
		return 0, errors.New("account id must be a positive integer")
	}
	return ledger.AccountID(v), nil
}

func pathIndex(r *http.Request) (int, error) {
	v, err := strconv.Atoi(r.PathValue("idx"))
	if err != nil || v < 0 {
		return 0, errors.New("index must be a non-negative integer")
	}
	return v, nil
}
