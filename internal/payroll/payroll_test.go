package payroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankmesh.org/internal/ledger"
)

func acct(id ledger.AccountID) ledger.Endpoint {
	return ledger.Endpoint{BankID: 1003004, AccountID: id}
}

func TestDecideRequiresAcceptedProject(t *testing.T) {
	s := New()
	s.Submit(Request{Enterprise: "ent", Client: "cli", Account: acct(1)})

	assert.ErrorIs(t, s.Decide("ent", 0, true, 100), ErrProjectNotFound)

	s.InitProject("ent", acct(9))
	assert.ErrorIs(t, s.Decide("ent", 0, true, 100), ErrProjectNotAccepted)
	assert.Len(t, s.Requests("ent"), 1)
}

func TestDecideAcceptAndReject(t *testing.T) {
	s := New()
	s.InitProject("ent", acct(9))
	require.NoError(t, s.AcceptProject("ent"))
	s.Submit(Request{Enterprise: "ent", Client: "a", Account: acct(1)})
	s.Submit(Request{Enterprise: "ent", Client: "b", Account: acct(2)})
	s.Submit(Request{Enterprise: "ent", Client: "c", Account: acct(3)})

	require.NoError(t, s.Decide("ent", 0, true, 500))
	q := s.Requests("ent")
	require.Len(t, q, 2)
	assert.Equal(t, "c", q[0].Client)

	require.NoError(t, s.Decide("ent", 1, false, 0))
	require.NoError(t, s.Decide("ent", 0, true, 700))
	assert.Empty(t, s.Requests("ent"))

	p, err := s.Project("ent")
	require.NoError(t, err)
	require.Len(t, p.Employees, 2)
	assert.Equal(t, "a", p.Employees[0].Client)
	assert.Equal(t, "c", p.Employees[1].Client)
	assert.Equal(t, ledger.Money(1200), p.Payroll())

	assert.ErrorIs(t, s.Decide("ent", 0, true, 1), ledger.ErrIndexOutOfRange)
}

func TestDecideRejectsNonPositiveSalary(t *testing.T) {
	s := New()
	s.InitProject("ent", acct(9))
	require.NoError(t, s.AcceptProject("ent"))
	s.Submit(Request{Enterprise: "ent", Client: "a", Account: acct(1)})

	assert.ErrorIs(t, s.Decide("ent", 0, true, 0), ledger.ErrInvalidAmount)
	assert.Len(t, s.Requests("ent"), 1)
}

func TestInitProjectReplaces(t *testing.T) {
	s := New()
	s.InitProject("ent", acct(9))
	require.NoError(t, s.AcceptProject("ent"))
	s.InitProject("ent", acct(10))

	p, err := s.Project("ent")
	require.NoError(t, err)
	assert.False(t, p.Accepted)
	assert.Equal(t, acct(10), p.Account)
	assert.ErrorIs(t, s.AcceptProject("other"), ErrProjectNotFound)
}

func TestExportRestore(t *testing.T) {
	s := New()
	s.InitProject("ent", acct(9))
	require.NoError(t, s.AcceptProject("ent"))
	s.Submit(Request{Enterprise: "ent", Client: "a", Account: acct(1)})
	s.Submit(Request{Enterprise: "ent", Client: "b", Account: acct(2)})
	require.NoError(t, s.Decide("ent", 0, true, 300))

	r := Restore(s.Export())
	assert.Equal(t, s.Requests("ent"), r.Requests("ent"))
	want, _ := s.Project("ent")
	got, err := r.Project("ent")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"ent"}, r.Enterprises())
}
