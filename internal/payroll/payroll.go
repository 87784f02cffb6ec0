// Package payroll tracks enterprise salary projects and employee enrollment
// requests.
package payroll

import (
	"errors"
	"sort"

	"bankmesh.org/internal/ledger"
)

var (
	ErrProjectNotFound    = errors.New("salary project not found")
	ErrProjectNotAccepted = errors.New("salary project not accepted")
)

// Request asks an enterprise to pay a client's salary into Account.
type Request struct {
	Enterprise string          `json:"enterprise"`
	Client     string          `json:"client"`
	Account    ledger.Endpoint `json:"account"`
}

type Employee struct {
	Client  string          `json:"client"`
	Account ledger.Endpoint `json:"account"`
	Salary  ledger.Money    `json:"salary"`
}

type Project struct {
	Account   ledger.Endpoint `json:"account"`
	Accepted  bool            `json:"accepted"`
	Employees []Employee      `json:"employees"`
}

// Payroll returns the sum of all salaries.
func (p Project) Payroll() ledger.Money {
	var total ledger.Money
	for _, e := range p.Employees {
		total += e.Salary
	}
	return total
}

type Service struct {
	requests map[string][]Request
	projects map[string]*Project
}

func New() *Service {
	return &Service{
		requests: make(map[string][]Request),
		projects: make(map[string]*Project),
	}
}

// Submit queues an enrollment request for the enterprise named in req.
func (s *Service) Submit(req Request) {
	s.requests[req.Enterprise] = append(s.requests[req.Enterprise], req)
}

func (s *Service) Requests(enterprise string) []Request {
	return append([]Request(nil), s.requests[enterprise]...)
}

// InitProject creates or replaces the enterprise's project. A replaced
// project starts unaccepted and without employees.
func (s *Service) InitProject(enterprise string, account ledger.Endpoint) {
	s.projects[enterprise] = &Project{Account: account}
}

func (s *Service) AcceptProject(enterprise string) error {
	p, ok := s.projects[enterprise]
	if !ok {
		return ErrProjectNotFound
	}
	p.Accepted = true
	return nil
}

func (s *Service) Project(enterprise string) (Project, error) {
	p, ok := s.projects[enterprise]
	if !ok {
		return Project{}, ErrProjectNotFound
	}
	out := *p
	out.Employees = append([]Employee(nil), p.Employees...)
	return out, nil
}

// Decide resolves the request at idx. Accepted requests enroll the client
// with salary. The queue is swap-removed and dropped once empty.
func (s *Service) Decide(enterprise string, idx int, accept bool, salary ledger.Money) error {
	p, ok := s.projects[enterprise]
	if !ok {
		return ErrProjectNotFound
	}
	if !p.Accepted {
		return ErrProjectNotAccepted
	}
	queue, ok := s.requests[enterprise]
	if !ok || idx < 0 || idx >= len(queue) {
		return ledger.ErrIndexOutOfRange
	}
	if accept && !salary.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	req := queue[idx]
	last := len(queue) - 1
	queue[idx] = queue[last]
	queue = queue[:last]
	if len(queue) == 0 {
		delete(s.requests, enterprise)
	} else {
		s.requests[enterprise] = queue
	}
	if accept {
		p.Employees = append(p.Employees, Employee{Client: req.Client, Account: req.Account, Salary: salary})
	}
	return nil
}

// State is the serializable form of Service.
type State struct {
	Requests map[string][]Request `json:"requests"`
	Projects map[string]Project   `json:"projects"`
}

func (s *Service) Export() State {
	st := State{
		Requests: make(map[string][]Request, len(s.requests)),
		Projects: make(map[string]Project, len(s.projects)),
	}
	for ent, q := range s.requests {
		st.Requests[ent] = append([]Request(nil), q...)
	}
	for ent := range s.projects {
		st.Projects[ent], _ = s.Project(ent)
	}
	return st
}

func Restore(st State) *Service {
	s := New()
	for ent, q := range st.Requests {
		if len(q) > 0 {
			s.requests[ent] = append([]Request(nil), q...)
		}
	}
	for ent, p := range st.Projects {
		p := p
		p.Employees = append([]Employee(nil), p.Employees...)
		s.projects[ent] = &p
	}
	return s
}

// Enterprises lists enterprises with a project, sorted.
func (s *Service) Enterprises() []string {
	out := make([]string, 0, len(s.projects))
	for ent := range s.projects {
		out = append(out, ent)
	}
	sort.Strings(out)
	return out
}
