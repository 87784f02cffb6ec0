package auth

import (
	"fmt"
	"strings"
	"sync"
)

type user struct {
	role Role
	hash string
}

// Directory is the in-memory user store. Self-registered clients wait in a
// queue until a manager accepts them.
type Directory struct {
	mu      sync.Mutex
	cost    int
	users   map[string]user
	pending map[string]string // login -> hash
	queue   []string
}

// NewDirectory uses bcrypt cost for new hashes; zero selects the default.
func NewDirectory(cost int) *Directory {
	return &Directory{
		cost:    cost,
		users:   make(map[string]user),
		pending: make(map[string]string),
	}
}

// Add creates an active user with the given role.
func (d *Directory) Add(login, password string, role Role) error {
	login = strings.TrimSpace(login)
	if login == "" {
		return fmt.Errorf("%w: login is required", ErrInvalidInput)
	}
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	hash, err := HashPassword(password, d.cost)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.known(login) {
		return ErrAlreadyExists
	}
	d.users[login] = user{role: role, hash: hash}
	return nil
}

// Register queues a client registration.
func (d *Directory) Register(login, password string) error {
	login = strings.TrimSpace(login)
	if login == "" {
		return fmt.Errorf("%w: login is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password, d.cost)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.known(login) {
		return ErrAlreadyExists
	}
	d.pending[login] = hash
	d.queue = append(d.queue, login)
	return nil
}

// Registrations lists pending logins in arrival order.
func (d *Directory) Registrations(p Principal) ([]string, error) {
	if err := p.Require(RoleManager); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.queue...), nil
}

// AcceptRegistration activates a pending login as a client.
func (d *Directory) AcceptRegistration(p Principal, login string) error {
	if err := p.Require(RoleManager); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	hash, ok := d.pending[login]
	if !ok {
		return ErrNotFound
	}
	delete(d.pending, login)
	for i, l := range d.queue {
		if l == login {
			d.queue = append(d.queue[:i:i], d.queue[i+1:]...)
			break
		}
	}
	d.users[login] = user{role: RoleClient, hash: hash}
	return nil
}

// Authenticate checks credentials and returns the user's principal.
func (d *Directory) Authenticate(login, password string) (Principal, error) {
	d.mu.Lock()
	u, ok := d.users[login]
	_, waiting := d.pending[login]
	d.mu.Unlock()
	if !ok {
		if waiting {
			return Principal{}, ErrRegistrationPending
		}
		return Principal{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(u.hash, password); err != nil {
		return Principal{}, err
	}
	return Principal{Login: login, Role: u.role}, nil
}

func (d *Directory) known(login string) bool {
	_, active := d.users[login]
	_, waiting := d.pending[login]
	return active || waiting
}
