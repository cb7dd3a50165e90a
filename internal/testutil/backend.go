package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// Account is a user known to the fake backend.
type Account struct {
	ID       string
	Name     string
	Email    string
	Password string
	Role     string
}

// Backend is an in-memory stand-in for the storefront REST API.
type Backend struct {
	mu       sync.Mutex
	accounts []Account
	sessions map[string]string
	carts    map[string]json.RawMessage
	reviews  map[string][]map[string]any
	nextID   int

	// Calls records "METHOD /path" for every request served.
	Calls []string
	// DeletedProducts lists ids removed through DELETE /api/products/{id}.
	DeletedProducts []string
}

// NewBackend starts a fake backend seeded with accounts.
func NewBackend(t testing.TB, accounts ...Account) (*Backend, *httptest.Server) {
	t.Helper()

	b := &Backend{
		accounts: accounts,
		sessions: map[string]string{},
		carts:    map[string]json.RawMessage{},
		reviews:  map[string][]map[string]any{},
	}
	ts := httptest.NewServer(b.handler())
	t.Cleanup(ts.Close)
	return b, ts
}

// Expire drops every backend session, as the backend's own timeout would.
func (b *Backend) Expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = map[string]string{}
}

// Cart returns the raw cart stored for the account with the given email.
func (b *Backend) Cart(email string) json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.accounts {
		if a.Email == email {
			return b.carts[a.ID]
		}
	}
	return nil
}

// Called reports whether the call was served.
func (b *Backend) Called(call string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.Calls {
		if c == call {
			return true
		}
	}
	return false
}

func (b *Backend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /registro", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Name, Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, a := range b.accounts {
			if a.Email == body.Email {
				reply(w, http.StatusConflict, map[string]any{"ok": false, "msg": "El email ya está registrado"})
				return
			}
		}
		b.nextID++
		b.accounts = append(b.accounts, Account{
			ID: "u" + strconv.Itoa(100+b.nextID), Name: body.Name, Email: body.Email, Password: body.Password, Role: "cliente",
		})
		reply(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, a := range b.accounts {
			if a.Email == body.Email && a.Password == body.Password {
				b.nextID++
				token := "srv-" + strconv.Itoa(b.nextID)
				b.sessions[token] = a.ID
				http.SetCookie(w, &http.Cookie{Name: "connect.sid", Value: token, Path: "/", HttpOnly: true})
				reply(w, http.StatusOK, map[string]any{"ok": true, "user": map[string]any{
					"_id": a.ID, "name": a.Name, "email": a.Email, "rol": a.Role,
				}})
				return
			}
		}
		reply(w, http.StatusUnauthorized, map[string]any{"ok": false, "msg": "Credenciales inválidas"})
	})

	mux.HandleFunc("GET /logout", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("connect.sid"); err == nil {
			b.mu.Lock()
			delete(b.sessions, ck.Value)
			b.mu.Unlock()
		}
		reply(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("GET /api/session", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.account(r); !ok {
			reply(w, http.StatusUnauthorized, map[string]any{"ok": false})
			return
		}
		reply(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("PUT /api/profile", func(w http.ResponseWriter, r *http.Request) {
		acc, ok := b.account(r)
		if !ok {
			reply(w, http.StatusUnauthorized, map[string]any{"ok": false, "msg": "No autenticado"})
			return
		}
		var body struct{ Name, Email string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		for i := range b.accounts {
			if b.accounts[i].ID == acc.ID {
				b.accounts[i].Name = body.Name
				b.accounts[i].Email = body.Email
			}
		}
		b.mu.Unlock()
		reply(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		acc, ok := b.account(r)
		if !ok {
			reply(w, http.StatusOK, map[string]any{"ok": false})
			return
		}
		b.mu.Lock()
		items := b.carts[acc.ID]
		b.mu.Unlock()
		if items == nil {
			items = json.RawMessage(`[]`)
		}
		reply(w, http.StatusOK, map[string]any{"ok": true, "items": items})
	})

	mux.HandleFunc("POST /api/cart", func(w http.ResponseWriter, r *http.Request) {
		acc, ok := b.account(r)
		if !ok {
			reply(w, http.StatusUnauthorized, map[string]any{"ok": false, "msg": "No autenticado"})
			return
		}
		var body struct {
			Items json.RawMessage `json:"items"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.carts[acc.ID] = body.Items
		b.mu.Unlock()
		reply(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("GET /api/reviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		items := b.reviews[r.PathValue("id")]
		b.mu.Unlock()
		if items == nil {
			items = []map[string]any{}
		}
		reply(w, http.StatusOK, map[string]any{"ok": true, "reviews": items})
	})

	mux.HandleFunc("POST /api/reviews", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.account(r); !ok {
			reply(w, http.StatusUnauthorized, map[string]any{"ok": false, "msg": "No autenticado"})
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		id, _ := body["productId"].(string)
		b.mu.Lock()
		b.reviews[id] = append(b.reviews[id], body)
		b.mu.Unlock()
		reply(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("GET /api/admin/users", func(w http.ResponseWriter, r *http.Request) {
		if !b.isAdmin(r) {
			reply(w, http.StatusForbidden, map[string]any{"ok": false, "msg": "Acceso denegado"})
			return
		}
		b.mu.Lock()
		admins := []map[string]any{}
		for _, a := range b.accounts {
			if a.Role == "admin" {
				admins = append(admins, map[string]any{"_id": a.ID, "nombre": a.Name, "email": a.Email})
			}
		}
		b.mu.Unlock()
		reply(w, http.StatusOK, map[string]any{"ok": true, "admins": admins})
	})

	mux.HandleFunc("DELETE /api/admin/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !b.isAdmin(r) {
			reply(w, http.StatusForbidden, map[string]any{"ok": false, "msg": "Acceso denegado"})
			return
		}
		b.mu.Lock()
		kept := b.accounts[:0]
		for _, a := range b.accounts {
			if a.ID != r.PathValue("id") {
				kept = append(kept, a)
			}
		}
		b.accounts = kept
		b.mu.Unlock()
		reply(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("DELETE /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !b.isAdmin(r) {
			reply(w, http.StatusForbidden, map[string]any{"ok": false, "msg": "Acceso denegado"})
			return
		}
		b.mu.Lock()
		b.DeletedProducts = append(b.DeletedProducts, r.PathValue("id"))
		b.mu.Unlock()
		reply(w, http.StatusOK, map[string]any{"ok": true})
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.Calls = append(b.Calls, r.Method+" "+r.URL.Path)
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func (b *Backend) account(r *http.Request) (Account, bool) {
	ck, err := r.Cookie("connect.sid")
	if err != nil {
		return Account{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.sessions[ck.Value]
	if !ok {
		return Account{}, false
	}
	for _, a := range b.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

func (b *Backend) isAdmin(r *http.Request) bool {
	acc, ok := b.account(r)
	return ok && acc.Role == "admin"
}

func reply(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
