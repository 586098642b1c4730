//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Delivery is one send request the application made to the mail API.
type Delivery struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// Mailbox stands in for the transactional mail API. It records every send request and
// answers with the configured status.
type Mailbox struct {
	server *httptest.Server

	mu         sync.Mutex
	status     int
	deliveries []Delivery
}

func NewMailbox(t *testing.T) *Mailbox {
	t.Helper()

	m := &Mailbox{status: http.StatusOK}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.server.Close)
	return m
}

func (m *Mailbox) serve(w http.ResponseWriter, r *http.Request) {
	var d Delivery
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.deliveries = append(m.deliveries, d)
	status := m.status
	m.mu.Unlock()

	w.WriteHeader(status)
	_, _ = w.Write([]byte(http.StatusText(status)))
}

func (m *Mailbox) URL() string {
	return m.server.URL
}

// RespondWith makes subsequent send requests answer with status.
func (m *Mailbox) RespondWith(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

func (m *Mailbox) Deliveries() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Delivery(nil), m.deliveries...)
}

func (m *Mailbox) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = http.StatusOK
	m.deliveries = nil
}
