package strapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Identity is a set of login credentials for the remote service.
type Identity struct {
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
}

// Credential is a bearer token and when it was obtained.
type Credential struct {
	Token      string
	AcquiredAt time.Time
	Profile    map[string]interface{}
}

// HealthState is the last known liveness of the remote service.
type HealthState struct {
	Healthy   bool
	CheckedAt time.Time
}

// Response is a buffered 2xx answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Entry is one content entry in the remote's {id, attributes} envelope.
type Entry struct {
	ID         int64                  `json:"id"`
	Attributes map[string]interface{} `json:"attributes"`
}

// Entries decodes a collection answer {data: [...]}.
func (r *Response) Entries() ([]Entry, error) {
	var out struct {
		Data []Entry `json:"data"`
	}
	if err := r.Decode(&out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Entry decodes a single-entry answer {data: {...}}.
func (r *Response) Entry() (*Entry, error) {
	var out struct {
		Data *Entry `json:"data"`
	}
	if err := r.Decode(&out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	JWT  string                 `json:"jwt"`
	User map[string]interface{} `json:"user"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type adminRegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

type adminLoginResponse struct {
	Data struct {
		Token string                 `json:"token"`
		User  map[string]interface{} `json:"user"`
	} `json:"data"`
}

type errorEnvelope struct {
	Error *struct {
		Status  int    `json:"status"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}
