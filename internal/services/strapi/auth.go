package strapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// AuthClient obtains bearer tokens for service identities and for the
// remote's super admin.
type AuthClient struct {
	client *Client
	admin  Identity

	// adminCreds is kept apart from the per-user cache so an admin token is
	// never handed to a user-scoped call.
	adminCreds *CredentialCache

	logins singleflight.Group

	mu               sync.Mutex
	lastAdminAttempt time.Time
}

func newAuthClient(c *Client, opts Options) *AuthClient {
	return &AuthClient{
		client:     c,
		admin:      opts.Admin,
		adminCreds: NewCredentialCache(opts.TokenReuseWindow, c.Backoff, opts.Cipher),
	}
}

// Admin returns the configured super admin identity.
func (a *AuthClient) Admin() Identity {
	return a.admin
}

// Token returns a cached credential for identity or logs in. Concurrent
// callers for the same identity share one login.
func (a *AuthClient) Token(ctx context.Context, identity Identity) (Credential, error) {
	if cred, ok := a.client.Credentials.Get(identity.Email); ok {
		return cred, nil
	}
	v, err, _ := a.logins.Do("user:"+key(identity.Email), func() (interface{}, error) {
		if cred, ok := a.client.Credentials.Get(identity.Email); ok {
			return cred, nil
		}
		return a.Login(ctx, identity)
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

// Login always contacts the remote and replaces the cached credential.
func (a *AuthClient) Login(ctx context.Context, identity Identity) (Credential, error) {
	resp, err := a.client.Do(ctx, Request{
		Method:       http.MethodPost,
		Path:         "/api/auth/local",
		Body:         loginRequest{Identifier: identity.Email, Password: identity.Password},
		ResourceType: "auth",
	})
	if err != nil {
		return Credential{}, &AuthError{Email: identity.Email, Op: "login", Err: err}
	}

	var out loginResponse
	if err := resp.Decode(&out); err != nil {
		return Credential{}, &AuthError{Email: identity.Email, Op: "login", Err: err}
	}
	if out.JWT == "" {
		return Credential{}, &AuthError{Email: identity.Email, Op: "login", Err: errors.New("empty jwt in response")}
	}

	cred := Credential{Token: out.JWT, AcquiredAt: a.client.now(), Profile: out.User}
	if err := a.client.Credentials.Put(identity.Email, cred); err != nil {
		return Credential{}, &AuthError{Email: identity.Email, Op: "login", Err: err}
	}
	a.client.logger.Info("logged in to strapi as %s", identity.Email)
	return cred, nil
}

// Invalidate drops the cached credential for email, forcing the next Token
// call to log in.
func (a *AuthClient) Invalidate(email string) {
	a.client.Credentials.Invalidate(email)
}

// RegisterUser creates a service account. An existing account yields an
// error matching ErrAlreadyExists.
func (a *AuthClient) RegisterUser(ctx context.Context, identity Identity) (Credential, error) {
	username := identity.Username
	if username == "" {
		username = identity.Email
	}
	resp, err := a.client.Do(ctx, Request{
		Method:       http.MethodPost,
		Path:         "/api/auth/local/register",
		Body:         registerRequest{Username: username, Email: identity.Email, Password: identity.Password},
		ResourceType: "auth",
	})
	if err != nil {
		return Credential{}, &AuthError{Email: identity.Email, Op: "register", Err: err}
	}

	var out loginResponse
	if err := resp.Decode(&out); err != nil {
		return Credential{}, &AuthError{Email: identity.Email, Op: "register", Err: err}
	}
	cred := Credential{Token: out.JWT, AcquiredAt: a.client.now(), Profile: out.User}
	if cred.Token != "" {
		if err := a.client.Credentials.Put(identity.Email, cred); err != nil {
			return Credential{}, &AuthError{Email: identity.Email, Op: "register", Err: err}
		}
	}
	a.client.logger.Info("registered strapi user %s", identity.Email)
	return cred, nil
}

// RegisterOrLogin registers identity and falls back to a login when the
// account exists or the registration was rejected for another reason.
// An unreachable remote fails immediately.
func (a *AuthClient) RegisterOrLogin(ctx context.Context, identity Identity) (Credential, error) {
	cred, err := a.RegisterUser(ctx, identity)
	if err == nil && cred.Token != "" {
		return cred, nil
	}
	if err != nil && !a.loginAfterRegister(identity.Email, err) {
		return Credential{}, err
	}
	return a.Token(ctx, identity)
}

// AdminToken returns the cached admin credential or logs in. Another login
// is refused with ErrLoginBackoff while the previous attempt is younger than
// the reuse window.
func (a *AuthClient) AdminToken(ctx context.Context) (Credential, error) {
	if cred, ok := a.adminCreds.Get(a.admin.Email); ok {
		return cred, nil
	}
	v, err, _ := a.logins.Do("admin:"+key(a.admin.Email), func() (interface{}, error) {
		if cred, ok := a.adminCreds.Get(a.admin.Email); ok {
			return cred, nil
		}

		a.mu.Lock()
		last := a.lastAdminAttempt
		now := a.client.now()
		if !last.IsZero() && now.Sub(last) < a.adminCreds.Window() {
			a.mu.Unlock()
			return nil, &AuthError{Email: a.admin.Email, Op: "admin login", Err: ErrLoginBackoff}
		}
		a.lastAdminAttempt = now
		a.mu.Unlock()

		return a.AdminLogin(ctx)
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

// AdminLogin always contacts the remote and replaces the cached admin
// credential.
func (a *AuthClient) AdminLogin(ctx context.Context) (Credential, error) {
	resp, err := a.client.Do(ctx, Request{
		Method:       http.MethodPost,
		Path:         "/admin/login",
		Body:         adminLoginRequest{Email: a.admin.Email, Password: a.admin.Password},
		ResourceType: "admin",
	})
	if err != nil {
		return Credential{}, &AuthError{Email: a.admin.Email, Op: "admin login", Err: err}
	}
	return a.storeAdmin(resp, "admin login")
}

// InvalidateAdmin drops the admin credential and clears the login back-off
// so the next AdminToken call logs in at once.
func (a *AuthClient) InvalidateAdmin() {
	a.adminCreds.Invalidate(a.admin.Email)
	a.mu.Lock()
	a.lastAdminAttempt = time.Time{}
	a.mu.Unlock()
}

// RegisterAdmin creates the super admin. The remote refuses once one exists,
// which yields an error matching ErrAlreadyExists.
func (a *AuthClient) RegisterAdmin(ctx context.Context) (Credential, error) {
	body := adminRegisterRequest{
		Email:     a.admin.Email,
		Password:  a.admin.Password,
		Firstname: a.admin.FirstName,
		Lastname:  a.admin.LastName,
	}
	resp, err := a.client.Do(ctx, Request{
		Method:       http.MethodPost,
		Path:         "/admin/register-admin",
		Body:         body,
		ResourceType: "admin",
	})
	if err != nil {
		return Credential{}, &AuthError{Email: a.admin.Email, Op: "admin register", Err: err}
	}
	return a.storeAdmin(resp, "admin register")
}

// RegisterOrLoginAdmin mirrors RegisterOrLogin for the super admin.
func (a *AuthClient) RegisterOrLoginAdmin(ctx context.Context) (Credential, error) {
	cred, err := a.RegisterAdmin(ctx)
	if err == nil && cred.Token != "" {
		return cred, nil
	}
	if err != nil && !a.loginAfterRegister(a.admin.Email, err) {
		return Credential{}, err
	}
	return a.AdminToken(ctx)
}

func (a *AuthClient) storeAdmin(resp *Response, op string) (Credential, error) {
	var out adminLoginResponse
	if err := resp.Decode(&out); err != nil {
		return Credential{}, &AuthError{Email: a.admin.Email, Op: op, Err: err}
	}
	cred := Credential{Token: out.Data.Token, AcquiredAt: a.client.now(), Profile: out.Data.User}
	if cred.Token == "" {
		return cred, nil
	}
	if err := a.adminCreds.Put(a.admin.Email, cred); err != nil {
		return Credential{}, &AuthError{Email: a.admin.Email, Op: op, Err: err}
	}
	a.client.logger.Info("strapi admin session established for %s", a.admin.Email)
	return cred, nil
}

func (a *AuthClient) loginAfterRegister(email string, err error) bool {
	if errors.Is(err, ErrAlreadyExists) {
		return true
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Unreachable() {
		return false
	}
	a.client.logger.Warn("strapi registration of %s rejected, trying login: %v", email, err)
	return true
}
