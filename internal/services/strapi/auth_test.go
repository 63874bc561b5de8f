package strapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serviceUser = Identity{Email: "Sync@Example.com", Password: "pw", Username: "sync"}

func loginRoute(logins *int32, delay time.Duration) func(r *gin.Engine) {
	return func(r *gin.Engine) {
		r.POST("/api/auth/local", func(c *gin.Context) {
			var body loginRequest
			if err := c.ShouldBindJSON(&body); err != nil {
				c.Status(http.StatusBadRequest)
				return
			}
			n := atomic.AddInt32(logins, 1)
			time.Sleep(delay)
			c.JSON(http.StatusOK, gin.H{"jwt": "jwt-" + string(rune('0'+n)), "user": gin.H{"email": body.Identifier}})
		})
	}
}

func TestTokenReusesCredentialWithinWindow(t *testing.T) {
	var logins int32
	client := newTestClient(t, loginRoute(&logins, 0))

	now := time.Now()
	setClock(client, func() time.Time { return now })

	first, err := client.Auth.Token(context.Background(), serviceUser)
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", first.Token)
	assert.Equal(t, serviceUser.Email, first.Profile["email"])

	now = now.Add(30 * time.Second)
	second, err := client.Auth.Token(context.Background(), serviceUser)
	require.NoError(t, err)
	assert.Equal(t, first.Token, second.Token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))

	now = now.Add(31 * time.Second)
	third, err := client.Auth.Token(context.Background(), serviceUser)
	require.NoError(t, err)
	assert.Equal(t, "jwt-2", third.Token)
	assert.Equal(t, int32(2), atomic.LoadInt32(&logins))
}

func TestTokenWindowWidensWithBackoff(t *testing.T) {
	var logins int32
	client := newTestClient(t, loginRoute(&logins, 0))

	now := time.Now()
	setClock(client, func() time.Time { return now })

	_, err := client.Auth.Token(context.Background(), serviceUser)
	require.NoError(t, err)

	client.setBackoff(5 * time.Minute)
	now = now.Add(2 * time.Minute)

	_, err = client.Auth.Token(context.Background(), serviceUser)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))
}

func TestTokenCoalescesConcurrentLogins(t *testing.T) {
	var logins int32
	client := newTestClient(t, loginRoute(&logins, 50*time.Millisecond))

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cred, err := client.Auth.Token(context.Background(), serviceUser)
			assert.NoError(t, err)
			tokens[i] = cred.Token
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))
	for _, token := range tokens {
		assert.Equal(t, "jwt-1", token)
	}
}

func TestInvalidateForcesLogin(t *testing.T) {
	var logins int32
	client := newTestClient(t, loginRoute(&logins, 0))

	_, err := client.Auth.Token(context.Background(), serviceUser)
	require.NoError(t, err)

	client.Auth.Invalidate("sync@example.com")

	cred, err := client.Auth.Token(context.Background(), serviceUser)
	require.NoError(t, err)
	assert.Equal(t, "jwt-2", cred.Token)
}

func TestLoginFailureIsAuthError(t *testing.T) {
	client := newTestClient(t, func(r *gin.Engine) {
		r.POST("/api/auth/local", func(c *gin.Context) {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"status": 400, "name": "ValidationError", "message": "Invalid identifier or password"}})
		})
	})

	_, err := client.Auth.Token(context.Background(), serviceUser)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "login", authErr.Op)

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "Invalid identifier or password", reqErr.Message)
}

func TestRegisterOrLoginFallsBackToLogin(t *testing.T) {
	var logins int32
	client := newTestClient(t, func(r *gin.Engine) {
		loginRoute(&logins, 0)(r)
		r.POST("/api/auth/local/register", func(c *gin.Context) {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"status": 400, "name": "ApplicationError", "message": "Email or Username are already taken"}})
		})
	})

	_, err := client.Auth.RegisterUser(context.Background(), serviceUser)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	cred, err := client.Auth.RegisterOrLogin(context.Background(), serviceUser)
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", cred.Token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))
}

func TestRegisterOrLoginUsesRegistrationToken(t *testing.T) {
	var logins int32
	client := newTestClient(t, func(r *gin.Engine) {
		loginRoute(&logins, 0)(r)
		r.POST("/api/auth/local/register", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"jwt": "fresh", "user": gin.H{"username": "sync"}})
		})
	})

	cred, err := client.Auth.RegisterOrLogin(context.Background(), serviceUser)
	require.NoError(t, err)
	assert.Equal(t, "fresh", cred.Token)

	cached, err := client.Auth.Token(context.Background(), serviceUser)
	require.NoError(t, err)
	assert.Equal(t, "fresh", cached.Token)
	assert.Zero(t, atomic.LoadInt32(&logins))
}

func TestAdminTokenBacksOffAfterAttempt(t *testing.T) {
	var logins int32
	client := newTestClient(t, func(r *gin.Engine) {
		r.POST("/admin/login", func(c *gin.Context) {
			atomic.AddInt32(&logins, 1)
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"status": 400, "message": "Invalid credentials"}})
		})
	})

	_, err := client.Auth.AdminToken(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLoginBackoff))

	_, err = client.Auth.AdminToken(context.Background())
	assert.True(t, errors.Is(err, ErrLoginBackoff))
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))

	client.Auth.InvalidateAdmin()
	_, err = client.Auth.AdminToken(context.Background())
	assert.False(t, errors.Is(err, ErrLoginBackoff))
	assert.Equal(t, int32(2), atomic.LoadInt32(&logins))
}

func TestAdminTokenRetriesAfterWindow(t *testing.T) {
	var logins int32
	client := newTestClient(t, func(r *gin.Engine) {
		r.POST("/admin/login", func(c *gin.Context) {
			if atomic.AddInt32(&logins, 1) == 1 {
				c.Status(http.StatusServiceUnavailable)
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": "admin-jwt", "user": gin.H{"id": 1}}})
		})
	})

	now := time.Now()
	setClock(client, func() time.Time { return now })

	_, err := client.Auth.AdminToken(context.Background())
	require.Error(t, err)

	now = now.Add(2 * time.Minute)
	cred, err := client.Auth.AdminToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin-jwt", cred.Token)

	_, cached := client.Credentials.Get("admin@example.com")
	assert.False(t, cached, "admin token must not leak into the user cache")
}

func TestRegisterOrLoginAdmin(t *testing.T) {
	var registered, logins int32
	client := newTestClient(t, func(r *gin.Engine) {
		r.POST("/admin/register-admin", func(c *gin.Context) {
			atomic.AddInt32(&registered, 1)
			var body adminRegisterRequest
			assert.NoError(t, c.ShouldBindJSON(&body))
			assert.Equal(t, "Ada", body.Firstname)
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"status": 400, "message": "You cannot register a new super admin"}})
		})
		r.POST("/admin/login", func(c *gin.Context) {
			atomic.AddInt32(&logins, 1)
			c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": "admin-jwt"}})
		})
	})

	cred, err := client.Auth.RegisterOrLoginAdmin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin-jwt", cred.Token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&registered))
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))

	again, err := client.Auth.AdminToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cred.Token, again.Token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))
}
