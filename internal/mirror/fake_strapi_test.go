package mirror

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"strapisync/internal/connectors/medusa"
	"strapisync/internal/database"
	"strapisync/internal/guard"
	"strapisync/internal/logger"
	"strapisync/internal/services/strapi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	fakeUserToken  = "user-jwt"
	fakeAdminToken = "admin-jwt"
)

// fakeStrapi is an in-memory CMS speaking enough of the REST and admin APIs
// for the engine.
type fakeStrapi struct {
	server *httptest.Server

	requests   int32
	bulkSyncs  int32
	logins     int32
	rejectNext int32
	failAdmin  int32

	mu          sync.Mutex
	types       map[string]bool
	entries     map[string]map[int64]map[string]interface{}
	users       map[int64]map[string]interface{}
	nextID      int64
	registered  map[string]bool
	adminExists bool
	calls       []string
}

func newFakeStrapi(t *testing.T, types ...string) *fakeStrapi {
	t.Helper()
	f := &fakeStrapi{
		types:      map[string]bool{},
		entries:    map[string]map[int64]map[string]interface{}{},
		users:      map[int64]map[string]interface{}{},
		registered: map[string]bool{},
	}
	for _, typ := range types {
		f.types[typ] = true
	}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		atomic.AddInt32(&f.requests, 1)
		f.mu.Lock()
		f.calls = append(f.calls, c.Request.Method+" "+c.Request.URL.Path)
		f.mu.Unlock()
		c.Next()
	})
	router.HEAD("/_health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.Any("/api/*path", f.api)
	router.Any("/admin/*path", f.admin)
	router.POST("/strapi-plugin-medusa/synchronise-medusa-tables", func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer "+fakeAdminToken {
			c.Status(http.StatusUnauthorized)
			return
		}
		atomic.AddInt32(&f.bulkSyncs, 1)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeStrapi) requestCount() int32 {
	return atomic.LoadInt32(&f.requests)
}

func (f *fakeStrapi) entriesOf(typ string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.entries[typ]))
	for id := range f.entries[typ] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.entries[typ][id])
	}
	return out
}

func (f *fakeStrapi) callsTo(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, call := range f.calls {
		if strings.Contains(call, prefix) {
			out = append(out, call)
		}
	}
	return out
}

// seedEntry stores an entry directly, as if an editor had created it.
func (f *fakeStrapi) seedEntry(typ string, attrs map[string]interface{}) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries[typ] == nil {
		f.entries[typ] = map[int64]map[string]interface{}{}
	}
	f.nextID++
	f.entries[typ][f.nextID] = attrs
	return f.nextID
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"data": nil, "error": gin.H{"status": 404, "name": "NotFoundError", "message": "Not Found"}})
}

func (f *fakeStrapi) api(c *gin.Context) {
	path := strings.Trim(c.Param("path"), "/")

	switch path {
	case "auth/local":
		atomic.AddInt32(&f.logins, 1)
		c.JSON(http.StatusOK, gin.H{"jwt": fakeUserToken, "user": gin.H{"id": 1}})
		return
	case "auth/local/register":
		var body struct {
			Email string `json:"email"`
		}
		_ = c.ShouldBindJSON(&body)
		f.mu.Lock()
		exists := f.registered[body.Email]
		f.registered[body.Email] = true
		f.mu.Unlock()
		if exists {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"status": 400, "name": "ApplicationError", "message": "Email or Username are already taken"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"jwt": fakeUserToken, "user": gin.H{"email": body.Email}})
		return
	}

	if c.GetHeader("Authorization") != "Bearer "+fakeUserToken {
		c.Status(http.StatusUnauthorized)
		return
	}
	if atomic.AddInt32(&f.rejectNext, -1) >= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"status": 401, "message": "Missing or invalid credentials"}})
		return
	}
	atomic.StoreInt32(&f.rejectNext, 0)

	typ, rawID, _ := strings.Cut(path, "/")
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.types[typ] {
		notFound(c)
		return
	}
	if f.entries[typ] == nil {
		f.entries[typ] = map[int64]map[string]interface{}{}
	}

	switch c.Request.Method {
	case http.MethodGet:
		want := c.Query("filters[medusa_id][$eq]")
		// Like the real CMS, drafts are only listed in preview.
		preview := c.Query("publicationState") == "preview"
		ids := make([]int64, 0)
		for id, attrs := range f.entries[typ] {
			if !preview && attrs["publishedAt"] == nil {
				continue
			}
			if want == "" || attrs["medusa_id"] == want {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		data := make([]gin.H, 0, len(ids))
		for _, id := range ids {
			data = append(data, gin.H{"id": id, "attributes": f.entries[typ][id]})
		}
		c.JSON(http.StatusOK, gin.H{"data": data, "meta": gin.H{"pagination": gin.H{"total": len(data)}}})
	case http.MethodPost:
		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		f.nextID++
		f.entries[typ][f.nextID] = body.Data
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": f.nextID, "attributes": body.Data}})
	case http.MethodPut, http.MethodDelete:
		id, _ := strconv.ParseInt(rawID, 10, 64)
		attrs, ok := f.entries[typ][id]
		if !ok {
			notFound(c)
			return
		}
		if c.Request.Method == http.MethodDelete {
			delete(f.entries[typ], id)
			c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "attributes": attrs}})
			return
		}
		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		f.entries[typ][id] = body.Data
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "attributes": body.Data}})
	default:
		c.Status(http.StatusMethodNotAllowed)
	}
}

func (f *fakeStrapi) admin(c *gin.Context) {
	path := strings.Trim(c.Param("path"), "/")

	if atomic.LoadInt32(&f.failAdmin) == 1 && (path == "login" || path == "register-admin") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"status": 500, "message": "database unavailable"}})
		return
	}

	switch path {
	case "login":
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": fakeAdminToken, "user": gin.H{"id": 1}}})
		return
	case "register-admin":
		f.mu.Lock()
		exists := f.adminExists
		f.adminExists = true
		f.mu.Unlock()
		if exists {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"status": 400, "message": "You cannot register a new super admin"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": fakeAdminToken, "user": gin.H{"id": 1}}})
		return
	}

	if c.GetHeader("Authorization") != "Bearer "+fakeAdminToken {
		c.Status(http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	resource, rawID, _ := strings.Cut(path, "/")
	switch {
	case resource == "roles" && c.Request.Method == http.MethodGet:
		c.JSON(http.StatusOK, gin.H{"data": []gin.H{
			{"id": 1, "code": "strapi-super-admin"},
			{"id": 2, "code": "strapi-editor"},
			{"id": 3, "code": "strapi-author"},
		}})
	case resource == "users" && rawID == "" && c.Request.Method == http.MethodGet:
		email := c.Query("filters[email][$eq]")
		results := []map[string]interface{}{}
		for _, u := range f.users {
			if email == "" || u["email"] == email {
				results = append(results, u)
			}
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"results": results}})
	case resource == "users" && rawID == "" && c.Request.Method == http.MethodPost:
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		f.nextID++
		body["id"] = f.nextID
		f.users[f.nextID] = body
		c.JSON(http.StatusCreated, gin.H{"data": body})
	case resource == "users" && rawID != "":
		id, _ := strconv.ParseInt(rawID, 10, 64)
		user, ok := f.users[id]
		if !ok {
			notFound(c)
			return
		}
		switch c.Request.Method {
		case http.MethodGet:
			c.JSON(http.StatusOK, gin.H{"data": user})
		case http.MethodPut:
			var body map[string]interface{}
			if err := c.ShouldBindJSON(&body); err != nil {
				c.Status(http.StatusBadRequest)
				return
			}
			for k, v := range body {
				user[k] = v
			}
			c.JSON(http.StatusOK, gin.H{"data": user})
		case http.MethodDelete:
			delete(f.users, id)
			c.JSON(http.StatusOK, gin.H{"data": user})
		default:
			c.Status(http.StatusMethodNotAllowed)
		}
	default:
		notFound(c)
	}
}

// testEnv bundles an engine wired to a fake CMS and an in-memory commerce
// database.
type testEnv struct {
	engine *Engine
	remote *fakeStrapi
	db     *gorm.DB
	guard  *guard.Guard
	client *strapi.Client
}

func newTestEnv(t *testing.T, remote *fakeStrapi, mutate ...func(*Options)) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.NewWithOptions(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", name), database.Options{AutoMigrate: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := guard.NewMemoryStore()
	g := guard.New(store, 50*time.Millisecond)
	t.Cleanup(func() { _ = g.Close() })

	client := strapi.NewClient(strapi.Options{
		BaseURL:            remote.server.URL,
		HTTPClient:         remote.server.Client(),
		HealthPollInterval: 10 * time.Millisecond,
		TokenReuseWindow:   time.Minute,
		MaxRetries:         3,
		Admin:              strapi.Identity{Email: "admin@example.com", Password: "secret", FirstName: "Ada", LastName: "Admin"},
	})

	opts := Options{
		ServiceUser:      strapi.Identity{Email: "sync@example.com", Username: "sync", Password: "pw"},
		MedusaBackendURL: "http://medusa:9000",
		ResyncPageSize:   2,
	}
	for _, m := range mutate {
		m(&opts)
	}

	engine, err := NewEngine(client, medusa.New(db.DB, logger.NewNop()), g, opts, logger.NewNop())
	require.NoError(t, err)

	return &testEnv{engine: engine, remote: remote, db: db.DB, guard: g, client: client}
}
