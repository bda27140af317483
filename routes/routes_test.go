package routes

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"food-share-server/config"
	"food-share-server/database/dbtest"
	"food-share-server/middleware"
	"food-share-server/models"
	"food-share-server/realtime"
	"food-share-server/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*httptest.Server
	svc Services
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			SeedEnabled:    true,
		},
		JWT:      config.JWTConfig{Secret: "routes-test-secret", ExpiryHours: 1},
		Realtime: config.RealtimeConfig{Backend: "memory", StreamKeepAlive: time.Hour, RecentLimit: 5},
		Upload:   config.UploadConfig{MaxBytes: 1 << 20},
		Jobs:     config.JobsConfig{NearbyRadiusKm: 10},
	}
	for _, m := range mutate {
		m(cfg)
	}

	db := dbtest.Open(t)
	hub := realtime.NewHub()
	tokens := services.NewTokenService(cfg.JWT)
	notifications := services.NewNotificationService(db, hub)
	upload, err := services.NewUploadService(cfg.Upload)
	require.NoError(t, err)

	svc := Services{
		Users:         services.NewUserService(db, tokens),
		Tokens:        tokens,
		Listings:      services.NewListingService(db, notifications, cfg.Jobs.NearbyRadiusKm),
		Claims:        services.NewClaimService(db, notifications),
		Notifications: notifications,
		Stats:         services.NewStatsService(db),
		Seed:          services.NewSeedService(db, notifications),
		Upload:        upload,
		Places:        services.NewPlacesService(cfg.Places),
		AI:            services.NewAIService(cfg.AI),
		Hub:           hub,
	}

	srv := httptest.NewServer(SetupRouter(cfg, NewHandler(cfg, svc), middleware.NewRateLimiter()))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, svc: svc}
}

// do sends a JSON request and returns the status and raw body
func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, string) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

type account struct {
	id    uint
	token string
}

func (s *testServer) register(t *testing.T, email string, role models.UserRole) account {
	t.Helper()

	status, body := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Test " + string(role),
		"email":    email,
		"password": "secret123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, status, body)
	return account{
		id:    uint(gjson.Get(body, "data.user.id").Uint()),
		token: gjson.Get(body, "data.token").String(),
	}
}

func (s *testServer) createListing(t *testing.T, donor account) uint {
	t.Helper()

	pickup := time.Now().Add(2 * time.Hour).UTC()
	status, body := s.do(t, http.MethodPost, "/api/listings", donor.token, gin.H{
		"donorId":     donor.id,
		"title":       "Day-old bagels",
		"description": "Two dozen assorted bagels",
		"foodType":    "bakery",
		"quantity":    "24 pieces",
		"location":    gin.H{"lat": 40.7128, "lng": -74.006, "address": "1 Broadway"},
		"pickupTime":  pickup.Format(time.RFC3339),
		"expiryTime":  pickup.Add(4 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "available", gjson.Get(body, "data.status").String())
	return uint(gjson.Get(body, "data.id").Uint())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", gjson.Get(body, "status").String())
}

func TestClaimFlow(t *testing.T) {
	srv := newTestServer(t)

	donor := srv.register(t, "donor@example.com", models.RoleDonor)
	receiver := srv.register(t, "receiver@example.com", models.RoleReceiver)
	latecomer := srv.register(t, "late@example.com", models.RoleReceiver)
	listingID := srv.createListing(t, donor)

	status, body := srv.do(t, http.MethodPost, "/api/claims", receiver.token, gin.H{
		"listingId": listingID,
		"message":   "Can pick up at 5pm",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "pending", gjson.Get(body, "data.status").String())
	assert.EqualValues(t, receiver.id, gjson.Get(body, "data.receiverId").Uint())
	claimID := gjson.Get(body, "data.id").Uint()

	status, body = srv.do(t, http.MethodGet, "/api/listings?id="+itoa(uint64(listingID)), "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "claimed", gjson.Get(body, "data.status").String())
	assert.EqualValues(t, receiver.id, gjson.Get(body, "data.claimedBy").Uint())

	status, body = srv.do(t, http.MethodPost, "/api/claims", latecomer.token, gin.H{"listingId": listingID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, gjson.Get(body, "success").Bool())

	status, body = srv.do(t, http.MethodGet, "/api/claims?listingId="+itoa(uint64(listingID)), "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, gjson.Get(body, "data").Array(), 1)

	// only the donor decides
	status, _ = srv.do(t, http.MethodPut, "/api/claims/"+itoa(claimID), receiver.token, gin.H{"status": "confirmed"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = srv.do(t, http.MethodPut, "/api/claims/"+itoa(claimID), donor.token, gin.H{"status": "confirmed"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "confirmed", gjson.Get(body, "data.status").String())
	assert.True(t, gjson.Get(body, "data.confirmedAt").Exists())

	status, _ = srv.do(t, http.MethodPut, "/api/claims/"+itoa(claimID), donor.token, gin.H{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, status)

	status, body = srv.do(t, http.MethodGet, "/api/notifications", receiver.token, nil)
	require.Equal(t, http.StatusOK, status)
	notes := gjson.Get(body, "data").Array()
	require.Len(t, notes, 1)
	assert.Equal(t, "Claim Confirmed", notes[0].Get("title").String())
	assert.False(t, notes[0].Get("read").Bool())

	noteID := notes[0].Get("id").Uint()
	status, _ = srv.do(t, http.MethodPut, "/api/notifications/"+itoa(noteID), donor.token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, body = srv.do(t, http.MethodPut, "/api/notifications/"+itoa(noteID), receiver.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, gjson.Get(body, "data.read").Bool())

	status, body = srv.do(t, http.MethodGet, "/api/notifications?userId="+itoa(uint64(donor.id)), donor.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "new_claim", gjson.Get(body, "data.0.type").String())
}

func TestClaimValidation(t *testing.T) {
	srv := newTestServer(t)
	donor := srv.register(t, "d@example.com", models.RoleDonor)
	receiver := srv.register(t, "r@example.com", models.RoleReceiver)
	listingID := srv.createListing(t, donor)

	// no token and no receiverId
	status, _ := srv.do(t, http.MethodPost, "/api/claims", "", gin.H{"listingId": listingID})
	assert.Equal(t, http.StatusBadRequest, status)

	// acting as someone else
	status, _ = srv.do(t, http.MethodPost, "/api/claims", receiver.token, gin.H{"listingId": listingID, "receiverId": donor.id})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = srv.do(t, http.MethodPost, "/api/claims", receiver.token, gin.H{"listingId": 9999})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = srv.do(t, http.MethodGet, "/api/claims/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = srv.do(t, http.MethodGet, "/api/listings?status=gone", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) { cfg.Server.AuthRequired = true })
	donor := srv.register(t, "d@example.com", models.RoleDonor)
	listingID := srv.createListing(t, donor)

	status, _ := srv.do(t, http.MethodPost, "/api/claims", "", gin.H{"listingId": listingID, "receiverId": 1})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = srv.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := srv.do(t, http.MethodGet, "/api/auth/me", donor.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "d@example.com", gjson.Get(body, "data.email").String())

	status, body = srv.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "d@example.com", "password": "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, status, body)
}

func TestSeedAndStats(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodPost, "/api/seed", "", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 4, gjson.Get(body, "data.users").Int())

	status, body = srv.do(t, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 4, gjson.Get(body, "data.listings.total").Int())
	assert.EqualValues(t, 1, gjson.Get(body, "data.claims.pending").Int())

	status, body = srv.do(t, http.MethodGet, "/api/search?q=bread", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, gjson.Get(body, "data").IsArray())

	disabled := newTestServer(t, func(cfg *config.Config) { cfg.Server.SeedEnabled = false })
	status, _ = disabled.do(t, http.MethodPost, "/api/seed", "", nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRateListingWithHeuristic(t *testing.T) {
	srv := newTestServer(t)
	donor := srv.register(t, "d@example.com", models.RoleDonor)
	listingID := srv.createListing(t, donor)

	status, body := srv.do(t, http.MethodPost, "/api/listings/"+itoa(uint64(listingID))+"/rate", donor.token, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "heuristic", gjson.Get(body, "data.source").String())
	assert.Equal(t, gjson.Get(body, "data.rating").Float(), gjson.Get(body, "data.listing.aiRating").Float())
}

func TestNotificationStreamSSE(t *testing.T) {
	srv := newTestServer(t)
	receiver := srv.register(t, "r@example.com", models.RoleReceiver)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/notifications/stream?token="+receiver.token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	event, data := readSSE(t, reader)
	require.Equal(t, "connected", event)
	assert.EqualValues(t, receiver.id, gjson.Get(data, "userId").Uint())

	_, err = srv.svc.Notifications.Create(context.Background(), models.NotificationCreate{
		UserID:  receiver.id,
		Type:    models.NotificationSystem,
		Title:   "Hello",
		Message: "Welcome aboard",
	})
	require.NoError(t, err)

	event, data = readSSE(t, reader)
	require.Equal(t, "notification", event)
	assert.EqualValues(t, 1, gjson.Get(data, "unreadCount").Int())
	assert.Equal(t, "Hello", gjson.Get(data, "notifications.0.title").String())
}

// readSSE returns the next event name and its data line
func readSSE(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()

	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && event != "":
			return event, data
		}
	}
}

func TestNotificationSocket(t *testing.T) {
	srv := newTestServer(t)
	receiver := srv.register(t, "r@example.com", models.RoleReceiver)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/notifications/ws?userId=" + itoa(uint64(receiver.id))
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://localhost:3000"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var frame socketFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "connected", frame.Type)

	require.NoError(t, conn.WriteJSON(socketFrame{Type: "refresh"}))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "ping", frame.Type)

	_, err = srv.svc.Notifications.Create(context.Background(), models.NotificationCreate{
		UserID: receiver.id, Type: models.NotificationSystem, Title: "Hi", Message: "there",
	})
	require.NoError(t, err)

	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "notification", gjson.GetBytes(payload, "type").String())
	assert.EqualValues(t, 1, gjson.GetBytes(payload, "data.unreadCount").Int())
}

func TestNotificationSocketRejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t)
	receiver := srv.register(t, "r@example.com", models.RoleReceiver)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/notifications/ws?userId=" + itoa(uint64(receiver.id))
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	if resp != nil {
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func TestListAvailableForDonorSkipsExpired(t *testing.T) {
	srv := newTestServer(t)
	donor := srv.register(t, "d@example.com", models.RoleDonor)
	freshID := srv.createListing(t, donor)

	pickup := time.Now().Add(-3 * time.Hour).UTC()
	status, body := srv.do(t, http.MethodPost, "/api/listings", donor.token, gin.H{
		"donorId":    donor.id,
		"title":      "Yesterday's soup",
		"foodType":   "prepared",
		"quantity":   "3 L",
		"location":   gin.H{"lat": 40.7128, "lng": -74.006},
		"pickupTime": pickup.Format(time.RFC3339),
		"expiryTime": pickup.Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = srv.do(t, http.MethodGet, "/api/listings?status=available&donorId="+itoa(uint64(donor.id)), "", nil)
	require.Equal(t, http.StatusOK, status)
	listings := gjson.Get(body, "data").Array()
	require.Len(t, listings, 1)
	assert.EqualValues(t, freshID, listings[0].Get("id").Uint())

	status, body = srv.do(t, http.MethodGet, "/api/listings?donorId="+itoa(uint64(donor.id)), "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, gjson.Get(body, "data").Array(), 2)

	status, body = srv.do(t, http.MethodGet, "/api/search?q=%25", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, gjson.Get(body, "data").Array())
}
