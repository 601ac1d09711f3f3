package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/aminox1/ludostore/internal/auth"
	"github.com/aminox1/ludostore/internal/store"
	"github.com/aminox1/ludostore/internal/worker"
)

type testEnv struct {
	srv     *Server
	ts      *httptest.Server
	catalog *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	catalog, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = catalog.Close() })
	if err := catalog.Seed(nil); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	authMgr := auth.NewManager(ctx)

	packer := worker.NewWorker(catalog, worker.Config{
		PayloadDir: filepath.Join(dir, "payloads"),
		QueueSize:  5,
	})
	packer.Start()
	t.Cleanup(packer.Stop)

	srv := NewServer(catalog, authMgr, packer, Config{
		StagingDir: filepath.Join(dir, "staging"),
	})
	t.Cleanup(srv.Shutdown)

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, catalog: catalog}
}

// login hits the real endpoint and returns the session token.
func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(e.ts.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login for %s returned %d", email, resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	if out.Token == "" {
		t.Fatal("login response missing token")
	}
	return out.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestRegisterAndProfile(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{
		"email":       "newbie@example.com",
		"displayName": "Newbie",
		"password":    "hunter22",
	}
	resp := env.do(t, http.MethodPost, "/auth/register", "", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register returned %d", resp.StatusCode)
	}
	out := decodeBody[map[string]any](t, resp)
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatal("register response missing token")
	}

	// Duplicate email must be rejected.
	resp = env.do(t, http.MethodPost, "/auth/register", "", body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register returned %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/profile", token, nil)
	profile := decodeBody[map[string]any](t, resp)
	if profile["displayName"] != "Newbie" {
		t.Fatalf("profile displayName = %v", profile["displayName"])
	}
}

func TestCatalogListAndDetails(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/games", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list games returned %d", resp.StatusCode)
	}
	page := decodeBody[struct {
		Items []GameDTO `json:"items"`
		Total int       `json:"total"`
	}](t, resp)
	if page.Total == 0 || len(page.Items) == 0 {
		t.Fatal("expected seeded games in catalog")
	}

	first := page.Items[0]
	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/games/%d", first.ID), "", nil)
	details := decodeBody[GameDTO](t, resp)
	if details.Name != first.Name {
		t.Fatalf("details name = %q, want %q", details.Name, first.Name)
	}
	if details.IsOwned {
		t.Fatal("anonymous caller should never own a game")
	}

	resp = env.do(t, http.MethodGet, "/api/games/99999", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing game returned %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPurchaseFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, store.SeedPlayerEmail, "password")

	resp := env.do(t, http.MethodGet, "/api/games", "", nil)
	page := decodeBody[struct {
		Items []GameDTO `json:"items"`
	}](t, resp)
	gameID := page.Items[0].ID

	// Unauthenticated purchase is rejected.
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/games/%d/purchase", gameID), "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous purchase returned %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/games/%d/purchase", gameID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purchase returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Buying twice must fail.
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/games/%d/purchase", gameID), token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("double purchase returned %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	// The game now shows up in the caller's library with isOwned set.
	resp = env.do(t, http.MethodGet, "/api/mygames", token, nil)
	mine := decodeBody[struct {
		Items []GameDTO `json:"items"`
		Total int       `json:"total"`
	}](t, resp)
	if mine.Total != 1 || len(mine.Items) != 1 {
		t.Fatalf("mygames total = %d, want 1", mine.Total)
	}
	if mine.Items[0].ID != gameID || !mine.Items[0].IsOwned {
		t.Fatalf("mygames entry = %+v", mine.Items[0])
	}
}

func TestDownloadRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, store.SeedPlayerEmail, "password")

	resp := env.do(t, http.MethodGet, "/api/games", "", nil)
	page := decodeBody[struct {
		Items []GameDTO `json:"items"`
	}](t, resp)
	gameID := page.Items[0].ID

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/games/%d/download", gameID), token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("download without ownership returned %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminGameLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, store.SeedAdminEmail, "admin123")
	player := env.login(t, store.SeedPlayerEmail, "password")

	// Players cannot reach admin routes.
	resp := env.do(t, http.MethodPost, "/api/admin/games", player, map[string]any{"name": "Nope"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("player create returned %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/admin/games", admin, map[string]any{
		"name":        "Test Quest",
		"description": "A quest for tests",
		"price":       9.99,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create game returned %d", resp.StatusCode)
	}
	created := decodeBody[map[string]int](t, resp)
	id := created["id"]

	resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/games/%d", id), admin, map[string]any{
		"name":  "Test Quest II",
		"price": 4.99,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update game returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/games/%d", id), "", nil)
	details := decodeBody[GameDTO](t, resp)
	if details.Name != "Test Quest II" || details.Price != 4.99 {
		t.Fatalf("updated game = %+v", details)
	}

	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/games/%d", id), admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete game returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/games/%d", id), "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted game returned %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminCategoryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, store.SeedAdminEmail, "admin123")

	resp := env.do(t, http.MethodPost, "/api/admin/categories", admin, map[string]string{
		"name": "Rougelike", "description": "typo on purpose",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create category returned %d", resp.StatusCode)
	}
	created := decodeBody[map[string]int](t, resp)
	id := created["id"]

	resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/categories/%d", id), admin, map[string]string{
		"name": "Roguelike", "description": "fixed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update category returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/categories", "", nil)
	cats := decodeBody[[]CategoryDTO](t, resp)
	found := false
	for _, c := range cats {
		if c.ID == id {
			found = true
			if c.Name != "Roguelike" || c.Description != "fixed" {
				t.Fatalf("updated category = %+v", c)
			}
		}
	}
	if !found {
		t.Fatal("created category missing from listing")
	}

	resp = env.do(t, http.MethodPut, "/api/admin/categories/99999", admin, map[string]string{"name": "Ghost"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("update of missing category returned %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/categories/%d", id), admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete category returned %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// uploadImage posts a PNG through the admin multipart endpoint.
func (e *testEnv) uploadImage(t *testing.T, token string, gameID int, primary bool, sortOrder int) int {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="shot.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("creating multipart part: %v", err)
	}
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\nfake-pixels"))
	if primary {
		_ = mw.WriteField("primary", "true")
	}
	_ = mw.WriteField("sortOrder", strconv.Itoa(sortOrder))
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/api/admin/games/%d/images", e.ts.URL, gameID), &buf)
	if err != nil {
		t.Fatalf("building upload request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("uploading image: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("image upload returned %d", resp.StatusCode)
	}
	out := decodeBody[map[string]int](t, resp)
	return out["id"]
}

func TestImageUploadAndGallery(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, store.SeedAdminEmail, "admin123")

	resp := env.do(t, http.MethodGet, "/api/games", "", nil)
	page := decodeBody[struct {
		Items []GameDTO `json:"items"`
	}](t, resp)
	gameID := page.Items[0].ID

	primaryID := env.uploadImage(t, admin, gameID, true, 0)
	lastID := env.uploadImage(t, admin, gameID, false, 2)
	middleID := env.uploadImage(t, admin, gameID, false, 1)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/games/%d/images", gameID), "", nil)
	gallery := decodeBody[[]struct {
		ID        int  `json:"id"`
		IsPrimary bool `json:"isPrimary"`
		SortOrder int  `json:"sortOrder"`
	}](t, resp)
	if len(gallery) != 3 {
		t.Fatalf("gallery has %d images, want 3", len(gallery))
	}
	wantOrder := []int{primaryID, middleID, lastID}
	for i, img := range gallery {
		if img.ID != wantOrder[i] {
			t.Fatalf("gallery order = %v, want primary then ascending sortOrder %v", gallery, wantOrder)
		}
	}
	if !gallery[0].IsPrimary || gallery[1].SortOrder != 1 {
		t.Fatalf("gallery metadata = %+v", gallery)
	}

	// The blob round-trips with its content type.
	blobResp := env.do(t, http.MethodGet, fmt.Sprintf("/api/images/%d", primaryID), "", nil)
	defer blobResp.Body.Close()
	if blobResp.StatusCode != http.StatusOK {
		t.Fatalf("image fetch returned %d", blobResp.StatusCode)
	}
	if ct := blobResp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("image content type = %q", ct)
	}

	// The catalog DTO points at the primary image.
	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/games/%d", gameID), "", nil)
	details := decodeBody[GameDTO](t, resp)
	if details.PrimaryImageID != primaryID {
		t.Fatalf("primaryImageId = %d, want %d", details.PrimaryImageID, primaryID)
	}
}

func TestPlayersEndpointAndPresenceSocket(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, store.SeedPlayerEmail, "password")

	// Anonymous socket dials are rejected before the upgrade.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + env.ts.URL[4:] + "/ws/players"
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err == nil {
		t.Fatal("anonymous websocket dial succeeded (should fail)")
	}

	conn, resp, err := websocket.Dial(ctx, wsURL+"?token="+token, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("authenticated dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The connect broadcast doubles as the welcome roster.
	var ev Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("reading welcome roster: %v", err)
	}
	if ev.Type != "players" {
		t.Fatalf("welcome event type = %q, want players", ev.Type)
	}
	foundOnline := false
	for _, p := range ev.Players {
		if p.DisplayName == "Test Player" && p.IsOnline {
			foundOnline = true
		}
	}
	if !foundOnline {
		t.Fatalf("roster missing online Test Player: %+v", ev.Players)
	}

	// Status changes are re-broadcast to subscribers.
	if err := wsjson.Write(ctx, conn, Message{Type: "set_status", Status: "In Match"}); err != nil {
		t.Fatalf("sending set_status: %v", err)
	}
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("reading status broadcast: %v", err)
	}
	gotStatus := ""
	for _, p := range ev.Players {
		if p.DisplayName == "Test Player" {
			gotStatus = p.Status
		}
	}
	if gotStatus != "In Match" {
		t.Fatalf("broadcast status = %q, want In Match", gotStatus)
	}

	// The REST snapshot agrees with the socket roster.
	httpResp := env.do(t, http.MethodGet, "/api/players?page=1&pageSize=10", token, nil)
	if httpResp.StatusCode != http.StatusOK {
		t.Fatalf("players endpoint returned %d", httpResp.StatusCode)
	}
	snapshot := decodeBody[struct {
		Items []struct {
			DisplayName string `json:"displayName"`
			IsOnline    bool   `json:"isOnline"`
			Status      string `json:"status"`
		} `json:"items"`
		Total int `json:"total"`
	}](t, httpResp)
	if snapshot.Total == 0 {
		t.Fatal("players snapshot is empty")
	}
	found := false
	for _, p := range snapshot.Items {
		if p.DisplayName == "Test Player" {
			found = true
			if !p.IsOnline || p.Status != "In Match" {
				t.Fatalf("snapshot entry = %+v", p)
			}
		}
	}
	if !found {
		t.Fatal("snapshot missing Test Player")
	}
}

func TestRequestRateLimiter(t *testing.T) {
	rl := NewRequestRateLimiter(3)
	ip := "10.0.0.1"
	for i := 0; i < 3; i++ {
		if !rl.Allow(ip) {
			t.Fatalf("request %d was limited too early", i+1)
		}
	}
	if rl.Allow(ip) {
		t.Fatal("fourth request within the window should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("limiter must track addresses independently")
	}
}
