package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// API is a thin client over the LudoStore HTTP endpoints.
type API struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPI builds a client for the given server. token may be empty for
// anonymous catalog browsing.
func NewAPI(baseURL, token string) *API {
	return &API{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Game mirrors the server's catalog DTO.
type Game struct {
	ID             int        `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Price          float64    `json:"price"`
	SizeBytes      int64      `json:"sizeBytes"`
	Categories     []Category `json:"categories"`
	IsOwned        bool       `json:"isOwned"`
	PrimaryImageID int        `json:"primaryImageId"`
	HasPayload     bool       `json:"hasPayload"`
}

// Category mirrors the server's category DTO.
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Player mirrors the presence snapshot entries.
type Player struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsOnline    bool   `json:"isOnline"`
	Status      string `json:"status"`
}

// Profile is the authenticated account summary.
type Profile struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
	Token       string   `json:"token"`
}

type gamePage struct {
	Items []Game `json:"items"`
	Total int    `json:"total"`
}

type playerPage struct {
	Items []Player `json:"items"`
	Total int      `json:"total"`
}

type apiError struct {
	Error string `json:"error"`
}

func (a *API) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Login authenticates and returns the profile carrying the session token.
func (a *API) Login(ctx context.Context, email, password string) (Profile, error) {
	var p Profile
	err := a.doJSON(ctx, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": password}, &p)
	if err == nil {
		a.token = p.Token
	}
	return p, err
}

// Register creates an account and returns the logged-in profile.
func (a *API) Register(ctx context.Context, email, displayName, password string) (Profile, error) {
	var p Profile
	err := a.doJSON(ctx, http.MethodPost, "/auth/register",
		map[string]string{"email": email, "displayName": displayName, "password": password}, &p)
	if err == nil {
		a.token = p.Token
	}
	return p, err
}

// Profile fetches the current account.
func (a *API) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	err := a.doJSON(ctx, http.MethodGet, "/api/profile", nil, &p)
	return p, err
}

// GameQuery narrows ListGames results.
type GameQuery struct {
	Name     string
	Category int
	Page     int
	PageSize int
}

func (q GameQuery) encode() string {
	v := url.Values{}
	if q.Name != "" {
		v.Set("name", q.Name)
	}
	if q.Category > 0 {
		v.Set("category", strconv.Itoa(q.Category))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// ListGames fetches a catalog page.
func (a *API) ListGames(ctx context.Context, q GameQuery) ([]Game, int, error) {
	var page gamePage
	err := a.doJSON(ctx, http.MethodGet, "/api/games"+q.encode(), nil, &page)
	return page.Items, page.Total, err
}

// MyGames fetches the caller's library.
func (a *API) MyGames(ctx context.Context, q GameQuery) ([]Game, int, error) {
	var page gamePage
	err := a.doJSON(ctx, http.MethodGet, "/api/mygames"+q.encode(), nil, &page)
	return page.Items, page.Total, err
}

// GameDetails fetches one game.
func (a *API) GameDetails(ctx context.Context, id int) (Game, error) {
	var g Game
	err := a.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/games/%d", id), nil, &g)
	return g, err
}

// Categories fetches the category list.
func (a *API) Categories(ctx context.Context) ([]Category, error) {
	var cats []Category
	err := a.doJSON(ctx, http.MethodGet, "/api/categories", nil, &cats)
	return cats, err
}

// Purchase buys a game for the current account.
func (a *API) Purchase(ctx context.Context, id int) error {
	return a.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/games/%d/purchase", id), nil, nil)
}

// Players fetches a presence snapshot page.
func (a *API) Players(ctx context.Context, page, pageSize int, search string) ([]Player, int, error) {
	v := url.Values{}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		v.Set("pageSize", strconv.Itoa(pageSize))
	}
	if search != "" {
		v.Set("search", search)
	}
	var out playerPage
	err := a.doJSON(ctx, http.MethodGet, "/api/players?"+v.Encode(), nil, &out)
	return out.Items, out.Total, err
}

// ProgressFunc receives download progress. total is 0 when the server
// does not announce a length.
type ProgressFunc func(written, total int64)

// Download streams a game's ZIP payload to destPath, reporting progress
// as chunks arrive.
func (a *API) Download(ctx context.Context, id int, destPath string, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/games/%d/download", a.baseURL, id), nil)
	if err != nil {
		return err
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	// No client timeout here, large payloads take as long as they take.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	total := resp.ContentLength
	var written int64
	buf := make([]byte, 128*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
