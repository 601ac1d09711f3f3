package client

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// ErrNotInstalled is returned for operations on games missing locally.
var ErrNotInstalled = errors.New("game is not installed")

// InstalledGame is the metadata.json kept next to each installed game.
type InstalledGame struct {
	GameID      int       `json:"gameId"`
	Name        string    `json:"name"`
	Executable  string    `json:"executable,omitempty"`
	InstalledAt time.Time `json:"installedAt"`
	SizeBytes   int64     `json:"sizeBytes"`
}

// Library manages the local install directory.
type Library struct {
	root string
}

const metadataFile = "metadata.json"

// NewLibrary returns a manager rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{root: dir}
}

func (l *Library) gameDir(gameID int) string {
	return filepath.Join(l.root, fmt.Sprintf("game_%d", gameID))
}

// IsInstalled reports whether a game has a local install.
func (l *Library) IsInstalled(gameID int) bool {
	_, err := os.Stat(filepath.Join(l.gameDir(gameID), metadataFile))
	return err == nil
}

// Get returns the metadata of one installed game.
func (l *Library) Get(gameID int) (InstalledGame, error) {
	data, err := os.ReadFile(filepath.Join(l.gameDir(gameID), metadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return InstalledGame{}, ErrNotInstalled
	}
	if err != nil {
		return InstalledGame{}, err
	}
	var g InstalledGame
	if err := json.Unmarshal(data, &g); err != nil {
		return InstalledGame{}, err
	}
	return g, nil
}

// List returns every installed game, sorted by name.
func (l *Library) List() ([]InstalledGame, error) {
	entries, err := os.ReadDir(l.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var games []InstalledGame
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(l.root, e.Name(), metadataFile))
		if err != nil {
			continue
		}
		var g InstalledGame
		if json.Unmarshal(data, &g) == nil {
			games = append(games, g)
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Name < games[j].Name })
	return games, nil
}

// Install extracts a downloaded ZIP into the library and writes metadata.
// The archive is removed on success.
func (l *Library) Install(gameID int, name, zipPath string) (InstalledGame, error) {
	dir := l.gameDir(gameID)
	if err := os.RemoveAll(dir); err != nil {
		return InstalledGame{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return InstalledGame{}, err
	}

	size, err := extractZip(zipPath, dir)
	if err != nil {
		os.RemoveAll(dir)
		return InstalledGame{}, err
	}

	meta := InstalledGame{
		GameID:      gameID,
		Name:        name,
		Executable:  findExecutable(dir),
		InstalledAt: time.Now().UTC(),
		SizeBytes:   size,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return InstalledGame{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), data, 0o644); err != nil {
		return InstalledGame{}, err
	}

	_ = os.Remove(zipPath)
	return meta, nil
}

// Launch starts the installed game's executable and returns immediately.
func (l *Library) Launch(gameID int) error {
	meta, err := l.Get(gameID)
	if err != nil {
		return err
	}
	if meta.Executable == "" {
		return errors.New("no executable found in the install directory")
	}
	exePath := filepath.Join(l.gameDir(gameID), meta.Executable)
	cmd := exec.Command(exePath)
	cmd.Dir = l.gameDir(gameID)
	return cmd.Start()
}

// Remove deletes a local install.
func (l *Library) Remove(gameID int) error {
	if !l.IsInstalled(gameID) {
		return ErrNotInstalled
	}
	return os.RemoveAll(l.gameDir(gameID))
}

// extractZip unpacks archive into dir, rejecting entries that escape it.
func extractZip(archive, dir string) (int64, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	var total int64
	for _, f := range r.File {
		cleaned := filepath.Clean(filepath.FromSlash(f.Name))
		if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) || filepath.IsAbs(cleaned) {
			return 0, fmt.Errorf("archive entry escapes install dir: %s", f.Name)
		}
		target := filepath.Join(dir, cleaned)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return 0, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return 0, err
		}

		src, err := f.Open()
		if err != nil {
			return 0, err
		}
		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode()|0o600)
		if err != nil {
			src.Close()
			return 0, err
		}
		n, err := io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// findExecutable picks the most plausible entry point of an install dir:
// first .exe on Windows, otherwise the first regular file at the top level.
func findExecutable(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var fallback string
	for _, e := range entries {
		if e.IsDir() || e.Name() == metadataFile {
			continue
		}
		if runtime.GOOS == "windows" {
			if strings.EqualFold(filepath.Ext(e.Name()), ".exe") {
				return e.Name()
			}
		}
		if fallback == "" {
			fallback = e.Name()
		}
	}
	return fallback
}
