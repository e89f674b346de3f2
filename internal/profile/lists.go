package profile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Default file names inside the server's saved config directory
const (
	AdminListFile = "AllowedCheaterSteamIDs.txt"
	WhitelistFile = "PlayersJoinNoCheckList.txt"
)

// Lists reads the server profile's admin list and whitelist
type Lists struct {
	adminPath     string
	whitelistPath string
}

// NewLists creates a reader; empty paths resolve to the default file names inside dir
func NewLists(dir, adminPath, whitelistPath string) *Lists {
	if adminPath == "" && dir != "" {
		adminPath = filepath.Join(dir, AdminListFile)
	}
	if whitelistPath == "" && dir != "" {
		whitelistPath = filepath.Join(dir, WhitelistFile)
	}
	return &Lists{adminPath: adminPath, whitelistPath: whitelistPath}
}

// Admins returns the admin ids
func (l *Lists) Admins(ctx context.Context) ([]string, error) {
	return readIDList(ctx, l.adminPath)
}

// Whitelist returns the ids allowed to join without checks
func (l *Lists) Whitelist(ctx context.Context) ([]string, error) {
	return readIDList(ctx, l.whitelistPath)
}

// readIDList reads one id per line; blanks and # comments are skipped and a missing file is empty
func readIDList(ctx context.Context, path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ids, nil
}
