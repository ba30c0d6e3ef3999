package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
	"go.uber.org/zap"
)

// AppVersion is set at build time with -ldflags "-X ...cmd.AppVersion=v1.2.3".
var AppVersion = "v0.0.0"

const releasesURL = "https://api.github.com/repos/nulzo/reliability-forge/releases/latest"

type GitHubRelease struct {
	TagName string `json:"tag_name"`
}

// CheckForUpdates logs a warning when a newer release exists. Every failure
// is silent.
func CheckForUpdates(ctx context.Context, logger *zap.Logger) {
	client := &http.Client{Timeout: 2 * time.Second}

	latest, outdated, err := latestRelease(ctx, client, releasesURL, AppVersion)
	if err != nil {
		logger.Debug("Update check skipped", zap.Error(err))
		return
	}
	if outdated {
		logger.Warn(fmt.Sprintf("You are running an outdated version (%s). The latest version is %s.", AppVersion, latest))
	}
}

func latestRelease(ctx context.Context, client *http.Client, url, current string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("release lookup returned %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", false, err
	}

	cur, err := version.NewVersion(current)
	if err != nil {
		return "", false, err
	}
	latest, err := version.NewVersion(release.TagName)
	if err != nil {
		return "", false, err
	}

	return release.TagName, cur.LessThan(latest), nil
}
