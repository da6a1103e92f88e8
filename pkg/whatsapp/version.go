package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"golang.org/x/sync/singleflight"
)

const defaultVersionRefreshInterval = 10 * time.Minute

type VersionStatus struct {
	Current       string     `json:"current"`
	LastRefreshed *time.Time `json:"lastRefreshed,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// VersionRefresher keeps the advertised WhatsApp Web version current.
// Concurrent refreshes share one request and refreshes closer together
// than minInterval are skipped unless forced.
type VersionRefresher struct {
	minInterval time.Duration
	httpClient  *http.Client
	fetch       func(ctx context.Context, httpClient *http.Client) (*store.WAVersionContainer, error)

	group     singleflight.Group
	mu        sync.RWMutex
	lastAt    *time.Time
	lastError string
}

func NewVersionRefresher(minInterval time.Duration) *VersionRefresher {
	if minInterval < 0 {
		minInterval = defaultVersionRefreshInterval
	}
	return &VersionRefresher{
		minInterval: minInterval,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		fetch:       whatsmeow.GetLatestVersion,
	}
}

func (v *VersionRefresher) Status() VersionStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()

	status := VersionStatus{Current: store.GetWAVersion().String(), LastError: v.lastError}
	if v.lastAt != nil {
		t := *v.lastAt
		status.LastRefreshed = &t
	}
	return status
}

// Refresh fetches the latest version and applies it. The boolean reports
// whether a fetch was attempted.
func (v *VersionRefresher) Refresh(ctx context.Context, force bool) (VersionStatus, bool, error) {
	if !force && v.minInterval > 0 {
		v.mu.RLock()
		last := v.lastAt
		v.mu.RUnlock()
		if last != nil && time.Since(*last) < v.minInterval {
			return v.Status(), false, nil
		}
	}

	_, err, _ := v.group.Do("refresh", func() (interface{}, error) {
		latest, err := v.fetch(ctx, v.httpClient)
		if err == nil && latest == nil {
			err = errors.New("latest WhatsApp Web version is nil")
		}

		v.mu.Lock()
		defer v.mu.Unlock()
		now := time.Now()
		v.lastAt = &now
		if err != nil {
			v.lastError = err.Error()
			return nil, err
		}
		store.SetWAVersion(*latest)
		v.lastError = ""
		return nil, nil
	})
	return v.Status(), true, err
}
