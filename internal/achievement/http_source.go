package achievement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPSource fetches snapshots from a JSON endpoint. A GET to
// <endpoint>/<appid> must return an array of records in the shape of
// wireRecord.
type HTTPSource struct {
	endpoint string
	client   *http.Client
}

// wireRecord mirrors the player achievement schema, where the unlocked
// flag is 0/1 and the unlock time is in Unix seconds.
type wireRecord struct {
	APIName     string  `json:"apiname"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Achieved    int     `json:"achieved"`
	Percent     float64 `json:"percent"`
	UnlockTime  int64   `json:"unlocktime"`
}

func NewHTTPSource(endpoint string) *HTTPSource {
	return &HTTPSource{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) Snapshot(ctx context.Context, appID uint32) (Snapshot, error) {
	url := s.endpoint + "/" + strconv.FormatUint(uint64(appID), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("GET %s: HTTP %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wire []wireRecord
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding snapshot for %d: %w", appID, err)
	}

	snap := make(Snapshot, 0, len(wire))
	for _, w := range wire {
		r := Record{
			APIName:     w.APIName,
			Name:        w.Name,
			Description: w.Description,
			Icon:        w.Icon,
			Unlocked:    w.Achieved != 0,
			Percent:     w.Percent,
		}
		if w.UnlockTime > 0 {
			t := time.Unix(w.UnlockTime, 0).UTC()
			r.UnlockTime = &t
		}
		snap = append(snap, r)
	}
	return snap, nil
}
