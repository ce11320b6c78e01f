// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package call

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

const reportTimeout = 10 * time.Second

// CallReport is the end-of-call summary record persisted through the
// backend's message endpoint.
type CallReport struct {
	Content      string `json:"content"`
	ChatID       string `json:"chatId"`
	Type         string `json:"type"`
	CallDuration int    `json:"callDuration"`
}

// reporter submits end-of-call records. Submission is fire-and-forget: a
// failure is logged and counted, never surfaced to the leave path.
type reporter struct {
	siteURL    string
	authToken  string
	httpClient *http.Client
	log        mlog.LoggerIFace
	metrics    Metrics
}

func newReporter(siteURL, authToken string, log mlog.LoggerIFace, metrics Metrics) *reporter {
	return &reporter{
		siteURL:   siteURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: reportTimeout,
		},
		log:     log,
		metrics: metrics,
	}
}

// formatDuration renders an elapsed call time as "<m>m<ss>s", seconds always
// two digits.
func formatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
}

func (r *reporter) submit(roomID string, duration time.Duration) {
	report := CallReport{
		Content:      fmt.Sprintf("Call ended • %s", formatDuration(duration)),
		ChatID:       roomID,
		Type:         "call",
		CallDuration: int(duration.Round(time.Second).Seconds()),
	}

	if err := r.post(report); err != nil {
		r.log.Error("failed to submit call report", mlog.Err(err), mlog.String("roomID", roomID))
		r.metrics.IncReportErrors()
	}
}

func (r *reporter) post(report CallReport) error {
	payload, err := json.Marshal(&report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, r.siteURL+"/api/message", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.authToken)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post report: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("request failed with status %s", resp.Status)
	}

	return nil
}
