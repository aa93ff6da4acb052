package sync

import (
	"context"

	"github.com/Growth-Sheriff/dernekv1-sub001/internal/logging"
)

// PullReport summarizes the pull half of a sync cycle.
type PullReport struct {
	Tables    int   `json:"tables"`
	Records   int   `json:"records"`
	Watermark int64 `json:"watermark"`
}

// pull fetches the remote delta since the given watermark and applies it to
// the local entity tables in one transaction. The watermark advances only
// after the local apply succeeds, and only forwards; the new value is the
// time the pull request was initiated, so anything the server wrote later
// is re-fetched next cycle.
func (e *Engine) pull(ctx context.Context, since int64) (*PullReport, error) {
	pullStarted := e.now()

	resp, err := e.client.Pull(ctx, since)
	if err != nil {
		return &PullReport{}, err
	}

	applied, err := e.store.ApplyRemoteRecords(resp.Data)
	if err != nil {
		return &PullReport{}, err
	}

	watermark := pullStarted.Unix()
	if err := e.store.SetWatermark(watermark); err != nil {
		return &PullReport{}, err
	}

	report := &PullReport{
		Tables:    len(resp.Data),
		Records:   applied,
		Watermark: watermark,
	}
	logging.Info("pull completed", map[string]any{
		"tables":    report.Tables,
		"records":   report.Records,
		"watermark": report.Watermark,
	})
	return report, nil
}
