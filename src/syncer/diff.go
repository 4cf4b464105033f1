package syncer

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/aymanbagabas/go-udiff"
	"github.com/gizmoapp/gizmo/src/chat"
)

// DiffStatus classifies how a chat differs between local and remote
type DiffStatus string

const (
	DiffChanged    DiffStatus = "changed"
	DiffRemoteOnly DiffStatus = "remote-only"
	DiffLocalOnly  DiffStatus = "local-only"
)

// RecordDiff describes one chat that a pull would change, or that only
// exists locally
type RecordDiff struct {
	ID     string
	Status DiffStatus
	// Unified is a unified diff of the JSON renderings, empty for local-only
	Unified string
}

// Diff previews what a pull would do without modifying anything. It reads
// the remote store regardless of network trust.
func (c *Coordinator) Diff(ctx context.Context) ([]RecordDiff, error) {
	if c.remote == nil {
		return nil, ErrNoRemote
	}

	records, _, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	local := c.store.Snapshot()
	seen := make(map[string]struct{}, len(records))
	var out []RecordDiff

	for _, rec := range records {
		seen[rec.ID] = struct{}{}
		remoteText := render(rec)

		cur, ok := local[rec.ID]
		if !ok {
			out = append(out, RecordDiff{
				ID:      rec.ID,
				Status:  DiffRemoteOnly,
				Unified: udiff.Unified("/dev/null", "remote/"+rec.ID, "", remoteText),
			})
			continue
		}

		localText := render(cur)
		if localText == remoteText {
			continue
		}
		out = append(out, RecordDiff{
			ID:      rec.ID,
			Status:  DiffChanged,
			Unified: udiff.Unified("local/"+rec.ID, "remote/"+rec.ID, localText, remoteText),
		})
	}

	for id := range local {
		if _, ok := seen[id]; !ok {
			out = append(out, RecordDiff{ID: id, Status: DiffLocalOnly})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func render(c chat.Chat) string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return ""
	}
	return string(data) + "\n"
}
