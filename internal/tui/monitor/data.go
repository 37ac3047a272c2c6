package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/marcus/pinmap/internal/models"
	"github.com/marcus/pinmap/internal/store"
)

// Source is the read side of the location store the monitor displays.
type Source interface {
	Search(f store.Filter) ([]models.Location, error)
	Pending() ([]models.PendingOperation, error)
	Status() (*models.StorageStatus, error)
}

// FetchData retrieves all data needed for the monitor display.
func FetchData(src Source, f store.Filter) RefreshDataMsg {
	msg := RefreshDataMsg{
		Timestamp: time.Now(),
		Filter:    f,
	}

	locs, err := src.Search(f)
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.Locations = locs

	pending, err := src.Pending()
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.Pending = pending

	status, err := src.Status()
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.Status = status

	return msg
}

// ParseFilter turns filter box text into a store filter. A "cat:<name>"
// token selects a category; the remaining words form the search query.
func ParseFilter(text string) store.Filter {
	var f store.Filter
	var words []string
	for _, w := range strings.Fields(text) {
		if c, ok := strings.CutPrefix(w, "cat:"); ok && c != "" {
			f.Category = models.Category(strings.ToLower(c))
			continue
		}
		words = append(words, w)
	}
	f.Query = strings.Join(words, " ")
	return f
}

// pendingIDs returns the set of record ids with queued operations.
func pendingIDs(ops []models.PendingOperation) map[string]bool {
	ids := make(map[string]bool, len(ops))
	for _, op := range ops {
		ids[op.Data.ID] = true
	}
	return ids
}

// tickSummary describes the last sync cycle in a few words.
func tickSummary(r *store.SyncReport, err error) string {
	switch {
	case err != nil:
		return "sync failed: " + err.Error()
	case r == nil:
		return "idle"
	case r.Skipped:
		return "sync skipped"
	}
	s := fmt.Sprintf("synced %d", r.Replayed)
	if r.Dropped > 0 {
		s += fmt.Sprintf(", dropped %d", r.Dropped)
	}
	if r.Failed > 0 {
		s += fmt.Sprintf(", failed %d", r.Failed)
	}
	return s
}
