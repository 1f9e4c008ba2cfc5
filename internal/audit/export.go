package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"time"
)

var csvHeader = []string{"timestamp", "actor_id", "module", "action", "details"}

// WriteCSV encodes events as CSV with the details column as compact JSON.
func WriteCSV(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, event := range events {
		actor := ""
		if event.ActorID != nil {
			actor = event.ActorID.String()
		}
		details, err := json.Marshal(event.Detail)
		if err != nil {
			return nil, err
		}
		record := []string{
			event.OccurredAt.UTC().Format(time.RFC3339),
			actor,
			event.Module,
			event.Action,
			string(details),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
