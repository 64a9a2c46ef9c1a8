// Package extract pulls requested fields out of a broadcast payload.
package extract

import (
	"github.com/gyaneshwarpardhi/broadcastevent/internal/metrics"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
)

// Extract copies every requested field that is present in p as a string.
// Missing or non-string fields are skipped and reported in missing; partial
// payloads are normal traffic, so this never fails. fields never holds keys
// outside actions.
func Extract(p *payload.Payload, actions []string) (fields map[string]string, missing []string) {
	out := make(map[string]string, len(actions))
	for _, name := range actions {
		var (
			raw any
			ok  bool
		)
		if p != nil && p.Fields != nil {
			raw, ok = p.Fields[name]
		}
		s, isString := raw.(string)
		if !ok || !isString {
			metrics.FieldsMissing.Inc()
			missing = append(missing, name)
			continue
		}
		out[name] = s
	}
	return out, missing
}
