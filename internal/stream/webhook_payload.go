package stream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Percent accepts a JSON percentage encoded as either a string ("66.6")
// or a number (66.6); the provider uses strings.
type Percent struct {
	Value float64
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Percent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	s := string(data)
	if s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	p.Value = v
	p.Set = true
	return nil
}

// WebhookStatus is the status block of a webhook notification.
type WebhookStatus struct {
	State           string  `json:"state"`
	PctComplete     Percent `json:"pctComplete"`
	ErrorReasonCode string  `json:"errorReasonCode"`
	ErrorReasonText string  `json:"errorReasonText"`
}

// WebhookPlayback carries the two streaming-format URLs.
type WebhookPlayback struct {
	HLS  string `json:"hls"`
	Dash string `json:"dash"`
}

// WebhookEvent is a provider status notification. Only UID is mandatory;
// all other fields are optional and merged keep-if-absent.
type WebhookEvent struct {
	UID       string            `json:"uid"`
	Status    WebhookStatus     `json:"status"`
	Duration  float64           `json:"duration"`
	Thumbnail string            `json:"thumbnail"`
	Playback  WebhookPlayback   `json:"playback"`
	Meta      map[string]string `json:"meta"`
}
