package ingest

import "github.com/WessleyAI/partselect-assistant/engine/domain"

// Prepared is a validated part with its index document. Vector is empty
// until the embed stage runs.
type Prepared struct {
	Part     domain.Part
	Document domain.Document
}

// dlqMessage is published to the DLQ when a part cannot be ingested.
type dlqMessage struct {
	Payload []byte `json:"payload"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}
