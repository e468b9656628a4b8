package model

// ExtraData is an out-of-band payload attached to a chat turn.
type ExtraData struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Source ExtraDataSource `json:"source"`
}

// ExtraDataSource carries the serialized payload of an ExtraData item.
type ExtraDataSource struct {
	Type      string `json:"type"`
	MediaType string `json:"mediaType"`
	Data      string `json:"data"`
}

const (
	ExtraDataTypeJSON   = "json"
	ExtraDataNameFilter = "filter"
	MediaTypeJSON       = "application/json"
)
