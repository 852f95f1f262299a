package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage represents a stage or progress update
type WSProgressMessage struct {
	Type       string         `json:"type"`
	DownloadID string         `json:"downloadId"`
	Status     DownloadStatus `json:"status"`
	Stage      Stage          `json:"stage"`
	Progress   int            `json:"progress"`
}

// WSCompleteMessage represents download completion
type WSCompleteMessage struct {
	Type       string `json:"type"`
	DownloadID string `json:"downloadId"`
	FilePath   string `json:"filePath"`
}

// WSErrorMessage represents a failed download
type WSErrorMessage struct {
	Type       string  `json:"type"`
	DownloadID string  `json:"downloadId"`
	Error      WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
