package entity

// Frame is a single still image retained from a scanned video.
// Index is assigned in extraction order, starting at 0. Path is the local
// file written by the selector; ObjectKey is set once the frame has been
// uploaded to the frame bucket and is what gets persisted with results.
type Frame struct {
	Index     int    `json:"index"`
	Path      string `json:"path"`
	ObjectKey string `json:"object_key,omitempty"`
}

// StorageKey returns the identifier a frame should be persisted and
// displayed under: the uploaded object key when present, the local path
// otherwise.
func (f Frame) StorageKey() string {
	if f.ObjectKey != "" {
		return f.ObjectKey
	}
	return f.Path
}
