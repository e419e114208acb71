package domain

import (
	"fmt"
	"strings"
)

const DefaultContainer = "video/webm"

// Artifact is a finalized recording. Data is never mutated after Stop.
type Artifact struct {
	Data          []byte
	ContainerType string
	Chunks        int
}

func (a *Artifact) Size() int { return len(a.Data) }

// Ext derives the file extension from the container type, e.g. "video/webm;codecs=vp8" -> ".webm".
func (a *Artifact) Ext() string {
	ct := a.ContainerType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	if i := strings.IndexByte(ct, '/'); i >= 0 && i < len(ct)-1 {
		return "." + strings.TrimSpace(ct[i+1:])
	}
	return ".webm"
}

func (a *Artifact) FileName(session SessionID) string {
	return fmt.Sprintf("interview_%s%s", session, a.Ext())
}

// ServerRecord is what the storage boundary returns after a successful upload.
type ServerRecord struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}
