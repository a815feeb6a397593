package session

import (
	"github.com/Skryldev/imageviewer/core"
	"github.com/Skryldev/imageviewer/pipeline"
)

// boundary records a committed crop or clip.  It keeps both the decoded
// result, which becomes the effective source, and the encoded bytes written
// to the materialized file so undo/redo can rewrite it without re-running
// anything.
type boundary struct {
	core.Operation
	result  *core.Image
	encoded []byte
}

func (b *boundary) Result() *core.Image { return b.result }

var _ pipeline.Boundary = (*boundary)(nil)
