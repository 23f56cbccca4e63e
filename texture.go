package kaleido

import (
	"fmt"

	"github.com/gogpu/gg"
)

// TextureState tracks whether a renderer's source texture matches the most
// recent snapshot.
//
//	Clean --SetSnapshot--> Dirty --Sync--> Uploading --> Clean
type TextureState int

const (
	TextureClean TextureState = iota
	TextureDirty
	TextureUploading
)

// String returns the state name.
func (s TextureState) String() string {
	switch s {
	case TextureClean:
		return "Clean"
	case TextureDirty:
		return "Dirty"
	case TextureUploading:
		return "Uploading"
	default:
		return fmt.Sprintf("TextureState(%d)", int(s))
	}
}

// SourceTexture holds a renderer-owned copy of the latest snapshot. Each
// snapshot is uploaded at most once, no matter how many frames draw it.
//
// Not safe for concurrent use; it belongs to the renderer's goroutine.
type SourceTexture struct {
	state       TextureState
	pending     *Snapshot
	current     *Snapshot
	pixels      *gg.Pixmap
	sizeChanged bool
	uploads     uint64
}

// State returns the upload state.
func (t *SourceTexture) State() TextureState {
	return t.state
}

// Uploads returns how many snapshots have been uploaded.
func (t *SourceTexture) Uploads() uint64 {
	return t.uploads
}

// Snapshot returns the snapshot the texture currently holds.
func (t *SourceTexture) Snapshot() *Snapshot {
	return t.current
}

// Pixels returns the uploaded texels, or nil before the first upload.
func (t *SourceTexture) Pixels() *gg.Pixmap {
	return t.pixels
}

// MarkDirty queues snap for upload. A nil snapshot, or the one already
// queued or held, leaves the state unchanged.
func (t *SourceTexture) MarkDirty(snap *Snapshot) {
	if snap == nil || snap.Image == nil || snap == t.pending || (t.pending == nil && snap == t.current) {
		return
	}
	t.pending = snap
	t.state = TextureDirty
}

// Sync uploads the pending snapshot if there is one. upload receives the
// texture's pixmap, already sized to the snapshot, and the snapshot to copy
// from. It is not called when the texture is clean.
func (t *SourceTexture) Sync(upload func(dst *gg.Pixmap, snap *Snapshot) error) error {
	if t.state != TextureDirty {
		return nil
	}
	t.state = TextureUploading

	snap := t.pending
	w, h := snap.Size()
	if t.pixels == nil || t.pixels.Width() != w || t.pixels.Height() != h {
		t.pixels = gg.NewPixmap(w, h)
		t.sizeChanged = true
	}

	if err := upload(t.pixels, snap); err != nil {
		t.state = TextureDirty
		return fmt.Errorf("kaleido: texture upload: %w", err)
	}

	t.current = snap
	t.pending = nil
	t.uploads++
	t.state = TextureClean
	return nil
}

// TakeSizeChanged reports whether the last upload reallocated the texture,
// and clears the flag.
func (t *SourceTexture) TakeSizeChanged() bool {
	changed := t.sizeChanged
	t.sizeChanged = false
	return changed
}

// Release drops all texels and snapshots.
func (t *SourceTexture) Release() {
	*t = SourceTexture{}
}

// CopyUpload is the plain upload function: a byte copy of the snapshot.
func CopyUpload(dst *gg.Pixmap, snap *Snapshot) error {
	copy(dst.Data(), snap.Image.Data())
	return nil
}
