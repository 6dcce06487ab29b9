package fs

import (
	"path/filepath"
	"strings"

	"github.com/justyntemme/pikeru/internal/epoch"
)

// Kind is the resolved type of an entry. Files start as KindUnknown and
// become KindImage or KindFile once the thumbnail pipeline has looked at them.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindDirectory
	KindImage
	KindNotExist
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "dir"
	case KindImage:
		return "image"
	case KindNotExist:
		return "missing"
	default:
		return "unknown"
	}
}

// Icon names a static fallback image.
type Icon int

const (
	IconNone Icon = iota
	IconFolder
	IconUnknown
	IconDocument
	IconAudio
	IconError
)

func (i Icon) String() string {
	switch i {
	case IconFolder:
		return "folder"
	case IconUnknown:
		return "unknown"
	case IconDocument:
		return "document"
	case IconAudio:
		return "audio"
	case IconError:
		return "error"
	default:
		return "none"
	}
}

// Preview is the resolved visual for an entry: either encoded PNG bytes of a
// generated thumbnail or one of the static icons.
type Preview struct {
	Icon     Icon
	PNG      []byte
	CacheKey string
}

// IsThumbnail reports whether p carries generated image data.
func (p *Preview) IsThumbnail() bool {
	return p != nil && len(p.PNG) > 0
}

// Entry is one visible filesystem item.
type Entry struct {
	Path        string
	Name        string
	Kind        Kind
	Size        int64
	ModTime     int64 // unix seconds
	Hidden      bool
	Symlink     bool
	Recursed    bool // discovered by the crawler rather than a root listing
	Description string
	NavEpoch    epoch.Token
	ViewEpoch   epoch.Token
	Preview     *Preview
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == KindDirectory }

// Resolved reports whether the thumbnail pipeline has finished with e.
func (e Entry) Resolved() bool { return e.Preview != nil }

// Ext returns the lower-cased extension without the dot.
func (e Entry) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Name)), ".")
}

// IsHidden reports whether a base name is a dotfile.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
