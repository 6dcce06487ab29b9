package thumb

import (
	"path/filepath"
	"strings"
)

// Class is the kind of preview a file can produce.
type Class int

const (
	Unknown Class = iota
	Raster
	Vector
	Video
	PDF
	EPUB
	Audio
	Document
)

func (c Class) String() string {
	switch c {
	case Raster:
		return "raster"
	case Vector:
		return "vector"
	case Video:
		return "video"
	case PDF:
		return "pdf"
	case EPUB:
		return "epub"
	case Audio:
		return "audio"
	case Document:
		return "document"
	default:
		return "unknown"
	}
}

// Renderable reports whether files of class c get a generated thumbnail.
func (c Class) Renderable() bool {
	switch c {
	case Raster, Vector, Video, PDF, EPUB:
		return true
	}
	return false
}

var classByExt = map[string]Class{
	"png": Raster, "jpg": Raster, "jpeg": Raster, "gif": Raster,
	"bmp": Raster, "tif": Raster, "tiff": Raster, "webp": Raster,
	"heic": Raster, "heif": Raster,

	"svg": Vector,

	"mp4": Video, "m4v": Video, "mkv": Video, "webm": Video,
	"mov": Video, "avi": Video, "wmv": Video, "flv": Video, "av1": Video,

	"pdf":  PDF,
	"epub": EPUB,

	"mp3": Audio, "flac": Audio, "ogg": Audio, "opus": Audio,
	"wav": Audio, "m4a": Audio, "aac": Audio,

	"txt": Document, "md": Document, "org": Document, "rst": Document,
	"csv": Document, "json": Document, "yaml": Document, "yml": Document,
	"toml": Document, "doc": Document, "docx": Document, "odt": Document,
	"xls": Document, "xlsx": Document, "ods": Document, "ppt": Document,
	"pptx": Document, "rtf": Document, "html": Document, "go": Document,
}

// Classify maps a file name to its class by extension.
func Classify(path string) Class {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return classByExt[ext]
}

func isHEIF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".heic" || ext == ".heif"
}
