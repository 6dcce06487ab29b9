package thumb

import (
	"errors"
	"os/exec"
	"strings"
)

// ErrHelperUnavailable is returned when rendering needs an external program
// that is not installed.
var ErrHelperUnavailable = errors.New("thumbnail helper not installed")

// Helper identifies an external thumbnailing program.
type Helper int

const (
	HelperFFmpeg Helper = iota // video frames
	HelperPdftoppm             // first PDF page
	HelperEpubThumbnailer      // EPUB cover
)

func (h Helper) String() string {
	switch h {
	case HelperFFmpeg:
		return "ffmpeg"
	case HelperPdftoppm:
		return "pdftoppm"
	default:
		return "gnome-epub-thumbnailer"
	}
}

// HelperInfo describes one helper as found on this system.
type HelperInfo struct {
	Helper    Helper
	Name      string // Display name
	Command   string // Resolved path, or the bare command when missing
	Available bool
	Version   string
}

// Helpers maps each available helper to its executable path.
type Helpers map[Helper]string

type helperProbe struct {
	helper      Helper
	names       []string
	versionFlag string
}

var probes = []helperProbe{
	{HelperFFmpeg, []string{"ffmpeg"}, "-version"},
	{HelperPdftoppm, []string{"pdftoppm"}, "-v"},
	{HelperEpubThumbnailer, []string{"gnome-epub-thumbnailer"}, ""},
}

// DetectHelpers checks which helpers are installed.
func DetectHelpers() []HelperInfo {
	infos := make([]HelperInfo, 0, len(probes))
	for _, p := range probes {
		info := HelperInfo{
			Helper:  p.helper,
			Name:    p.helper.String() + " (not installed)",
			Command: p.names[0],
		}
		for _, name := range p.names {
			path, err := exec.LookPath(name)
			if err != nil {
				continue
			}
			info.Name = p.helper.String()
			info.Command = path
			info.Available = true
			if p.versionFlag != "" {
				info.Version = getCommandVersion(path, p.versionFlag)
			}
			break
		}
		infos = append(infos, info)
	}
	return infos
}

// Available returns the helpers in infos that were found.
func Available(infos []HelperInfo) Helpers {
	h := make(Helpers, len(infos))
	for _, info := range infos {
		if info.Available {
			h[info.Helper] = info.Command
		}
	}
	return h
}

func getCommandVersion(cmd string, versionFlag string) string {
	// pdftoppm prints its version on stderr
	out, err := exec.Command(cmd, versionFlag).CombinedOutput()
	if err != nil && len(out) == 0 {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}
