package media

import (
	"path/filepath"
	"sort"
	"strings"
)

// supportedImageExts are the upload extensions accepted for slideshow images.
var supportedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

// supportedAudioExts are the upload extensions accepted for audio tracks.
var supportedAudioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".aac":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
}

// IsSupportedImage reports whether the filename carries an accepted image
// extension. Matching is case-insensitive.
func IsSupportedImage(filename string) bool {
	return supportedImageExts[strings.ToLower(filepath.Ext(filename))]
}

// IsSupportedAudio reports whether the filename carries an accepted audio
// extension. Matching is case-insensitive.
func IsSupportedAudio(filename string) bool {
	return supportedAudioExts[strings.ToLower(filepath.Ext(filename))]
}

// SupportedImageExtensions lists the accepted image extensions in sorted order.
func SupportedImageExtensions() []string {
	return sortedExts(supportedImageExts)
}

// SupportedAudioExtensions lists the accepted audio extensions in sorted order.
func SupportedAudioExtensions() []string {
	return sortedExts(supportedAudioExts)
}

func sortedExts(m map[string]bool) []string {
	exts := make([]string, 0, len(m))
	for ext := range m {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
