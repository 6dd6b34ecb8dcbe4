package gallery

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SecureFilename reduces a client-supplied filename to a flat ASCII name that is safe
// to use as an object key segment. Accents are decomposed and dropped, path
// separators become underscores, anything outside [A-Za-z0-9_.-] is removed and
// leading/trailing dots and underscores are trimmed. The result may be empty.
//
//	SecureFilename("../../etc/passwd")   == "etc_passwd"
//	SecureFilename("My cool movie.mov")  == "My_cool_movie.mov"
//	SecureFilename("café.jpg")           == "cafe.jpg"
func SecureFilename(filename string) string {
	decomposed := norm.NFKD.String(filename)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	s := strings.NewReplacer("/", " ", `\`, " ").Replace(b.String())
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")
	if s == "" {
		return ""
	}
	base, _, _ := strings.Cut(s, ".")
	if windowsDeviceNames[strings.ToUpper(base)] {
		s = "_" + s
	}
	return s
}

// SplitFilename splits a sanitized filename at its last dot.
//
//	"photo.jpg"      -> ("photo", "jpg")
//	"archive.tar.gz" -> ("archive.tar", "gz")
//	"README"         -> ("README", "")
func SplitFilename(filename string) (name, extension string) {
	i := strings.LastIndex(filename, ".")
	if i <= 0 || i == len(filename)-1 {
		return filename, ""
	}
	return filename[:i], filename[i+1:]
}
