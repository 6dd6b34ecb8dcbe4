package gallery

import "testing"

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\Users\me\shot.png`, "C_Users_me_shot.png"},
		{"café.jpg", "cafe.jpg"},
		{"i contain cool \u00fcml\u00e4uts.txt", "i_contain_cool_umlauts.txt"},
		{"..hidden.", "hidden"},
		{"con.jpg", "_con.jpg"},
		{"<script>.png", "script.png"},
		{"日本.jpg", "jpg"},
		{"...", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SecureFilename(tt.in); got != tt.want {
			t.Errorf("SecureFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitFilename(t *testing.T) {
	tests := []struct {
		in, name, ext string
	}{
		{"photo.jpg", "photo", "jpg"},
		{"archive.tar.gz", "archive.tar", "gz"},
		{"README", "README", ""},
		{"trailing.", "trailing.", ""},
	}
	for _, tt := range tests {
		name, ext := SplitFilename(tt.in)
		if name != tt.name || ext != tt.ext {
			t.Errorf("SplitFilename(%q) = (%q, %q), want (%q, %q)", tt.in, name, ext, tt.name, tt.ext)
		}
	}
}
