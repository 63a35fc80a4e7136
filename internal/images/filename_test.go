package images

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "photo.png", "photo.png"},
		{"uppercase", "My Photo.JPG", "my-photo.jpg"},
		{"accents and punctuation", "Špéciål Name!!.PNG", "special-name.png"},
		{"apostrophes", "série d'été.jpeg", "serie-d-ete.jpeg"},
		{"double extension", "archive.tar.gz", "archive.tar.gz"},
		{"dotfile", ".bashrc", "bashrc"},
		{"leading dots", "..hidden", "hidden"},
		{"empty", "", "file"},
		{"nothing salvageable", "???", "file"},
		{"spaces collapse", "a   b.png", "a-b.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("a", 300) + ".png"
	got := sanitizeFilename(long)
	assert.Equal(t, strings.Repeat("a", 120)+".png", got)
}
