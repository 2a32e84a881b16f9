package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Calculadora <b>Casio</b> fx-991", "Calculadora Casio fx-991"},
		{"<p>uno</p><p>dos</p>", "uno dos"},
		{"<script>alert(1)</script>libro", "libro"},
		{"  muchos    espacios  ", "muchos espacios"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PlainText(tt.in), tt.in)
	}
}

func TestMultilineTextKeepsLines(t *testing.T) {
	in := "Primera línea <i>ok</i>\r\nSegunda   línea\n"
	assert.Equal(t, "Primera línea ok\nSegunda línea", MultilineText(in))
}
