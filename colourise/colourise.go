// Package colourise decorates terminal output with ANSI colours.
package colourise

import (
	"fmt"
	"hash/crc32"
)

// palette is the ansi 256 colour codes that read well against a dark terminal
var palette = func() []uint8 {
	var p []uint8
	for c := 9; c <= 231; c++ {
		switch {
		case c > 14 && c < 21, c > 51 && c < 63, c > 87 && c < 92, c == 145, c == 159:
			continue
		}
		p = append(p, uint8(c))
	}
	return p
}()

// ApplyColour returns value wrapped in the escape sequences for a colour picked by a
// deterministic hash of value, so a trace id or span name keeps its colour across runs.
func ApplyColour(value string) string {
	i := crc32.ChecksumIEEE([]byte(value)) % uint32(len(palette))
	return fmt.Sprintf("\033[1;38;5;%dm%s\033[0m", palette[i], value)
}

// ErrorHighlight renders s as white on red.
func ErrorHighlight(s string) string {
	return fmt.Sprintf("\033[1;37;41m%s\033[0m", s)
}
