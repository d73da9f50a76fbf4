// Package style resolves typographic attributes and terminal colours to ANSI
// escape sequences.
package style

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/tphakala/scopelog/internal/errors"
)

const componentStyle = "style"

// ResetSequence restores the terminal's default rendition.
const ResetSequence = "\x1b[0m"

// Typo is a typographic attribute, valued by its SGR code.
type Typo uint8

const (
	Reset     Typo = 0
	Bold      Typo = 1
	Dim       Typo = 2
	Italic    Typo = 3
	Underline Typo = 4
	Blink     Typo = 5
	Inverse   Typo = 7
	Hidden    Typo = 8
	Strike    Typo = 9
)

var typoNames = map[string]Typo{
	"reset":     Reset,
	"bold":      Bold,
	"dim":       Dim,
	"italic":    Italic,
	"underline": Underline,
	"blink":     Blink,
	"inverse":   Inverse,
	"reverse":   Inverse,
	"hidden":    Hidden,
	"strike":    Strike,
}

// ParseTypo returns the attribute named s.
func ParseTypo(s string) (Typo, error) {
	t, ok := typoNames[strings.ToLower(s)]
	if !ok {
		return 0, errors.ConfigError(componentStyle, "typo", s, errors.NewStd("unknown typographic attribute"))
	}
	return t, nil
}

type colorKind uint8

const (
	kindNone colorKind = iota
	kindNamed
	kindPalette
	kindRGB
)

// Color is a foreground or background colour. The zero value means no colour.
type Color struct {
	kind    colorKind
	index   uint8 // named: 0-15, palette: 0-255
	r, g, b uint8
}

// None is the absence of colour.
var None = Color{}

var namedColors = []string{"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white"}

// Named returns one of the 16 standard colours: black, red, green, yellow,
// blue, magenta, cyan, white, optionally prefixed with "bright_".
func Named(name string) (Color, error) {
	n := strings.ToLower(name)
	offset := uint8(0)
	if rest, ok := strings.CutPrefix(n, "bright_"); ok {
		n, offset = rest, 8
	}
	for i, c := range namedColors {
		if c == n {
			return Color{kind: kindNamed, index: uint8(i) + offset}, nil
		}
	}
	return None, errors.ConfigError(componentStyle, "color", name, errors.NewStd("unknown colour name"))
}

// Index returns a colour of the 256-colour palette.
func Index(n int) (Color, error) {
	if n < 0 || n > 255 {
		return None, errors.New(fmt.Errorf("palette index %d out of range [0,255]", n)).
			Component(componentStyle).
			Category(errors.CategoryValidation).
			Setting("color", n).
			Build()
	}
	return Color{kind: kindPalette, index: uint8(n)}, nil
}

// RGB returns a 24-bit colour.
func RGB(r, g, b uint8) Color {
	return Color{kind: kindRGB, r: r, g: g, b: b}
}

// Hex parses a "#rrggbb" colour.
func Hex(s string) (Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return None, errors.ConfigError(componentStyle, "color", s, err)
	}
	r, g, b := c.RGB255()
	return RGB(r, g, b), nil
}

// ParseColor accepts a colour name, a palette index or a hex triplet.
func ParseColor(s string) (Color, error) {
	switch {
	case s == "" || strings.EqualFold(s, "none"):
		return None, nil
	case strings.HasPrefix(s, "#"):
		return Hex(s)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Index(n)
	}
	return Named(s)
}

// IsZero reports whether c is no colour.
func (c Color) IsZero() bool { return c.kind == kindNone }

func (c Color) code(background bool) string {
	switch c.kind {
	case kindNamed:
		base := 30
		if background {
			base = 40
		}
		if c.index >= 8 {
			return strconv.Itoa(base + 60 + int(c.index-8))
		}
		return strconv.Itoa(base + int(c.index))
	case kindPalette:
		if background {
			return "48;5;" + strconv.Itoa(int(c.index))
		}
		return "38;5;" + strconv.Itoa(int(c.index))
	case kindRGB:
		prefix := "38;2;"
		if background {
			prefix = "48;2;"
		}
		return fmt.Sprintf("%s%d;%d;%d", prefix, c.r, c.g, c.b)
	}
	return ""
}

// Style combines a foreground, a background and typographic attributes.
type Style struct {
	FG    Color
	BG    Color
	Typos []Typo
}

// IsZero reports whether s produces no escape sequence.
func (s Style) IsZero() bool {
	return s.FG.IsZero() && s.BG.IsZero() && len(s.Typos) == 0
}

// Escape returns the SGR sequence for s, or "" for the zero style.
func (s Style) Escape() string {
	if s.IsZero() {
		return ""
	}
	codes := make([]string, 0, len(s.Typos)+2)
	for _, t := range s.Typos {
		codes = append(codes, strconv.Itoa(int(t)))
	}
	if c := s.FG.code(false); c != "" {
		codes = append(codes, c)
	}
	if c := s.BG.code(true); c != "" {
		codes = append(codes, c)
	}
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

// Parse reads a style description such as "fg=red bg=236 bold".
// Tokens are whitespace separated; fg= and bg= take a colour, anything else
// must name a typographic attribute. The empty string is the zero style.
func Parse(spec string) (Style, error) {
	var s Style
	for tok := range strings.FieldsSeq(spec) {
		key, value, hasValue := strings.Cut(tok, "=")
		if !hasValue {
			if strings.EqualFold(tok, "none") {
				continue
			}
			t, err := ParseTypo(tok)
			if err != nil {
				return Style{}, err
			}
			s.Typos = append(s.Typos, t)
			continue
		}
		c, err := ParseColor(value)
		if err != nil {
			return Style{}, err
		}
		switch strings.ToLower(key) {
		case "fg":
			s.FG = c
		case "bg":
			s.BG = c
		default:
			return Style{}, errors.ConfigError(componentStyle, "style", tok, errors.NewStd("expected fg= or bg="))
		}
	}
	return s, nil
}

// MustParse is like Parse but panics on error. Intended for literals.
func MustParse(spec string) Style {
	s, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return s
}
