package vdfs

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// Text fields are stored as Windows-1252.
var codepage = charmap.Windows1252

// EncodeName encodes an entry name into a field of exactly width bytes,
// padded with NameFill.
//
// Names are never truncated: a name that does not fit returns ErrNameTooLong,
// since cutting it could make two distinct names collide.
func EncodeName(name string, width int) ([]byte, error) {
	if name == "" || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "/\\\x00") || strings.HasSuffix(name, string(rune(NameFill))) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	raw, ok := encode(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not representable in Windows-1252", ErrInvalidName, name)
	}
	if len(raw) > width {
		return nil, fmt.Errorf("%w: %q is %d bytes, limit is %d", ErrNameTooLong, name, len(raw), width)
	}

	return pad(raw, width, NameFill), nil
}

// DecodeName trims the padding of an on-disk name field.
func DecodeName(field []byte) string {
	return decode(bytes.TrimRight(field, " \x00"))
}

// EncodeText encodes s into a field of exactly width bytes padded with fill.
// Characters outside Windows-1252 become '?'. If the encoded text does not fit
// it is cut to width and truncated reports true.
func EncodeText(s string, width int, fill byte) (field []byte, truncated bool) {
	raw, _ := encode(s)
	if len(raw) > width {
		raw = raw[:width]
		truncated = true
	}
	return pad(raw, width, fill), truncated
}

// DecodeComment returns the comment stored in field, up to the first
// CommentFill byte.
func DecodeComment(field []byte) string {
	if i := bytes.IndexByte(field, CommentFill); i != -1 {
		field = field[:i]
	}
	return decode(field)
}

// DecodeSignature returns the signature stored in field without its padding.
func DecodeSignature(field []byte) string {
	return decode(bytes.TrimRight(field, string(rune(SignatureFill))))
}

// encode converts s to Windows-1252. Runes without a mapping become '?' and
// ok reports false.
func encode(s string) (raw []byte, ok bool) {
	ok = true
	raw = make([]byte, 0, len(s))
	for _, r := range s {
		b, mapped := codepage.EncodeRune(r)
		if !mapped {
			b, ok = '?', false
		}
		raw = append(raw, b)
	}
	return raw, ok
}

func decode(raw []byte) string {
	var sb strings.Builder
	for _, b := range raw {
		sb.WriteRune(codepage.DecodeByte(b))
	}
	return sb.String()
}

func pad(raw []byte, width int, fill byte) []byte {
	field := bytes.Repeat([]byte{fill}, width)
	copy(field, raw)
	return field
}

// PackTime packs t into a 32-bit DOS date:
//
//	bits  0-4   seconds / 2
//	bits  5-10  minute
//	bits 11-15  hour
//	bits 16-20  day
//	bits 21-24  month
//	bits 25-31  year - 1980
//
// The fields are taken in t's location. Dates outside 1980..2107 are clamped.
func PackTime(t time.Time) uint32 {
	switch {
	case t.Year() < 1980:
		t = time.Date(1980, time.January, 1, 0, 0, 0, 0, t.Location())
	case t.Year() > 2107:
		t = time.Date(2107, time.December, 31, 23, 59, 58, 0, t.Location())
	}

	return uint32(t.Year()-1980)<<25 |
		uint32(t.Month())<<21 |
		uint32(t.Day())<<16 |
		uint32(t.Hour())<<11 |
		uint32(t.Minute())<<5 |
		uint32(t.Second()/2)
}

// UnpackTime is the inverse of PackTime. The result is in UTC.
func UnpackTime(v uint32) time.Time {
	return time.Date(
		int(v>>25)+1980,
		time.Month(v>>21&0x0F),
		int(v>>16&0x1F),
		int(v>>11&0x1F),
		int(v>>5&0x3F),
		int(v&0x1F)*2,
		0,
		time.UTC,
	)
}
