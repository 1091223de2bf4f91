package signature

import "testing"

func TestRegistry_OffsetZeroHeadersNonEmpty(t *testing.T) {
	// Every offset-zero signature needs a non-empty header so the scan
	// planner has a Header[0] to index it under; the planner's own tests
	// check the first-byte index it builds.
	for _, s := range Registry {
		if s.HeaderOffset != 0 {
			continue
		}
		if len(s.Header) == 0 {
			t.Fatalf("signature %s has empty header", s.Name)
		}
	}
}

func TestMinSizeAndHeaderEnd(t *testing.T) {
	s := &Signature{Header: []byte("ustar"), HeaderOffset: 257}
	if got := s.MinSize(); got != 262 {
		t.Fatalf("MinSize() = %d, want 262", got)
	}
	if got := s.HeaderEnd(); got != 262 {
		t.Fatalf("HeaderEnd() = %d, want 262", got)
	}
}

func TestParsePNGSize(t *testing.T) {
	// 8-byte PNG magic, then one IHDR chunk, then IEND.
	data := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	data = append(data, 0x00, 0x00, 0x00, 0x0D) // IHDR length = 13
	data = append(data, []byte("IHDR")...)
	data = append(data, make([]byte, 13)...)
	data = append(data, make([]byte, 4)...) // crc
	data = append(data, 0x00, 0x00, 0x00, 0x00)
	data = append(data, []byte("IEND")...)
	data = append(data, make([]byte, 4)...) // crc

	n, ok := parsePNGSize(data)
	if !ok {
		t.Fatalf("parsePNGSize: expected ok")
	}
	if n != int64(len(data)) {
		t.Fatalf("parsePNGSize = %d, want %d", n, len(data))
	}
}

func TestParsePNGSize_Truncated(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}
	if _, ok := parsePNGSize(data); ok {
		t.Fatalf("parsePNGSize: expected !ok on truncated chunk")
	}
}

func TestParseBMPSize(t *testing.T) {
	data := make([]byte, 6)
	data[2], data[3], data[4], data[5] = 0x00, 0x04, 0x00, 0x00 // 1024 LE
	n, ok := parseBMPSize(data)
	if !ok || n != 1024 {
		t.Fatalf("parseBMPSize = (%d, %v), want (1024, true)", n, ok)
	}
}

func TestParseRIFFSize(t *testing.T) {
	data := make([]byte, 8)
	data[4], data[5], data[6], data[7] = 0x08, 0x00, 0x00, 0x00 // 8 LE
	n, ok := parseRIFFSize(data)
	if !ok || n != 16 {
		t.Fatalf("parseRIFFSize = (%d, %v), want (16, true)", n, ok)
	}
}

func TestParseZIPSize(t *testing.T) {
	// Local header + minimal EOCD with a 3-byte comment.
	eocd := append([]byte{0x50, 0x4B, 0x05, 0x06}, make([]byte, 16)...)
	eocd = append(eocd, 0x03, 0x00) // comment length = 3
	eocd = append(eocd, []byte("abc")...)
	data := append([]byte{0x50, 0x4B, 0x03, 0x04}, eocd...)

	n, ok := parseZIPSize(data)
	if !ok {
		t.Fatalf("parseZIPSize: expected ok")
	}
	if n != int64(len(data)) {
		t.Fatalf("parseZIPSize = %d, want %d", n, len(data))
	}
}

func TestParseZIPSize_NoEOCD(t *testing.T) {
	data := []byte{0x50, 0x4B, 0x03, 0x04, 0x01, 0x02, 0x03}
	if _, ok := parseZIPSize(data); ok {
		t.Fatalf("parseZIPSize: expected !ok with no EOCD")
	}
}

func TestRIFFSubtype(t *testing.T) {
	tests := []struct {
		subtype string
		want    string
	}{
		{"WAVE", "wav"},
		{"AVI ", "avi"},
		{"WEBP", "webp"},
		{"XXXX", "riff"},
	}
	for _, tt := range tests {
		data := append([]byte("RIFF"), 0, 0, 0, 0)
		data = append(data, []byte(tt.subtype)...)
		if got := RIFFSubtype(data); got != tt.want {
			t.Errorf("RIFFSubtype(%q) = %q, want %q", tt.subtype, got, tt.want)
		}
	}
}

func TestFtypBrand(t *testing.T) {
	tests := []struct {
		brand string
		want  string
	}{
		{"isom", "mp4"},
		{"M4A ", "m4a"},
		{"qt  ", "mov"},
		{"3gp4", "3gp"},
	}
	for _, tt := range tests {
		data := append([]byte{0, 0, 0, 0}, []byte("ftyp")...)
		data = append(data, []byte(tt.brand)...)
		if got := FtypBrand(data); got != tt.want {
			t.Errorf("FtypBrand(%q) = %q, want %q", tt.brand, got, tt.want)
		}
	}
}

func TestMaxHeaderEnd(t *testing.T) {
	got := MaxHeaderEnd()
	// ISO's CD001 at offset 32769 dominates every other registry entry.
	want := int64(32769 + len("CD001"))
	if got != want {
		t.Fatalf("MaxHeaderEnd() = %d, want %d", got, want)
	}
}
