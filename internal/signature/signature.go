// Package signature is the immutable registry of file-format signatures
// consumed by the scan planner (C2) and the carver (C3).
package signature

import (
	"encoding/binary"
	"bytes"

	"github.com/forensics/diskrecover/internal/model"
)

// SizeParser reads a file's own internal length field(s) from the bytes
// starting at its header. It returns false if no usable length was found.
type SizeParser func(data []byte) (int64, bool)

// Signature describes one file format well enough to find its start and,
// often, its end.
type Signature struct {
	Name         string
	Extension    string
	FileType     model.FileType
	Header       []byte
	HeaderOffset int64
	Footer       []byte
	MaxSize      int64
	SizeParser   SizeParser
}

// MinSize is the smallest byte range this signature can plausibly produce:
// enough to contain the header at its offset.
func (s *Signature) MinSize() int64 {
	return s.HeaderOffset + int64(len(s.Header))
}

// HeaderEnd is the offset one past the last header byte.
func (s *Signature) HeaderEnd() int64 {
	return s.HeaderOffset + int64(len(s.Header))
}

// Registry is the flat, statically known signature table (C1).
var Registry = buildRegistry()

// buildRegistry assembles the flat signature table. A handful of formats
// from the original registry are deliberately not represented here because
// their magic bytes are byte-identical to an entry that is: DNG and NEF are
// TIFF underneath (identical to tiff-le/tiff-be respectively) and cannot be
// told apart from the container header alone; WMA reuses the WMV/ASF GUID;
// Opus and WebM reuse the OGG and Matroska container headers verbatim;
// DOCX/XLSX/PPTX/EPUB/ODT are all plain ZIP containers. Registering a
// duplicate header only adds a hit that can never win the first-match scan
// (see carve.scanChunk), so these are tracked as a documented gap rather
// than dead entries. MPEG-TS is excluded for the opposite reason: its
// header is a single byte (0x47), which matches roughly one in 256 bytes of
// any binary stream and would drown every other signature in false hits.
//
// Where two real signatures do share a prefix (TIFF vs. the RAW formats
// built on it), the longer, more specific header is registered first so it
// wins the first-byte bucket before the generic TIFF entry is even tried.
func buildRegistry() []*Signature {
	sigs := []*Signature{
		// --- Images ---
		{
			Name: "jpeg", Extension: "jpg", FileType: model.FileTypeImage,
			Header: []byte{0xFF, 0xD8, 0xFF}, HeaderOffset: 0,
			Footer:  []byte{0xFF, 0xD9},
			MaxSize: 64 * 1024 * 1024,
		},
		{
			Name: "png", Extension: "png", FileType: model.FileTypeImage,
			Header:       []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
			HeaderOffset: 0,
			MaxSize:      256 * 1024 * 1024,
			SizeParser:   parsePNGSize,
		},
		{
			Name: "gif", Extension: "gif", FileType: model.FileTypeImage,
			Header: []byte("GIF8"), HeaderOffset: 0,
			Footer:  []byte{0x00, 0x3B},
			MaxSize: 64 * 1024 * 1024,
		},
		{
			Name: "cr2", Extension: "cr2", FileType: model.FileTypeImage,
			Header:       []byte{0x49, 0x49, 0x2A, 0x00, 0x10, 0x00, 0x00, 0x00, 0x43, 0x52},
			HeaderOffset: 0,
			MaxSize:      100 * 1024 * 1024,
		},
		{
			Name: "arw", Extension: "arw", FileType: model.FileTypeImage,
			Header:       []byte{0x49, 0x49, 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00},
			HeaderOffset: 0,
			MaxSize:      100 * 1024 * 1024,
		},
		{
			Name: "tiff-le", Extension: "tiff", FileType: model.FileTypeImage,
			Header: []byte{0x49, 0x49, 0x2A, 0x00}, HeaderOffset: 0,
			MaxSize: 500 * 1024 * 1024,
		},
		{
			Name: "tiff-be", Extension: "tiff", FileType: model.FileTypeImage,
			Header: []byte{0x4D, 0x4D, 0x00, 0x2A}, HeaderOffset: 0,
			MaxSize: 500 * 1024 * 1024,
		},
		{
			Name: "bmp", Extension: "bmp", FileType: model.FileTypeImage,
			Header: []byte{0x42, 0x4D}, HeaderOffset: 0,
			MaxSize:    200 * 1024 * 1024,
			SizeParser: parseBMPSize,
		},
		{
			Name: "psd", Extension: "psd", FileType: model.FileTypeImage,
			Header: []byte("8BPS"), HeaderOffset: 0,
			MaxSize: 2 * 1024 * 1024 * 1024,
		},
		{
			Name: "eps", Extension: "eps", FileType: model.FileTypeImage,
			Header: []byte("%!PS-Adobe"), HeaderOffset: 0,
			Footer:  []byte("%%EOF"),
			MaxSize: 200 * 1024 * 1024,
		},
		{
			Name: "svg", Extension: "svg", FileType: model.FileTypeImage,
			Header: []byte("<?xml"), HeaderOffset: 0,
			Footer:  []byte("</svg>"),
			MaxSize: 50 * 1024 * 1024,
		},
		{
			Name: "ico", Extension: "ico", FileType: model.FileTypeImage,
			Header: []byte{0x00, 0x00, 0x01, 0x00}, HeaderOffset: 0,
			MaxSize: 10 * 1024 * 1024,
		},
		{
			Name: "xcf", Extension: "xcf", FileType: model.FileTypeImage,
			Header: []byte("gimp xcf"), HeaderOffset: 0,
			MaxSize: 2 * 1024 * 1024 * 1024,
		},
		{
			Name: "riff", Extension: "riff", FileType: model.FileTypeOther,
			Header: []byte("RIFF"), HeaderOffset: 0,
			MaxSize:    4 * 1024 * 1024 * 1024,
			SizeParser: parseRIFFSize,
		},

		// --- Video ---
		{
			Name: "mp4", Extension: "mp4", FileType: model.FileTypeVideo,
			Header: []byte("ftyp"), HeaderOffset: 4,
			MaxSize: 8 * 1024 * 1024 * 1024,
		},
		{
			Name: "mkv", Extension: "mkv", FileType: model.FileTypeVideo,
			Header: []byte{0x1A, 0x45, 0xDF, 0xA3}, HeaderOffset: 0,
			MaxSize: 8 * 1024 * 1024 * 1024,
		},
		{
			Name: "flv", Extension: "flv", FileType: model.FileTypeVideo,
			Header: []byte("FLV\x01"), HeaderOffset: 0,
			MaxSize: 4 * 1024 * 1024 * 1024,
		},
		{
			Name: "asf", Extension: "wmv", FileType: model.FileTypeVideo,
			Header:       []byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11},
			HeaderOffset: 0,
			MaxSize:      4 * 1024 * 1024 * 1024,
		},
		{
			Name: "mpegps", Extension: "mpg", FileType: model.FileTypeVideo,
			Header: []byte{0x00, 0x00, 0x01, 0xBA}, HeaderOffset: 0,
			MaxSize: 4 * 1024 * 1024 * 1024,
		},

		// --- Audio ---
		{
			Name: "mp3-id3", Extension: "mp3", FileType: model.FileTypeAudio,
			Header: []byte("ID3"), HeaderOffset: 0,
			MaxSize: 100 * 1024 * 1024,
		},
		{
			Name: "mp3-sync", Extension: "mp3", FileType: model.FileTypeAudio,
			Header: []byte{0xFF, 0xFB}, HeaderOffset: 0,
			MaxSize: 100 * 1024 * 1024,
		},
		{
			Name: "flac", Extension: "flac", FileType: model.FileTypeAudio,
			Header: []byte("fLaC"), HeaderOffset: 0,
			MaxSize: 500 * 1024 * 1024,
		},
		{
			Name: "ogg", Extension: "ogg", FileType: model.FileTypeAudio,
			Header: []byte("OggS"), HeaderOffset: 0,
			MaxSize: 500 * 1024 * 1024,
		},
		{
			Name: "aiff", Extension: "aiff", FileType: model.FileTypeAudio,
			Header: []byte("FORM"), HeaderOffset: 0,
			MaxSize: 2 * 1024 * 1024 * 1024,
		},
		{
			Name: "midi", Extension: "mid", FileType: model.FileTypeAudio,
			Header: []byte("MThd"), HeaderOffset: 0,
			MaxSize: 10 * 1024 * 1024,
		},

		// --- Documents ---
		{
			Name: "pdf", Extension: "pdf", FileType: model.FileTypeDocument,
			Header: []byte("%PDF-"), HeaderOffset: 0,
			Footer:  []byte("%%EOF"),
			MaxSize: 512 * 1024 * 1024,
		},
		{
			Name: "doc-ole", Extension: "doc", FileType: model.FileTypeDocument,
			Header:       []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1},
			HeaderOffset: 0,
			MaxSize:      200 * 1024 * 1024,
		},
		{
			Name: "rtf", Extension: "rtf", FileType: model.FileTypeDocument,
			Header: []byte(`{\rtf`), HeaderOffset: 0,
			Footer:  []byte("}"),
			MaxSize: 100 * 1024 * 1024,
		},

		// --- Archives ---
		{
			Name: "zip", Extension: "zip", FileType: model.FileTypeArchive,
			Header: []byte{0x50, 0x4B, 0x03, 0x04}, HeaderOffset: 0,
			MaxSize:    4 * 1024 * 1024 * 1024,
			SizeParser: parseZIPSize,
		},
		{
			Name: "rar5", Extension: "rar", FileType: model.FileTypeArchive,
			Header:       []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00},
			HeaderOffset: 0,
			MaxSize:      4 * 1024 * 1024 * 1024,
		},
		{
			Name: "rar4", Extension: "rar", FileType: model.FileTypeArchive,
			Header:       []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00},
			HeaderOffset: 0,
			MaxSize:      4 * 1024 * 1024 * 1024,
		},
		{
			Name: "7z", Extension: "7z", FileType: model.FileTypeArchive,
			Header:       []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C},
			HeaderOffset: 0,
			MaxSize:      4 * 1024 * 1024 * 1024,
		},
		{
			Name: "gzip", Extension: "gz", FileType: model.FileTypeArchive,
			Header: []byte{0x1F, 0x8B, 0x08}, HeaderOffset: 0,
			MaxSize: 2 * 1024 * 1024 * 1024,
		},
		{
			Name: "xz", Extension: "xz", FileType: model.FileTypeArchive,
			Header:       []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00},
			HeaderOffset: 0,
			MaxSize:      4 * 1024 * 1024 * 1024,
		},
		{
			Name: "bzip2", Extension: "bz2", FileType: model.FileTypeArchive,
			Header: []byte{0x42, 0x5A, 0x68}, HeaderOffset: 0,
			MaxSize: 2 * 1024 * 1024 * 1024,
		},
		{
			Name: "zstd", Extension: "zst", FileType: model.FileTypeArchive,
			Header:       []byte{0x28, 0xB5, 0x2F, 0xFD},
			HeaderOffset: 0,
			MaxSize:      4 * 1024 * 1024 * 1024,
		},
		{
			Name: "lz4", Extension: "lz4", FileType: model.FileTypeArchive,
			Header:       []byte{0x04, 0x22, 0x4D, 0x18},
			HeaderOffset: 0,
			MaxSize:      4 * 1024 * 1024 * 1024,
		},
		{
			Name: "tar", Extension: "tar", FileType: model.FileTypeArchive,
			Header: []byte("ustar"), HeaderOffset: 257,
			MaxSize: 16 * 1024 * 1024 * 1024,
		},
		{
			Name: "iso", Extension: "iso", FileType: model.FileTypeArchive,
			Header: []byte("CD001"), HeaderOffset: 32769,
			MaxSize: 16 * 1024 * 1024 * 1024,
		},

		// --- Executables ---
		{
			Name: "elf", Extension: "elf", FileType: model.FileTypeExecutable,
			Header: []byte{0x7F, 0x45, 0x4C, 0x46}, HeaderOffset: 0,
			MaxSize: 500 * 1024 * 1024,
		},
		{
			Name: "pe", Extension: "exe", FileType: model.FileTypeExecutable,
			Header: []byte{0x4D, 0x5A}, HeaderOffset: 0,
			MaxSize: 500 * 1024 * 1024,
		},
		{
			Name: "macho64", Extension: "macho", FileType: model.FileTypeExecutable,
			Header:       []byte{0xFE, 0xED, 0xFA, 0xCF},
			HeaderOffset: 0,
			MaxSize:      500 * 1024 * 1024,
		},
		{
			Name: "macho32", Extension: "macho", FileType: model.FileTypeExecutable,
			Header:       []byte{0xFE, 0xED, 0xFA, 0xCE},
			HeaderOffset: 0,
			MaxSize:      500 * 1024 * 1024,
		},
		{
			Name: "javaclass", Extension: "class", FileType: model.FileTypeExecutable,
			Header:       []byte{0xCA, 0xFE, 0xBA, 0xBE},
			HeaderOffset: 0,
			MaxSize:      50 * 1024 * 1024,
		},
		{
			Name: "dex", Extension: "dex", FileType: model.FileTypeExecutable,
			Header: []byte("dex\n"), HeaderOffset: 0,
			MaxSize: 100 * 1024 * 1024,
		},
		{
			Name: "wasm", Extension: "wasm", FileType: model.FileTypeExecutable,
			Header:       []byte{0x00, 0x61, 0x73, 0x6D},
			HeaderOffset: 0,
			MaxSize:      100 * 1024 * 1024,
		},

		// --- Database ---
		{
			Name: "sqlite", Extension: "sqlite", FileType: model.FileTypeDatabase,
			Header: []byte("SQLite format 3\x00"), HeaderOffset: 0,
			MaxSize: 2 * 1024 * 1024 * 1024,
		},

		// --- Fonts ---
		{
			Name: "ttf", Extension: "ttf", FileType: model.FileTypeOther,
			Header:       []byte{0x00, 0x01, 0x00, 0x00, 0x00},
			HeaderOffset: 0,
			MaxSize:      50 * 1024 * 1024,
		},
		{
			Name: "woff2", Extension: "woff2", FileType: model.FileTypeOther,
			Header: []byte("wOF2"), HeaderOffset: 0,
			MaxSize: 50 * 1024 * 1024,
		},
		{
			Name: "woff", Extension: "woff", FileType: model.FileTypeOther,
			Header: []byte("wOFF"), HeaderOffset: 0,
			MaxSize: 50 * 1024 * 1024,
		},

		// --- Misc ---
		{
			Name: "pem", Extension: "pem", FileType: model.FileTypeOther,
			Header: []byte("-----BEGIN"), HeaderOffset: 0,
			Footer:  []byte("-----END"),
			MaxSize: 10 * 1024 * 1024,
		},
		{
			Name: "pcap", Extension: "pcap", FileType: model.FileTypeOther,
			Header:       []byte{0xD4, 0xC3, 0xB2, 0xA1},
			HeaderOffset: 0,
			MaxSize:      2 * 1024 * 1024 * 1024,
		},
		{
			Name: "pcapng", Extension: "pcapng", FileType: model.FileTypeOther,
			Header:       []byte{0x0A, 0x0D, 0x0D, 0x0A},
			HeaderOffset: 0,
			MaxSize:      2 * 1024 * 1024 * 1024,
		},
	}
	return sigs
}

// parsePNGSize walks IHDR..IEND chunks starting at byte 8.
func parsePNGSize(data []byte) (int64, bool) {
	const headerLen = 8
	pos := int64(headerLen)
	for pos+8 <= int64(len(data)) {
		chunkLen := int64(binary.BigEndian.Uint32(data[pos : pos+4]))
		chunkType := string(data[pos+4 : pos+8])
		chunkEnd := pos + 8 + chunkLen + 4 // len + type + data + crc
		if chunkEnd > int64(len(data)) {
			return 0, false
		}
		if chunkType == "IEND" {
			return chunkEnd, true
		}
		pos = chunkEnd
	}
	return 0, false
}

// parseBMPSize reads bytes [2..6) little-endian.
func parseBMPSize(data []byte) (int64, bool) {
	if len(data) < 6 {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint32(data[2:6])), true
}

// parseRIFFSize reads bytes [4..8) little-endian plus 8.
func parseRIFFSize(data []byte) (int64, bool) {
	if len(data) < 8 {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint32(data[4:8])) + 8, true
}

var eocdMagic = []byte{0x50, 0x4B, 0x05, 0x06}

// parseZIPSize locates the End-of-Central-Directory signature within the
// last 65558 bytes and honors the trailing comment-length field.
func parseZIPSize(data []byte) (int64, bool) {
	const maxEOCD = 65558 // 22-byte record + max 65535-byte comment
	searchFrom := int64(0)
	if int64(len(data)) > maxEOCD {
		searchFrom = int64(len(data)) - maxEOCD
	}
	window := data[searchFrom:]
	idx := bytes.LastIndex(window, eocdMagic)
	if idx < 0 {
		return 0, false
	}
	eocdStart := searchFrom + int64(idx)
	if eocdStart+22 > int64(len(data)) {
		return 0, false
	}
	commentLen := int64(binary.LittleEndian.Uint16(data[eocdStart+20 : eocdStart+22]))
	total := eocdStart + 22 + commentLen
	return total, true
}

// RIFFSubtype resolves a RIFF container's real extension by the 4 bytes
// at offset 8.
func RIFFSubtype(data []byte) string {
	if len(data) < 12 {
		return "riff"
	}
	switch string(data[8:12]) {
	case "WAVE":
		return "wav"
	case "AVI ":
		return "avi"
	case "WEBP":
		return "webp"
	default:
		return "riff"
	}
}

// FtypBrand resolves an MP4-family container's extension from the major
// brand at offset 8.
func FtypBrand(data []byte) string {
	if len(data) < 12 {
		return "mp4"
	}
	switch string(data[8:12]) {
	case "M4A ", "M4A\x00":
		return "m4a"
	case "qt  ", "qt\x00\x00":
		return "mov"
	case "3gp4", "3gp5", "3gp6":
		return "3gp"
	default:
		return "mp4"
	}
}

// MaxHeaderEnd is max(len(header)+header_offset) across the registry,
// used by the scan planner to size chunk overlap.
func MaxHeaderEnd() int64 {
	var max int64
	for _, s := range Registry {
		if e := s.HeaderEnd(); e > max {
			max = e
		}
	}
	return max
}
