package pe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xyproto/env/v2"
)

// Symbol server queried by GetPDBURL. Overridable for private symbol stores.
var symbolServer = env.Str("PEVIEW_SYMBOL_SERVER", "https://msdl.microsoft.com")

// CodeView payload layouts. RSDS (PDB 7.0): signature u32, GUID 16 bytes
// (Data1 u32 LE, Data2 u16 LE, Data3 u16 LE, Data4 [8]byte), age u32, then
// the NUL-terminated PDB path at byte 24. NB10 (PDB 2.0): signature u32,
// offset u32, timestamp signature u32, age u32, path at byte 16.
const (
	rsdsPathOffset = 24
	nb10PathOffset = 16
)

// codeViewPath extracts the embedded PDB path from a CodeView payload, or
// "" when the payload is too short or the path is unterminated.
func codeViewPath(data []byte) string {
	var pathOffset int
	switch {
	case len(data) >= rsdsPathOffset && binary.LittleEndian.Uint32(data) == CV_PDB_70_SIGNATURE:
		pathOffset = rsdsPathOffset
	case len(data) >= nb10PathOffset && binary.LittleEndian.Uint32(data) == CV_PDB_20_SIGNATURE:
		pathOffset = nb10PathOffset
	default:
		return ""
	}
	end := bytes.IndexByte(data[pathOffset:], 0)
	if end < 0 {
		return ""
	}
	return string(data[pathOffset : pathOffset+end])
}

// GetPDBPath returns the debug database path embedded in the image's first
// usable CodeView debug record, or "" when the image carries none.
func (p *Parser) GetPDBPath() (string, error) {
	debugEntries, err := p.GetDebugDirectory()
	if err != nil {
		return "", err
	}
	for _, de := range debugEntries {
		if de.Entry.Type != IMAGE_DEBUG_TYPE_CODEVIEW || len(de.Data) < 4 {
			continue
		}
		if path := codeViewPath(de.Data); path != "" {
			return path, nil
		}
	}
	return "", nil
}

// rsdsGUID normalizes the mixed-endian on-disk GUID (bytes 4..20 of an RSDS
// payload) into RFC 4122 byte order.
func rsdsGUID(data []byte) uuid.UUID {
	var raw [16]byte
	binary.BigEndian.PutUint32(raw[0:4], binary.LittleEndian.Uint32(data[4:8]))
	binary.BigEndian.PutUint16(raw[4:6], binary.LittleEndian.Uint16(data[8:10]))
	binary.BigEndian.PutUint16(raw[6:8], binary.LittleEndian.Uint16(data[10:12]))
	copy(raw[8:16], data[12:20])
	return uuid.UUID(raw)
}

func pdbFilename(path string) string {
	return path[strings.LastIndexAny(path, `\/`)+1:]
}

// GetPDBURL derives the canonical symbol-server download URL from the
// image's first usable CodeView debug record:
//
//	<server>/download/symbols/<file>/<id><age>/<file>
//
// where <id> is the 32-hex-digit uppercase GUID for RSDS records or the
// 8-hex-digit signature for NB10 records, and <age> is decimal. Returns ""
// when the image carries no usable CodeView record.
func (p *Parser) GetPDBURL() (string, error) {
	debugEntries, err := p.GetDebugDirectory()
	if err != nil {
		return "", err
	}
	for _, de := range debugEntries {
		if de.Entry.Type != IMAGE_DEBUG_TYPE_CODEVIEW || len(de.Data) < 4 {
			continue
		}

		path := codeViewPath(de.Data)
		if path == "" {
			continue
		}
		filename := pdbFilename(path)

		switch binary.LittleEndian.Uint32(de.Data) {
		case CV_PDB_70_SIGNATURE:
			guid := rsdsGUID(de.Data)
			age := binary.LittleEndian.Uint32(de.Data[20:24])
			id := strings.ToUpper(strings.ReplaceAll(guid.String(), "-", ""))
			return fmt.Sprintf("%s/download/symbols/%s/%s%d/%s",
				symbolServer, filename, id, age, filename), nil
		case CV_PDB_20_SIGNATURE:
			signature := binary.LittleEndian.Uint32(de.Data[8:12])
			age := binary.LittleEndian.Uint32(de.Data[12:16])
			return fmt.Sprintf("%s/download/symbols/%s/%08X%d/%s",
				symbolServer, filename, signature, age, filename), nil
		}
	}
	return "", nil
}
