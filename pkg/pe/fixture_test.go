package pe

import (
	"encoding/binary"
	"testing"
)

// Synthetic PE32+ images for the decoder tests, assembled byte by byte the
// same way the format defines them. Layout: DOS header at 0, NT headers at
// 0x80, section headers right after the optional header, section raw data
// on 0x200 file alignment.

const (
	testImageBase = 0x140000000
	testEntryRVA  = 0x1000
	testPEOffset  = 0x80
	testFileAlign = 0x200
)

type testSection struct {
	name            string
	virtualAddress  uint32
	virtualSize     uint32
	characteristics uint32
	data            []byte
}

type imageBuilder struct {
	sections []testSection
	dirs     [16]IMAGE_DATA_DIRECTORY
}

func (b *imageBuilder) addSection(s testSection) {
	if s.virtualSize == 0 {
		s.virtualSize = uint32(len(s.data))
	}
	b.sections = append(b.sections, s)
}

func (b *imageBuilder) setDirectory(index int, rva, size uint32) {
	b.dirs[index] = IMAGE_DATA_DIRECTORY{VirtualAddress: rva, Size: size}
}

func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}

func (b *imageBuilder) build() []byte {
	headerEnd := testPEOffset + 4 + sizeofFileHeader + sizeofOptionalHeader64 +
		len(b.sections)*sizeofSectionHeader

	fileOffsets := make([]int, len(b.sections))
	total := alignUp(headerEnd, testFileAlign)
	for i, s := range b.sections {
		fileOffsets[i] = total
		total += alignUp(len(s.data), testFileAlign)
	}

	buf := make([]byte, total)
	le := binary.LittleEndian

	// DOS header
	buf[0] = 'M'
	buf[1] = 'Z'
	le.PutUint32(buf[0x3C:], testPEOffset)

	// PE signature + file header
	copy(buf[testPEOffset:], "PE\x00\x00")
	fh := testPEOffset + 4
	le.PutUint16(buf[fh:], IMAGE_FILE_MACHINE_AMD64)
	le.PutUint16(buf[fh+2:], uint16(len(b.sections)))
	le.PutUint16(buf[fh+16:], sizeofOptionalHeader64)

	// Optional header
	oh := fh + sizeofFileHeader
	le.PutUint16(buf[oh:], IMAGE_NT_OPTIONAL_HDR64_MAGIC)
	le.PutUint32(buf[oh+16:], testEntryRVA) // AddressOfEntryPoint
	le.PutUint64(buf[oh+24:], testImageBase)
	le.PutUint32(buf[oh+32:], 0x1000)          // SectionAlignment
	le.PutUint32(buf[oh+36:], testFileAlign)   // FileAlignment
	le.PutUint32(buf[oh+108:], 16)             // NumberOfRvaAndSizes
	for i, d := range b.dirs {
		le.PutUint32(buf[oh+112+i*8:], d.VirtualAddress)
		le.PutUint32(buf[oh+112+i*8+4:], d.Size)
	}

	// Section table and raw data
	for i, s := range b.sections {
		sh := oh + sizeofOptionalHeader64 + i*sizeofSectionHeader
		copy(buf[sh:sh+8], s.name)
		le.PutUint32(buf[sh+8:], s.virtualSize)
		le.PutUint32(buf[sh+12:], s.virtualAddress)
		le.PutUint32(buf[sh+16:], uint32(len(s.data)))
		le.PutUint32(buf[sh+20:], uint32(fileOffsets[i]))
		le.PutUint32(buf[sh+36:], s.characteristics)
		copy(buf[fileOffsets[i]:], s.data)
	}

	return buf
}

// buildBasicImage is the two-section image most tests start from: an
// executable .text at RVA 0x1000 and a data .rdata at RVA 0x2000.
func buildBasicImage(rdata []byte, configure func(*imageBuilder)) []byte {
	text := make([]byte, 0x200)
	text[0] = 0xC3
	b := &imageBuilder{}
	b.addSection(testSection{
		name:            ".text",
		virtualAddress:  0x1000,
		characteristics: 0x60000020, // CODE | EXECUTE | READ
		data:            text,
	})
	b.addSection(testSection{
		name:           ".rdata",
		virtualAddress: 0x2000,
		data:           rdata,
	})
	if configure != nil {
		configure(b)
	}
	return b.build()
}

func mustParser(t *testing.T, buf []byte) *Parser {
	t.Helper()
	p, err := NewParser(buf)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	return p
}

// rdataWriter fills a .rdata payload at fixed offsets. RVA of offset x is
// 0x2000+x in images built by buildBasicImage.
type rdataWriter struct {
	buf []byte
}

func newRdataWriter(size int) *rdataWriter {
	return &rdataWriter{buf: make([]byte, size)}
}

func (w *rdataWriter) u16(off int, v uint16) { binary.LittleEndian.PutUint16(w.buf[off:], v) }
func (w *rdataWriter) u32(off int, v uint32) { binary.LittleEndian.PutUint32(w.buf[off:], v) }
func (w *rdataWriter) u64(off int, v uint64) { binary.LittleEndian.PutUint64(w.buf[off:], v) }
func (w *rdataWriter) str(off int, s string) { copy(w.buf[off:], s+"\x00") }
func (w *rdataWriter) bytes(off int, b []byte) { copy(w.buf[off:], b) }
