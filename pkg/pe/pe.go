/*
package pe decodes PE32+/x64 images from an in-memory buffer into typed views
of the headers, section table and data directories (imports, exports, base
relocations, exception/unwind, TLS, debug) for downstream tooling
*/
package pe

import (
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
)

// PEInfo is the immutable header snapshot built once by Parse: DOS header,
// file header, optional header, the full 16-entry data directory table and
// the section table in file order.
type PEInfo struct {
	DosHeader       IMAGE_DOS_HEADER
	FileHeader      IMAGE_FILE_HEADER
	OptionalHeader  IMAGE_OPTIONAL_HEADER64
	SectionHeaders  []IMAGE_SECTION_HEADER
	DataDirectories [16]IMAGE_DATA_DIRECTORY
}

// Parser holds the raw file buffer together with its header snapshot. Both
// are immutable after construction, so one Parser may serve concurrent
// read-only queries; directory decoders recompute from the buffer on every
// call and never cache.
//
// Base-address and entry-point overrides are not set in place: the Override*
// methods return a derived Parser sharing the same buffer and snapshot, so a
// configured view can be handed out while the original keeps its own.
type Parser struct {
	buf  []byte
	info PEInfo

	overrideBase  uint64
	overrideEntry uint64
}

// Parse validates and extracts the header snapshot from a raw image buffer.
// Checks run in order: DOS magic, PE signature, machine type, optional
// header magic; each failure is fatal. The section table length is checked
// against the remaining buffer before any section header is read, so a
// crafted section count cannot force reads past the buffer.
func Parse(buf []byte) (*PEInfo, error) {
	dosHeader, err := readDosHeader(buf, 0)
	if err != nil {
		return nil, err
	}
	if dosHeader.E_magic != IMAGE_DOS_SIGNATURE {
		return nil, errors.Wrapf(ErrNotPE, "DOS magic 0x%04x", dosHeader.E_magic)
	}

	peOffset := int(dosHeader.E_lfanew)
	signature, err := readU32(buf, peOffset)
	if err != nil {
		return nil, err
	}
	if signature != IMAGE_NT_SIGNATURE {
		return nil, errors.Wrapf(ErrBadSignature, "0x%08x at offset 0x%x", signature, peOffset)
	}

	fileHeader, err := readFileHeader(buf, peOffset+4)
	if err != nil {
		return nil, err
	}
	if fileHeader.Machine != IMAGE_FILE_MACHINE_AMD64 {
		return nil, errors.Wrapf(ErrWrongMachine, "machine 0x%04x", fileHeader.Machine)
	}

	optionalHeader, err := readOptionalHeader64(buf, peOffset+4+sizeofFileHeader)
	if err != nil {
		return nil, err
	}
	if optionalHeader.Magic != IMAGE_NT_OPTIONAL_HDR64_MAGIC {
		return nil, errors.Wrapf(ErrWrongOptionalMagic, "optional header magic 0x%04x", optionalHeader.Magic)
	}

	sectionOffset := peOffset + 4 + sizeofFileHeader + int(fileHeader.SizeOfOptionalHeader)
	numSections := int(fileHeader.NumberOfSections)
	if sectionOffset+numSections*sizeofSectionHeader > len(buf) {
		return nil, errors.Wrapf(ErrStructureOverflow,
			"section table of %d entries at offset 0x%x, buffer is %d bytes",
			numSections, sectionOffset, len(buf))
	}

	sections := make([]IMAGE_SECTION_HEADER, 0, numSections)
	for i := 0; i < numSections; i++ {
		section, err := readSectionHeader(buf, sectionOffset+i*sizeofSectionHeader)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}

	return &PEInfo{
		DosHeader:       dosHeader,
		FileHeader:      fileHeader,
		OptionalHeader:  optionalHeader,
		SectionHeaders:  sections,
		DataDirectories: optionalHeader.DataDirectory,
	}, nil
}

// NewParser builds a Parser over peBytes. The buffer is not copied; callers
// must not mutate it afterwards.
func NewParser(peBytes []byte) (*Parser, error) {
	info, err := Parse(peBytes)
	if err != nil {
		return nil, err
	}
	return &Parser{buf: peBytes, info: *info}, nil
}

// NewParserFromFile reads the whole file into memory and parses it. This is
// the only I/O this package performs.
func NewParserFromFile(filePath string) (*Parser, error) {
	peBytes, err := ioutil.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read PE file %s", filePath)
	}
	return NewParser(peBytes)
}

// Info returns the header snapshot.
func (p *Parser) Info() *PEInfo {
	return &p.info
}

// RVAToOffset translates a relative virtual address into a file offset by
// scanning the section table for the section whose virtual range contains
// the RVA. Every directory decoder funnels through here.
func (p *Parser) RVAToOffset(rva uint32) (int, error) {
	for i := range p.info.SectionHeaders {
		s := &p.info.SectionHeaders[i]
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+s.VirtualSize {
			return int(rva - s.VirtualAddress + s.PointerToRawData), nil
		}
	}
	return 0, errors.Wrapf(ErrRVANotInSection, "rva 0x%x", rva)
}

// GetImageBase returns the preferred load address, or the override when one
// has been applied with OverrideBaseAddress.
func (p *Parser) GetImageBase() uint64 {
	if p.overrideBase != 0 {
		return p.overrideBase
	}
	return p.info.OptionalHeader.ImageBase
}

// GetEntryPoint returns the absolute entry point address. With an entry
// override applied, the override is an offset added to the (possibly
// overridden) image base; otherwise the header's entry point RVA is added to
// the header's own image base.
func (p *Parser) GetEntryPoint() uint64 {
	if p.overrideEntry != 0 {
		return p.GetImageBase() + p.overrideEntry
	}
	return p.info.OptionalHeader.ImageBase + uint64(p.info.OptionalHeader.AddressOfEntryPoint)
}

// OverrideBaseAddress returns a derived Parser that reinterprets virtual
// addresses as if the image were loaded at address. The receiver is left
// untouched.
func (p *Parser) OverrideBaseAddress(address uint64) *Parser {
	derived := *p
	derived.overrideBase = address
	return &derived
}

// OverrideEntryPoint returns a derived Parser whose entry point is the given
// offset from the image base. The receiver is left untouched.
func (p *Parser) OverrideEntryPoint(address uint64) *Parser {
	derived := *p
	derived.overrideEntry = address
	return &derived
}

// sectionName trims the 8-byte null-padded section name.
func sectionName(s *IMAGE_SECTION_HEADER) string {
	name := string(s.Name[:])
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return name
}
