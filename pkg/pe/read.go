package pe

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// structReader pulls consecutive little-endian fields out of a byte buffer.
// The full structure size is bounds-checked once, up front, so a structure is
// either decoded completely or not at all. No reliance on Go struct layout,
// host endianness or alignment anywhere in here.
type structReader struct {
	buf []byte
	off int
}

func newStructReader(buf []byte, off int, size int) (*structReader, error) {
	if off < 0 || size < 0 || off+size > len(buf) {
		return nil, errors.Wrapf(ErrStructureOverflow,
			"%d bytes at offset 0x%x, buffer is %d bytes", size, off, len(buf))
	}
	return &structReader{buf: buf, off: off}, nil
}

func (r *structReader) u8() uint8 {
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *structReader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *structReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *structReader) u64() uint64 {
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *structReader) skip(n int) {
	r.off += n
}

// Scalar reads used for table walks (lookup entries, name/ordinal arrays,
// TLS callback pointers).

func readU16(buf []byte, off int) (uint16, error) {
	r, err := newStructReader(buf, off, 2)
	if err != nil {
		return 0, err
	}
	return r.u16(), nil
}

func readU32(buf []byte, off int) (uint32, error) {
	r, err := newStructReader(buf, off, 4)
	if err != nil {
		return 0, err
	}
	return r.u32(), nil
}

func readU64(buf []byte, off int) (uint64, error) {
	r, err := newStructReader(buf, off, 8)
	if err != nil {
		return 0, err
	}
	return r.u64(), nil
}

// cstringAt returns the NUL-terminated string at off. An unterminated string
// runs to the end of the buffer, matching how every name read in the format
// is scanned.
func cstringAt(buf []byte, off int) (string, error) {
	if off < 0 || off > len(buf) {
		return "", errors.Wrapf(ErrStructureOverflow,
			"string at offset 0x%x, buffer is %d bytes", off, len(buf))
	}
	if i := bytes.IndexByte(buf[off:], 0); i >= 0 {
		return string(buf[off : off+i]), nil
	}
	return string(buf[off:]), nil
}

// readDosHeader decodes the two DOS header fields the parser uses:
// e_magic at +0x00 (u16) and e_lfanew at +0x3C (u32). The header itself
// occupies 64 bytes and all of them must be present.
func readDosHeader(buf []byte, off int) (IMAGE_DOS_HEADER, error) {
	r, err := newStructReader(buf, off, sizeofDosHeader)
	if err != nil {
		return IMAGE_DOS_HEADER{}, err
	}
	var h IMAGE_DOS_HEADER
	h.E_magic = r.u16()
	r.skip(0x3C - 2)
	h.E_lfanew = r.u32()
	return h, nil
}

// readFileHeader decodes IMAGE_FILE_HEADER: Machine u16, NumberOfSections
// u16, TimeDateStamp u32, PointerToSymbolTable u32, NumberOfSymbols u32,
// SizeOfOptionalHeader u16, Characteristics u16. 20 bytes.
func readFileHeader(buf []byte, off int) (IMAGE_FILE_HEADER, error) {
	r, err := newStructReader(buf, off, sizeofFileHeader)
	if err != nil {
		return IMAGE_FILE_HEADER{}, err
	}
	var h IMAGE_FILE_HEADER
	h.Machine = r.u16()
	h.NumberOfSections = r.u16()
	h.TimeDateStamp = r.u32()
	h.PointerToSymbolTable = r.u32()
	h.NumberOfSymbols = r.u32()
	h.SizeOfOptionalHeader = r.u16()
	h.Characteristics = r.u16()
	return h, nil
}

// readOptionalHeader64 decodes the PE32+ optional header including all 16
// data directory entries: 112 bytes of fixed fields followed by 16 pairs of
// (VirtualAddress u32, Size u32), 240 bytes total.
func readOptionalHeader64(buf []byte, off int) (IMAGE_OPTIONAL_HEADER64, error) {
	r, err := newStructReader(buf, off, sizeofOptionalHeader64)
	if err != nil {
		return IMAGE_OPTIONAL_HEADER64{}, err
	}
	var h IMAGE_OPTIONAL_HEADER64
	h.Magic = r.u16()
	h.MajorLinkerVersion = r.u8()
	h.MinorLinkerVersion = r.u8()
	h.SizeOfCode = r.u32()
	h.SizeOfInitializedData = r.u32()
	h.SizeOfUninitializedData = r.u32()
	h.AddressOfEntryPoint = r.u32()
	h.BaseOfCode = r.u32()
	h.ImageBase = r.u64()
	h.SectionAlignment = r.u32()
	h.FileAlignment = r.u32()
	h.MajorOperatingSystemVersion = r.u16()
	h.MinorOperatingSystemVersion = r.u16()
	h.MajorImageVersion = r.u16()
	h.MinorImageVersion = r.u16()
	h.MajorSubsystemVersion = r.u16()
	h.MinorSubsystemVersion = r.u16()
	h.Win32VersionValue = r.u32()
	h.SizeOfImage = r.u32()
	h.SizeOfHeaders = r.u32()
	h.CheckSum = r.u32()
	h.Subsystem = r.u16()
	h.DllCharacteristics = r.u16()
	h.SizeOfStackReserve = r.u64()
	h.SizeOfStackCommit = r.u64()
	h.SizeOfHeapReserve = r.u64()
	h.SizeOfHeapCommit = r.u64()
	h.LoaderFlags = r.u32()
	h.NumberOfRvaAndSizes = r.u32()
	for i := range h.DataDirectory {
		h.DataDirectory[i].VirtualAddress = r.u32()
		h.DataDirectory[i].Size = r.u32()
	}
	return h, nil
}

// readSectionHeader decodes IMAGE_SECTION_HEADER: Name [8]byte, VirtualSize
// u32, VirtualAddress u32, SizeOfRawData u32, PointerToRawData u32,
// PointerToRelocations u32, PointerToLinenumbers u32, NumberOfRelocations
// u16, NumberOfLinenumbers u16, Characteristics u32. 40 bytes.
func readSectionHeader(buf []byte, off int) (IMAGE_SECTION_HEADER, error) {
	r, err := newStructReader(buf, off, sizeofSectionHeader)
	if err != nil {
		return IMAGE_SECTION_HEADER{}, err
	}
	var h IMAGE_SECTION_HEADER
	for i := range h.Name {
		h.Name[i] = r.u8()
	}
	h.VirtualSize = r.u32()
	h.VirtualAddress = r.u32()
	h.SizeOfRawData = r.u32()
	h.PointerToRawData = r.u32()
	h.PointerToRelocations = r.u32()
	h.PointerToLinenumbers = r.u32()
	h.NumberOfRelocations = r.u16()
	h.NumberOfLinenumbers = r.u16()
	h.Characteristics = r.u32()
	return h, nil
}

// readImportDescriptor decodes IMAGE_IMPORT_DESCRIPTOR: five u32 fields,
// 20 bytes.
func readImportDescriptor(buf []byte, off int) (IMAGE_IMPORT_DESCRIPTOR, error) {
	r, err := newStructReader(buf, off, sizeofImportDescriptor)
	if err != nil {
		return IMAGE_IMPORT_DESCRIPTOR{}, err
	}
	var d IMAGE_IMPORT_DESCRIPTOR
	d.OriginalFirstThunk = r.u32()
	d.TimeDateStamp = r.u32()
	d.ForwarderChain = r.u32()
	d.Name = r.u32()
	d.FirstThunk = r.u32()
	return d, nil
}

// readExportDirectory decodes IMAGE_EXPORT_DIRECTORY: Characteristics u32,
// TimeDateStamp u32, MajorVersion u16, MinorVersion u16, Name u32, Base u32,
// NumberOfFunctions u32, NumberOfNames u32, AddressOfFunctions u32,
// AddressOfNames u32, AddressOfNameOrdinals u32. 40 bytes.
func readExportDirectory(buf []byte, off int) (IMAGE_EXPORT_DIRECTORY, error) {
	r, err := newStructReader(buf, off, sizeofExportDirectory)
	if err != nil {
		return IMAGE_EXPORT_DIRECTORY{}, err
	}
	var d IMAGE_EXPORT_DIRECTORY
	d.Characteristics = r.u32()
	d.TimeDateStamp = r.u32()
	d.MajorVersion = r.u16()
	d.MinorVersion = r.u16()
	d.Name = r.u32()
	d.Base = r.u32()
	d.NumberOfFunctions = r.u32()
	d.NumberOfNames = r.u32()
	d.AddressOfFunctions = r.u32()
	d.AddressOfNames = r.u32()
	d.AddressOfNameOrdinals = r.u32()
	return d, nil
}

// readBaseRelocation decodes a relocation block header: VirtualAddress u32,
// SizeOfBlock u32. 8 bytes.
func readBaseRelocation(buf []byte, off int) (IMAGE_BASE_RELOCATION, error) {
	r, err := newStructReader(buf, off, sizeofBaseRelocation)
	if err != nil {
		return IMAGE_BASE_RELOCATION{}, err
	}
	var b IMAGE_BASE_RELOCATION
	b.VirtualAddress = r.u32()
	b.SizeOfBlock = r.u32()
	return b, nil
}

// readRuntimeFunction decodes RUNTIME_FUNCTION: BeginAddress u32, EndAddress
// u32, UnwindInfoAddress u32. 12 bytes.
func readRuntimeFunction(buf []byte, off int) (RUNTIME_FUNCTION, error) {
	r, err := newStructReader(buf, off, sizeofRuntimeFunction)
	if err != nil {
		return RUNTIME_FUNCTION{}, err
	}
	var f RUNTIME_FUNCTION
	f.BeginAddress = r.u32()
	f.EndAddress = r.u32()
	f.UnwindInfoAddress = r.u32()
	return f, nil
}

// readUnwindInfo decodes the 4-byte unwind-info header followed by its
// 2-byte unwind codes. Byte 0 packs Version (low 3 bits) and Flags (high 5
// bits); byte 3 packs FrameRegister (low nibble) and FrameOffset (high
// nibble). Each code packs its operation (low nibble of byte 1) and operation
// info (high nibble).
func readUnwindInfo(buf []byte, off int) (UNWIND_INFO, error) {
	r, err := newStructReader(buf, off, sizeofUnwindInfoHeader)
	if err != nil {
		return UNWIND_INFO{}, err
	}
	var u UNWIND_INFO
	b0 := r.u8()
	u.Version = b0 & 0x7
	u.Flags = b0 >> 3
	u.SizeOfProlog = r.u8()
	u.CountOfCodes = r.u8()
	b3 := r.u8()
	u.FrameRegister = b3 & 0xF
	u.FrameOffset = b3 >> 4

	cr, err := newStructReader(buf, off+sizeofUnwindInfoHeader, int(u.CountOfCodes)*sizeofUnwindCode)
	if err != nil {
		return UNWIND_INFO{}, err
	}
	u.UnwindCodes = make([]UNWIND_CODE, u.CountOfCodes)
	for i := range u.UnwindCodes {
		u.UnwindCodes[i].CodeOffset = cr.u8()
		op := cr.u8()
		u.UnwindCodes[i].UnwindOp = op & 0xF
		u.UnwindCodes[i].OpInfo = op >> 4
	}
	return u, nil
}

// readTLSDirectory64 decodes IMAGE_TLS_DIRECTORY64: four u64 addresses
// followed by SizeOfZeroFill u32 and Characteristics u32. 40 bytes.
func readTLSDirectory64(buf []byte, off int) (IMAGE_TLS_DIRECTORY64, error) {
	r, err := newStructReader(buf, off, sizeofTLSDirectory64)
	if err != nil {
		return IMAGE_TLS_DIRECTORY64{}, err
	}
	var d IMAGE_TLS_DIRECTORY64
	d.StartAddressOfRawData = r.u64()
	d.EndAddressOfRawData = r.u64()
	d.AddressOfIndex = r.u64()
	d.AddressOfCallBacks = r.u64()
	d.SizeOfZeroFill = r.u32()
	d.Characteristics = r.u32()
	return d, nil
}

// readDebugDirectory decodes IMAGE_DEBUG_DIRECTORY: Characteristics u32,
// TimeDateStamp u32, MajorVersion u16, MinorVersion u16, Type u32,
// SizeOfData u32, AddressOfRawData u32, PointerToRawData u32. 28 bytes.
func readDebugDirectory(buf []byte, off int) (IMAGE_DEBUG_DIRECTORY, error) {
	r, err := newStructReader(buf, off, sizeofDebugDirectory)
	if err != nil {
		return IMAGE_DEBUG_DIRECTORY{}, err
	}
	var d IMAGE_DEBUG_DIRECTORY
	d.Characteristics = r.u32()
	d.TimeDateStamp = r.u32()
	d.MajorVersion = r.u16()
	d.MinorVersion = r.u16()
	d.Type = r.u32()
	d.SizeOfData = r.u32()
	d.AddressOfRawData = r.u32()
	d.PointerToRawData = r.u32()
	return d, nil
}
