package pe

type IMAGE_DOS_HEADER struct {
	E_magic  uint16
	E_lfanew uint32
}

type IMAGE_FILE_HEADER struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type IMAGE_DATA_DIRECTORY struct {
	VirtualAddress uint32
	Size           uint32
}

type IMAGE_OPTIONAL_HEADER64 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32

	DataDirectory [16]IMAGE_DATA_DIRECTORY
}

type IMAGE_SECTION_HEADER struct {
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      uint32
}

type IMAGE_IMPORT_DESCRIPTOR struct {
	OriginalFirstThunk uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               uint32
	FirstThunk         uint32
}

type IMAGE_EXPORT_DIRECTORY struct {
	Characteristics       uint32
	TimeDateStamp         uint32
	MajorVersion          uint16
	MinorVersion          uint16
	Name                  uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

type IMAGE_BASE_RELOCATION struct {
	VirtualAddress uint32
	SizeOfBlock    uint32
}

type BASE_RELOCATION_ENTRY struct {
	OffsetType uint16
}

func (bre BASE_RELOCATION_ENTRY) Offset() uint16 {
	return bre.OffsetType & 0xFFF
}

func (bre BASE_RELOCATION_ENTRY) Type() uint16 {
	return (bre.OffsetType >> 12) & 0xF
}

// RUNTIME_FUNCTION is one entry of the x64 exception directory.
type RUNTIME_FUNCTION struct {
	BeginAddress      uint32
	EndAddress        uint32
	UnwindInfoAddress uint32
}

type UNWIND_CODE struct {
	CodeOffset uint8
	UnwindOp   uint8
	OpInfo     uint8
}

// UNWIND_INFO carries the unpacked fixed header of an unwind-info record
// plus its code array. Version/Flags and FrameRegister/FrameOffset are
// bit-packed on the wire and split apart during decoding.
type UNWIND_INFO struct {
	Version       uint8
	Flags         uint8
	SizeOfProlog  uint8
	CountOfCodes  uint8
	FrameRegister uint8
	FrameOffset   uint8
	UnwindCodes   []UNWIND_CODE
}

type IMAGE_TLS_DIRECTORY64 struct {
	StartAddressOfRawData uint64
	EndAddressOfRawData   uint64
	AddressOfIndex        uint64
	AddressOfCallBacks    uint64
	SizeOfZeroFill        uint32
	Characteristics       uint32
}

type IMAGE_DEBUG_DIRECTORY struct {
	Characteristics  uint32
	TimeDateStamp    uint32
	MajorVersion     uint16
	MinorVersion     uint16
	Type             uint32
	SizeOfData       uint32
	AddressOfRawData uint32
	PointerToRawData uint32
}

const (
	IMAGE_DOS_SIGNATURE           = 0x5A4D
	IMAGE_NT_SIGNATURE            = 0x00004550
	IMAGE_FILE_MACHINE_AMD64      = 0x8664
	IMAGE_NT_OPTIONAL_HDR64_MAGIC = 0x20B

	IMAGE_DIRECTORY_ENTRY_EXPORT    = 0x0
	IMAGE_DIRECTORY_ENTRY_IMPORT    = 0x1
	IMAGE_DIRECTORY_ENTRY_EXCEPTION = 0x3
	IMAGE_DIRECTORY_ENTRY_BASERELOC = 0x5
	IMAGE_DIRECTORY_ENTRY_DEBUG     = 0x6
	IMAGE_DIRECTORY_ENTRY_TLS       = 0x9

	IMAGE_SCN_MEM_EXECUTE = 0x20000000

	IMAGE_DEBUG_TYPE_CODEVIEW = 2

	// UNW_FLAG_CHAININFO in the unwind-info flags field.
	UNW_FLAG_CHAININFO = 0x4

	CV_PDB_70_SIGNATURE = 0x53445352 // "RSDS"
	CV_PDB_20_SIGNATURE = 0x3031424E // "NB10"
)

// Wire sizes of the fixed-layout structures above. These are format
// constants, deliberately independent of Go's struct sizes.
const (
	sizeofDosHeader        = 64
	sizeofFileHeader       = 20
	sizeofOptionalHeader64 = 240
	sizeofSectionHeader    = 40
	sizeofImportDescriptor = 20
	sizeofExportDirectory  = 40
	sizeofBaseRelocation   = 8
	sizeofRuntimeFunction  = 12
	sizeofUnwindInfoHeader = 4
	sizeofUnwindCode       = 2
	sizeofTLSDirectory64   = 40
	sizeofDebugDirectory   = 28
)
