package pe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func buildExportImage(t *testing.T) *Parser {
	t.Helper()
	rdata := newRdataWriter(0x400)

	// IMAGE_EXPORT_DIRECTORY at RVA 0x2000, directory range [0x2000, 0x2200).
	rdata.u32(0x0C, 0x2100) // Name
	rdata.u32(0x10, 1)      // Base
	rdata.u32(0x14, 3)      // NumberOfFunctions
	rdata.u32(0x18, 2)      // NumberOfNames
	rdata.u32(0x1C, 0x2040) // AddressOfFunctions
	rdata.u32(0x20, 0x2060) // AddressOfNames
	rdata.u32(0x24, 0x2070) // AddressOfNameOrdinals

	rdata.u32(0x40, 0x1100) // function 0: code in .text
	rdata.u32(0x44, 0x2120) // function 1: inside the directory, a forwarder
	rdata.u32(0x48, 0x1200)

	rdata.u32(0x60, 0x2110) // name 0
	rdata.u32(0x64, 0x2118) // name 1
	rdata.u16(0x70, 0)      // ordinal 0
	rdata.u16(0x72, 1)      // ordinal 1

	rdata.str(0x100, "TESTDLL.dll")
	rdata.str(0x110, "Alpha")
	rdata.str(0x118, "Beta")
	rdata.str(0x120, "OTHER.Func")

	buf := buildBasicImage(rdata.buf, func(b *imageBuilder) {
		b.setDirectory(IMAGE_DIRECTORY_ENTRY_EXPORT, 0x2000, 0x200)
	})
	return mustParser(t, buf)
}

func TestGetExportDirectory(t *testing.T) {
	p := buildExportImage(t)

	got, err := p.GetExportDirectory()
	if err != nil {
		t.Fatalf("GetExportDirectory: %v", err)
	}
	if got.DLLName != "TESTDLL.dll" {
		t.Errorf("DLL name = %q", got.DLLName)
	}
	if got.Table.Base != 1 || got.Table.NumberOfNames != 2 {
		t.Errorf("table = %+v", got.Table)
	}

	want := []ExportEntry{
		{Name: "Alpha", Ordinal: 1, Address: testImageBase + 0x1100},
		{Name: "Beta", Ordinal: 2, Address: testImageBase + 0x2120,
			IsForwarder: true, Forwarder: "OTHER.Func"},
	}
	if diff := cmp.Diff(want, got.Entries, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestGetExportDirectoryHonorsBaseOverride(t *testing.T) {
	p := buildExportImage(t).OverrideBaseAddress(0x20000000)

	got, err := p.GetExportDirectory()
	if err != nil {
		t.Fatalf("GetExportDirectory: %v", err)
	}
	if got.Entries[0].Address != 0x20000000+0x1100 {
		t.Errorf("Alpha address = 0x%x", got.Entries[0].Address)
	}
}
