package pe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Unwind-info header byte 0 packs version (low 3 bits) and flags (high 5).
func unwindHeaderByte(version, flags byte) byte {
	return flags<<3 | version
}

func TestExceptionDirectoryUnchained(t *testing.T) {
	rdata := newRdataWriter(0x400)

	rdata.u32(0x00, 0x1000) // BeginAddress
	rdata.u32(0x04, 0x1050) // EndAddress
	rdata.u32(0x08, 0x2100) // UnwindInfoAddress

	rdata.bytes(0x100, []byte{unwindHeaderByte(1, 0), 4, 2, 0}) // prolog 4, 2 codes
	rdata.bytes(0x104, []byte{4, 0x22, 2, 0x02})                // two unwind codes

	buf := buildBasicImage(rdata.buf, func(b *imageBuilder) {
		b.setDirectory(IMAGE_DIRECTORY_ENTRY_EXCEPTION, 0x2000, sizeofRuntimeFunction)
	})
	p := mustParser(t, buf)

	got, err := p.GetExceptionDirectory()
	if err != nil {
		t.Fatalf("GetExceptionDirectory: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1", len(got))
	}

	entry := got[0]
	if entry.Resolution != ChainResolved {
		t.Errorf("resolution = %v, want ChainResolved", entry.Resolution)
	}
	if entry.Resolved != entry.Function {
		t.Errorf("unchained record resolved to %+v", entry.Resolved)
	}
	if entry.UnwindInfo == nil {
		t.Fatal("unwind info not attached")
	}
	if entry.UnwindInfo.Version != 1 || entry.UnwindInfo.CountOfCodes != 2 {
		t.Errorf("unwind info = %+v", entry.UnwindInfo)
	}
}

func TestExceptionDirectoryChained(t *testing.T) {
	rdata := newRdataWriter(0x400)

	// Directory entry chains through two records to a terminal third.
	rdata.u32(0x00, 0x1000)
	rdata.u32(0x04, 0x1050)
	rdata.u32(0x08, 0x2100)

	// Level 0: chained, 1 code padded to 2 slots, chained record at +8.
	rdata.bytes(0x100, []byte{unwindHeaderByte(1, UNW_FLAG_CHAININFO), 0, 1, 0})
	rdata.u32(0x108, 0x1100)
	rdata.u32(0x10C, 0x1150)
	rdata.u32(0x110, 0x2140)

	// Level 1: chained, no codes, chained record directly after the header.
	rdata.bytes(0x140, []byte{unwindHeaderByte(1, UNW_FLAG_CHAININFO), 0, 0, 0})
	rdata.u32(0x144, 0x1200)
	rdata.u32(0x148, 0x1240)
	rdata.u32(0x14C, 0x2180)

	// Level 2: terminal.
	rdata.bytes(0x180, []byte{unwindHeaderByte(1, 0), 5, 1, 0})
	rdata.bytes(0x184, []byte{5, 0x32}) // code: offset 5, op 2, info 3

	buf := buildBasicImage(rdata.buf, func(b *imageBuilder) {
		b.setDirectory(IMAGE_DIRECTORY_ENTRY_EXCEPTION, 0x2000, sizeofRuntimeFunction)
	})
	p := mustParser(t, buf)

	got, err := p.GetExceptionDirectory()
	if err != nil {
		t.Fatalf("GetExceptionDirectory: %v", err)
	}
	entry := got[0]

	if entry.Resolution != ChainResolved {
		t.Errorf("resolution = %v, want ChainResolved", entry.Resolution)
	}
	wantResolved := RUNTIME_FUNCTION{BeginAddress: 0x1200, EndAddress: 0x1240, UnwindInfoAddress: 0x2180}
	if entry.Resolved != wantResolved {
		t.Errorf("resolved = %+v, want %+v", entry.Resolved, wantResolved)
	}
	wantInfo := &UNWIND_INFO{
		Version:      1,
		SizeOfProlog: 5,
		CountOfCodes: 1,
		UnwindCodes:  []UNWIND_CODE{{CodeOffset: 5, UnwindOp: 2, OpInfo: 3}},
	}
	if diff := cmp.Diff(wantInfo, entry.UnwindInfo); diff != "" {
		t.Errorf("unwind info mismatch (-want +got):\n%s", diff)
	}
	// The original directory record is preserved alongside the resolution.
	if entry.Function.UnwindInfoAddress != 0x2100 {
		t.Errorf("function = %+v", entry.Function)
	}
}

func TestExceptionDirectoryBrokenChain(t *testing.T) {
	rdata := newRdataWriter(0x400)

	rdata.u32(0x00, 0x1000)
	rdata.u32(0x04, 0x1050)
	rdata.u32(0x08, 0x2100)

	// Chains to a record whose unwind info RVA maps to no section.
	rdata.bytes(0x100, []byte{unwindHeaderByte(1, UNW_FLAG_CHAININFO), 0, 0, 0})
	rdata.u32(0x104, 0x1100)
	rdata.u32(0x108, 0x1150)
	rdata.u32(0x10C, 0x9000)

	buf := buildBasicImage(rdata.buf, func(b *imageBuilder) {
		b.setDirectory(IMAGE_DIRECTORY_ENTRY_EXCEPTION, 0x2000, sizeofRuntimeFunction)
	})
	p := mustParser(t, buf)

	got, err := p.GetExceptionDirectory()
	if err != nil {
		t.Fatalf("GetExceptionDirectory: %v", err)
	}
	entry := got[0]

	if entry.Resolution != ChainPartial {
		t.Errorf("resolution = %v, want ChainPartial", entry.Resolution)
	}
	// The last successfully read record is kept, its unwind info absent.
	if entry.Resolved.BeginAddress != 0x1100 || entry.UnwindInfo != nil {
		t.Errorf("entry = %+v", entry)
	}
}

func TestExceptionDirectoryChainCycle(t *testing.T) {
	rdata := newRdataWriter(0x400)

	rdata.u32(0x00, 0x1000)
	rdata.u32(0x04, 0x1050)
	rdata.u32(0x08, 0x2100)

	// Chained record points back at the same unwind info.
	rdata.bytes(0x100, []byte{unwindHeaderByte(1, UNW_FLAG_CHAININFO), 0, 0, 0})
	rdata.u32(0x104, 0x1000)
	rdata.u32(0x108, 0x1050)
	rdata.u32(0x10C, 0x2100)

	buf := buildBasicImage(rdata.buf, func(b *imageBuilder) {
		b.setDirectory(IMAGE_DIRECTORY_ENTRY_EXCEPTION, 0x2000, sizeofRuntimeFunction)
	})
	p := mustParser(t, buf)

	got, err := p.GetExceptionDirectory()
	if err != nil {
		t.Fatalf("GetExceptionDirectory: %v", err)
	}
	if got[0].Resolution != ChainPartial {
		t.Errorf("resolution = %v, want ChainPartial on a cyclic chain", got[0].Resolution)
	}
}
