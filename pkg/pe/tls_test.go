package pe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGetTLSDirectory(t *testing.T) {
	rdata := newRdataWriter(0x400)

	// IMAGE_TLS_DIRECTORY64 at RVA 0x2000, callbacks at 0x2100.
	rdata.u64(0x00, testImageBase+0x2200) // StartAddressOfRawData
	rdata.u64(0x08, testImageBase+0x2300) // EndAddressOfRawData
	rdata.u64(0x10, testImageBase+0x2080) // AddressOfIndex
	rdata.u64(0x18, 0x2100)               // AddressOfCallBacks
	rdata.u64(0x100, testImageBase+0x1010)
	rdata.u64(0x108, testImageBase+0x1020)
	// zero terminator follows

	buf := buildBasicImage(rdata.buf, func(b *imageBuilder) {
		b.setDirectory(IMAGE_DIRECTORY_ENTRY_TLS, 0x2000, sizeofTLSDirectory64)
	})
	p := mustParser(t, buf)

	got, err := p.GetTLSDirectory()
	if err != nil {
		t.Fatalf("GetTLSDirectory: %v", err)
	}
	if got.Directory.AddressOfCallBacks != 0x2100 {
		t.Errorf("directory = %+v", got.Directory)
	}
	want := []uint64{testImageBase + 0x1010, testImageBase + 0x1020}
	if diff := cmp.Diff(want, got.Callbacks); diff != "" {
		t.Errorf("callbacks mismatch (-want +got):\n%s", diff)
	}
}

func TestGetTLSDirectoryNoCallbacks(t *testing.T) {
	rdata := newRdataWriter(0x400)
	rdata.u64(0x00, testImageBase+0x2200)

	buf := buildBasicImage(rdata.buf, func(b *imageBuilder) {
		b.setDirectory(IMAGE_DIRECTORY_ENTRY_TLS, 0x2000, sizeofTLSDirectory64)
	})
	p := mustParser(t, buf)

	got, err := p.GetTLSDirectory()
	if err != nil {
		t.Fatalf("GetTLSDirectory: %v", err)
	}
	if len(got.Callbacks) != 0 {
		t.Errorf("callbacks = %v, want none", got.Callbacks)
	}
}
