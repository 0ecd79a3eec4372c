package pe

import (
	"github.com/pkg/errors"
)

// RelocationEntry is one 2-byte relocation: a 4-bit type in the high nibble
// and a 12-bit offset into the block's page in the low bits.
type RelocationEntry struct {
	Type   uint16
	Offset uint16
}

// RelocationBlock is one variable-length base relocation block: a page RVA
// and its entries.
type RelocationBlock struct {
	PageRVA uint32
	Entries []RelocationEntry
}

// GetRelocationDirectory consumes the base relocation directory as a
// back-to-back sequence of blocks until the directory's byte size is used
// up. A block size below the 8-byte header is malformed and aborts the
// decode rather than spinning on it. An absent directory yields nil and no
// error.
func (p *Parser) GetRelocationDirectory() ([]RelocationBlock, error) {
	relocDir := p.info.DataDirectories[IMAGE_DIRECTORY_ENTRY_BASERELOC]
	if relocDir.VirtualAddress == 0 {
		return nil, nil
	}

	offset, err := p.RVAToOffset(relocDir.VirtualAddress)
	if err != nil {
		return nil, err
	}

	var result []RelocationBlock
	for current := offset; current < offset+int(relocDir.Size); {
		block, err := readBaseRelocation(p.buf, current)
		if err != nil {
			return nil, err
		}
		if block.SizeOfBlock < sizeofBaseRelocation {
			return nil, errors.Errorf("invalid relocation block size %d at offset 0x%x (minimum is %d)",
				block.SizeOfBlock, current, sizeofBaseRelocation)
		}

		entryCount := int(block.SizeOfBlock-sizeofBaseRelocation) / 2
		entries := make([]RelocationEntry, 0, entryCount)
		for i := 0; i < entryCount; i++ {
			raw, err := readU16(p.buf, current+sizeofBaseRelocation+i*2)
			if err != nil {
				return nil, err
			}
			entry := BASE_RELOCATION_ENTRY{OffsetType: raw}
			entries = append(entries, RelocationEntry{Type: entry.Type(), Offset: entry.Offset()})
		}
		result = append(result, RelocationBlock{PageRVA: block.VirtualAddress, Entries: entries})
		current += int(block.SizeOfBlock)
	}
	return result, nil
}
