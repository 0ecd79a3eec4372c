package pe

// ImportEntry is one imported function: either by ordinal (bit 63 of the
// lookup entry set) or by hint+name. ThunkRVA is the IAT slot the loader
// will patch for this entry.
type ImportEntry struct {
	Name      string
	Hint      uint16
	Ordinal   uint16
	ByOrdinal bool
	ThunkRVA  uint64
}

// ImportDLL is one import descriptor's DLL with its entries in lookup-table
// order.
type ImportDLL struct {
	Name    string
	Entries []ImportEntry
}

// GetImportDirectory walks the import descriptor table up to its zero
// sentinel (or the end of the buffer) and decodes each DLL's lookup table.
// An absent directory yields a nil slice and no error.
func (p *Parser) GetImportDirectory() ([]ImportDLL, error) {
	importDir := p.info.DataDirectories[IMAGE_DIRECTORY_ENTRY_IMPORT]
	if importDir.VirtualAddress == 0 {
		return nil, nil
	}

	offset, err := p.RVAToOffset(importDir.VirtualAddress)
	if err != nil {
		return nil, err
	}

	var result []ImportDLL
	for current := offset; current+sizeofImportDescriptor <= len(p.buf); current += sizeofImportDescriptor {
		desc, err := readImportDescriptor(p.buf, current)
		if err != nil {
			return nil, err
		}
		if desc.OriginalFirstThunk == 0 {
			break
		}

		nameOffset, err := p.RVAToOffset(desc.Name)
		if err != nil {
			return nil, err
		}
		dllName, err := cstringAt(p.buf, nameOffset)
		if err != nil {
			return nil, err
		}

		lookupOffset, err := p.RVAToOffset(desc.OriginalFirstThunk)
		if err != nil {
			return nil, err
		}

		var entries []ImportEntry
		iatBase := uint64(desc.FirstThunk)
		for index := uint64(0); ; index++ {
			entry, err := readU64(p.buf, lookupOffset)
			if err != nil {
				return nil, err
			}
			if entry == 0 {
				break
			}
			thunkRVA := iatBase + index*8

			if entry&(1<<63) != 0 {
				entries = append(entries, ImportEntry{
					Ordinal:   uint16(entry & 0xFFFF),
					ByOrdinal: true,
					ThunkRVA:  thunkRVA,
				})
			} else {
				hintOffset, err := p.RVAToOffset(uint32(entry & 0x7FFFFFFF))
				if err != nil {
					return nil, err
				}
				hint, err := readU16(p.buf, hintOffset)
				if err != nil {
					return nil, err
				}
				funcName, err := cstringAt(p.buf, hintOffset+2)
				if err != nil {
					return nil, err
				}
				entries = append(entries, ImportEntry{
					Name:     funcName,
					Hint:     hint,
					ThunkRVA: thunkRVA,
				})
			}
			lookupOffset += 8
		}

		result = append(result, ImportDLL{Name: dllName, Entries: entries})
	}
	return result, nil
}
