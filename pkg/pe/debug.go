package pe

// DebugEntry is one debug directory slot. Data holds the entry's raw
// payload when the entry declares both a file offset and a size and the
// range lies inside the buffer; otherwise it is nil.
type DebugEntry struct {
	Entry IMAGE_DEBUG_DIRECTORY
	Data  []byte
}

// GetDebugDirectory decodes every debug directory entry. An unreadable
// payload leaves that entry's Data nil rather than failing the decode. An
// absent directory yields nil and no error.
func (p *Parser) GetDebugDirectory() ([]DebugEntry, error) {
	debugDir := p.info.DataDirectories[IMAGE_DIRECTORY_ENTRY_DEBUG]
	if debugDir.VirtualAddress == 0 {
		return nil, nil
	}

	offset, err := p.RVAToOffset(debugDir.VirtualAddress)
	if err != nil {
		return nil, err
	}

	entryCount := int(debugDir.Size) / sizeofDebugDirectory
	result := make([]DebugEntry, 0, entryCount)
	for i := 0; i < entryCount; i++ {
		entry, err := readDebugDirectory(p.buf, offset+i*sizeofDebugDirectory)
		if err != nil {
			return nil, err
		}

		var data []byte
		if entry.PointerToRawData != 0 && entry.SizeOfData != 0 {
			start := int(entry.PointerToRawData)
			end := start + int(entry.SizeOfData)
			if start >= 0 && end <= len(p.buf) {
				data = p.buf[start:end]
			}
		}
		result = append(result, DebugEntry{Entry: entry, Data: data})
	}
	return result, nil
}
