package pe

// ExportEntry is one named export. Ordinal is the biased ordinal
// (unbiased index + the table's ordinal base). Address is the mapped
// virtual address of the function under the current image base, or 0 when
// the function RVA is 0.
//
// A forwarder entry's function RVA points back inside the export directory
// itself; the target is then the "Module.Function" string stored there, not
// code, and it is captured in Forwarder.
type ExportEntry struct {
	Name        string
	Ordinal     uint32
	Address     uint64
	IsForwarder bool
	Forwarder   string
}

// ExportDirectoryData is the decoded export directory: the raw table, the
// exporting module's name and the named exports in name-table order.
type ExportDirectoryData struct {
	Table   IMAGE_EXPORT_DIRECTORY
	DLLName string
	Entries []ExportEntry
}

// GetExportDirectory decodes the export directory by walking the parallel
// name and name-ordinal arrays and indexing the function array with each
// ordinal. An absent directory yields nil and no error.
func (p *Parser) GetExportDirectory() (*ExportDirectoryData, error) {
	exportDir := p.info.DataDirectories[IMAGE_DIRECTORY_ENTRY_EXPORT]
	if exportDir.VirtualAddress == 0 {
		return nil, nil
	}

	offset, err := p.RVAToOffset(exportDir.VirtualAddress)
	if err != nil {
		return nil, err
	}
	table, err := readExportDirectory(p.buf, offset)
	if err != nil {
		return nil, err
	}

	var dllName string
	if table.Name != 0 {
		nameOffset, err := p.RVAToOffset(table.Name)
		if err != nil {
			return nil, err
		}
		if dllName, err = cstringAt(p.buf, nameOffset); err != nil {
			return nil, err
		}
	}

	functionsOffset, err := p.RVAToOffset(table.AddressOfFunctions)
	if err != nil {
		return nil, err
	}
	namesOffset, err := p.RVAToOffset(table.AddressOfNames)
	if err != nil {
		return nil, err
	}
	ordinalsOffset, err := p.RVAToOffset(table.AddressOfNameOrdinals)
	if err != nil {
		return nil, err
	}

	entries := make([]ExportEntry, 0, table.NumberOfNames)
	for i := 0; i < int(table.NumberOfNames); i++ {
		nameRVA, err := readU32(p.buf, namesOffset+i*4)
		if err != nil {
			return nil, err
		}
		ordinal, err := readU16(p.buf, ordinalsOffset+i*2)
		if err != nil {
			return nil, err
		}
		functionRVA, err := readU32(p.buf, functionsOffset+int(ordinal)*4)
		if err != nil {
			return nil, err
		}

		var name string
		if nameRVA != 0 {
			nameOffset, err := p.RVAToOffset(nameRVA)
			if err != nil {
				return nil, err
			}
			if name, err = cstringAt(p.buf, nameOffset); err != nil {
				return nil, err
			}
		}

		entry := ExportEntry{
			Name:    name,
			Ordinal: uint32(ordinal) + table.Base,
		}
		if functionRVA >= exportDir.VirtualAddress &&
			functionRVA < exportDir.VirtualAddress+exportDir.Size {
			entry.IsForwarder = true
			forwarderOffset, err := p.RVAToOffset(functionRVA)
			if err != nil {
				return nil, err
			}
			if entry.Forwarder, err = cstringAt(p.buf, forwarderOffset); err != nil {
				return nil, err
			}
		}
		if functionRVA != 0 {
			entry.Address = p.GetImageBase() + uint64(functionRVA)
		}
		entries = append(entries, entry)
	}

	return &ExportDirectoryData{Table: table, DLLName: dllName, Entries: entries}, nil
}
