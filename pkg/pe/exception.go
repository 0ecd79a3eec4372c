package pe

// ChainResolution says how far an unwind chain walk got.
type ChainResolution int

const (
	// ChainResolved means the walk reached a record with no chain flag.
	ChainResolved ChainResolution = iota
	// ChainPartial means the walk stopped early (unreadable link, a cycle,
	// or the depth bound) and Resolved holds the last good record.
	ChainPartial
)

// Chained unwind records share encodings between functions; a hostile image
// can make the chain arbitrarily long or circular, so the walk is bounded.
const maxChainDepth = 32

// ExceptionEntry is one exception directory record. Function is the record
// as stored in the directory; Resolved is the terminal record after
// following chained unwind info, with Resolution saying whether the chain
// was walked to the end. UnwindInfo is the resolved record's unwind info
// when it was present and readable, nil otherwise.
type ExceptionEntry struct {
	Function   RUNTIME_FUNCTION
	Resolved   RUNTIME_FUNCTION
	Resolution ChainResolution
	UnwindInfo *UNWIND_INFO
}

// resolveChainedFunction follows chained unwind-info records to the terminal
// one. A chained RUNTIME_FUNCTION sits immediately after the even-padded
// unwind code array of the record that points at it. Any failure mid-walk
// degrades to the last record read rather than failing the decode.
func (p *Parser) resolveChainedFunction(fn RUNTIME_FUNCTION) (RUNTIME_FUNCTION, ChainResolution) {
	visited := make(map[uint32]bool)
	for depth := 0; depth < maxChainDepth; depth++ {
		if fn.UnwindInfoAddress == 0 {
			return fn, ChainResolved
		}
		if visited[fn.UnwindInfoAddress] {
			return fn, ChainPartial
		}
		visited[fn.UnwindInfoAddress] = true

		unwindOffset, err := p.RVAToOffset(fn.UnwindInfoAddress)
		if err != nil {
			return fn, ChainPartial
		}
		info, err := readUnwindInfo(p.buf, unwindOffset)
		if err != nil {
			return fn, ChainPartial
		}
		if info.Flags&UNW_FLAG_CHAININFO == 0 {
			return fn, ChainResolved
		}

		codeSlots := int(info.CountOfCodes)
		if codeSlots%2 != 0 {
			codeSlots++
		}
		chainOffset := unwindOffset + sizeofUnwindInfoHeader + codeSlots*sizeofUnwindCode
		chained, err := readRuntimeFunction(p.buf, chainOffset)
		if err != nil {
			return fn, ChainPartial
		}
		fn = chained
	}
	return fn, ChainPartial
}

// GetExceptionDirectory decodes the exception directory's RUNTIME_FUNCTION
// records, resolving each one's unwind chain to its terminal record. An
// unreadable terminal unwind info leaves the UnwindInfo field nil; it does
// not fail the decode. An absent directory yields nil and no error.
func (p *Parser) GetExceptionDirectory() ([]ExceptionEntry, error) {
	exceptionDir := p.info.DataDirectories[IMAGE_DIRECTORY_ENTRY_EXCEPTION]
	if exceptionDir.VirtualAddress == 0 {
		return nil, nil
	}

	offset, err := p.RVAToOffset(exceptionDir.VirtualAddress)
	if err != nil {
		return nil, err
	}

	entryCount := int(exceptionDir.Size) / sizeofRuntimeFunction
	result := make([]ExceptionEntry, 0, entryCount)
	for i := 0; i < entryCount; i++ {
		fn, err := readRuntimeFunction(p.buf, offset+i*sizeofRuntimeFunction)
		if err != nil {
			return nil, err
		}

		resolved, resolution := p.resolveChainedFunction(fn)
		entry := ExceptionEntry{Function: fn, Resolved: resolved, Resolution: resolution}
		if resolved.UnwindInfoAddress != 0 {
			if unwindOffset, err := p.RVAToOffset(resolved.UnwindInfoAddress); err == nil {
				if info, err := readUnwindInfo(p.buf, unwindOffset); err == nil {
					entry.UnwindInfo = &info
				}
			}
		}
		result = append(result, entry)
	}
	return result, nil
}
