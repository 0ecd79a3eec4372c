package pe

// TLSDirectoryData is the raw TLS directory plus its callback pointers, read
// from the zero-terminated array the directory points at.
type TLSDirectoryData struct {
	Directory IMAGE_TLS_DIRECTORY64
	Callbacks []uint64
}

// GetTLSDirectory decodes the TLS directory. The callback array has no
// declared length; consecutive 8-byte pointers are read until a zero value
// terminates it. The callback array address is truncated to 32 bits and
// translated like an RVA. An absent directory yields nil and no error.
func (p *Parser) GetTLSDirectory() (*TLSDirectoryData, error) {
	tlsDir := p.info.DataDirectories[IMAGE_DIRECTORY_ENTRY_TLS]
	if tlsDir.VirtualAddress == 0 {
		return nil, nil
	}

	offset, err := p.RVAToOffset(tlsDir.VirtualAddress)
	if err != nil {
		return nil, err
	}
	tls, err := readTLSDirectory64(p.buf, offset)
	if err != nil {
		return nil, err
	}

	var callbacks []uint64
	if tls.AddressOfCallBacks != 0 {
		callbackOffset, err := p.RVAToOffset(uint32(tls.AddressOfCallBacks))
		if err != nil {
			return nil, err
		}
		for current := callbackOffset; ; current += 8 {
			callback, err := readU64(p.buf, current)
			if err != nil {
				return nil, err
			}
			if callback == 0 {
				break
			}
			callbacks = append(callbacks, callback)
		}
	}
	return &TLSDirectoryData{Directory: tls, Callbacks: callbacks}, nil
}
