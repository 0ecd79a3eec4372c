package pe

import (
	"github.com/pkg/errors"
)

// Decode failures fall into two families: format errors mean header
// validation failed and parsing cannot continue, bounds errors mean a read
// landed outside the buffer or an RVA outside every section. All of them are
// wrapped with offset/RVA context before they surface, so match with
// errors.Is rather than ==.
var (
	ErrNotPE              = errors.New("not a valid PE file")
	ErrBadSignature       = errors.New("invalid PE signature")
	ErrWrongMachine       = errors.New("not an x64 binary")
	ErrWrongOptionalMagic = errors.New("not a PE32+ binary")

	ErrStructureOverflow = errors.New("buffer overflow reading structure")
	ErrRVANotInSection   = errors.New("RVA not found in any section")
)
