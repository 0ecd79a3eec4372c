package pe

import (
	"strings"

	"github.com/pkg/errors"
)

// SectionData is one section's raw file bytes tagged with the virtual
// address it maps to under the current image base.
type SectionData struct {
	Name       string
	Data       []byte
	Address    uint64
	Executable bool
}

func (p *Parser) sectionBytes(s *IMAGE_SECTION_HEADER) ([]byte, error) {
	start := int(s.PointerToRawData)
	end := start + int(s.SizeOfRawData)
	if start < 0 || end > len(p.buf) {
		return nil, errors.Wrapf(ErrStructureOverflow,
			"section %s raw data [0x%x, 0x%x), buffer is %d bytes",
			sectionName(s), start, end, len(p.buf))
	}
	return p.buf[start:end], nil
}

// GetSectionData returns the raw bytes of the first section whose 8-byte
// null-padded name starts with sectionName, compared case-insensitively.
func (p *Parser) GetSectionData(name string) ([]byte, error) {
	for i := range p.info.SectionHeaders {
		s := &p.info.SectionHeaders[i]
		if strings.HasPrefix(strings.ToLower(string(s.Name[:])), strings.ToLower(name)) {
			return p.sectionBytes(s)
		}
	}
	return nil, errors.Errorf("section %s not found", name)
}

// GetTextSectionData returns the raw bytes of the .text section.
func (p *Parser) GetTextSectionData() ([]byte, error) {
	return p.GetSectionData(".text")
}

func (p *Parser) sectionsData(executableOnly bool) ([]SectionData, error) {
	var result []SectionData
	for i := range p.info.SectionHeaders {
		s := &p.info.SectionHeaders[i]
		executable := s.Characteristics&IMAGE_SCN_MEM_EXECUTE != 0
		if executableOnly && !executable {
			continue
		}
		data, err := p.sectionBytes(s)
		if err != nil {
			return nil, err
		}
		result = append(result, SectionData{
			Name:       sectionName(s),
			Data:       data,
			Address:    p.GetImageBase() + uint64(s.VirtualAddress),
			Executable: executable,
		})
	}
	return result, nil
}

// GetExecutableSectionsData returns every section carrying the execute
// characteristic, tagged with its mapped virtual address.
func (p *Parser) GetExecutableSectionsData() ([]SectionData, error) {
	return p.sectionsData(true)
}

// GetAllSectionsData returns every section, tagged with its mapped virtual
// address and an is-executable flag.
func (p *Parser) GetAllSectionsData() ([]SectionData, error) {
	return p.sectionsData(false)
}

// SectionNameForAddress returns the name of the first section whose mapped
// range contains address, with the range end taken from the raw data size
// and the upper bound inclusive. Returns "" when no section matches.
func (p *Parser) SectionNameForAddress(address uint64) string {
	for i := range p.info.SectionHeaders {
		s := &p.info.SectionHeaders[i]
		start := p.GetImageBase() + uint64(s.VirtualAddress)
		end := start + uint64(s.SizeOfRawData)
		if address >= start && address <= end {
			return sectionName(s)
		}
	}
	return ""
}
