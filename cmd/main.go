package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/carved4/go-peview/pkg/pe"
)

var (
	flagBase  uint64
	flagEntry uint64
)

func loadParser(path string) (*pe.Parser, error) {
	p, err := pe.NewParserFromFile(path)
	if err != nil {
		return nil, err
	}
	if flagBase != 0 {
		p = p.OverrideBaseAddress(flagBase)
	}
	if flagEntry != 0 {
		p = p.OverrideEntryPoint(flagEntry)
	}
	return p, nil
}

func newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	return table
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func runInfo(cmd *cobra.Command, args []string) error {
	p, err := loadParser(args[0])
	if err != nil {
		return err
	}
	info := p.Info()

	table := newTable()
	table.Append([]string{"machine", hex(uint64(info.FileHeader.Machine))})
	table.Append([]string{"sections", strconv.Itoa(len(info.SectionHeaders))})
	table.Append([]string{"image base", hex(p.GetImageBase())})
	table.Append([]string{"entry point", hex(p.GetEntryPoint())})
	if section := p.SectionNameForAddress(p.GetEntryPoint()); section != "" {
		table.Append([]string{"entry section", section})
	}
	if path, err := p.GetPDBPath(); err == nil && path != "" {
		table.Append([]string{"pdb", path})
	}
	table.Render()
	return nil
}

func runSections(cmd *cobra.Command, args []string) error {
	p, err := loadParser(args[0])
	if err != nil {
		return err
	}
	sections, err := p.GetAllSectionsData()
	if err != nil {
		return err
	}

	table := newTable()
	table.SetHeader([]string{"name", "address", "raw size", "exec"})
	for _, s := range sections {
		table.Append([]string{s.Name, hex(s.Address), strconv.Itoa(len(s.Data)),
			strconv.FormatBool(s.Executable)})
	}
	table.Render()
	return nil
}

func runImports(cmd *cobra.Command, args []string) error {
	p, err := loadParser(args[0])
	if err != nil {
		return err
	}
	imports, err := p.GetImportDirectory()
	if err != nil {
		return err
	}

	table := newTable()
	table.SetHeader([]string{"dll", "function", "hint", "ordinal", "thunk rva"})
	for _, dll := range imports {
		for _, entry := range dll.Entries {
			name, ordinal := entry.Name, ""
			if entry.ByOrdinal {
				name, ordinal = "-", strconv.Itoa(int(entry.Ordinal))
			}
			table.Append([]string{dll.Name, name, strconv.Itoa(int(entry.Hint)),
				ordinal, hex(entry.ThunkRVA)})
		}
	}
	table.Render()
	return nil
}

func runExports(cmd *cobra.Command, args []string) error {
	p, err := loadParser(args[0])
	if err != nil {
		return err
	}
	exports, err := p.GetExportDirectory()
	if err != nil {
		return err
	}
	if exports == nil {
		log.Info("no export directory")
		return nil
	}

	log.Infof("exports of %s", exports.DLLName)
	table := newTable()
	table.SetHeader([]string{"name", "ordinal", "address", "forwarder"})
	for _, entry := range exports.Entries {
		table.Append([]string{entry.Name, strconv.Itoa(int(entry.Ordinal)),
			hex(entry.Address), entry.Forwarder})
	}
	table.Render()
	return nil
}

func runRelocs(cmd *cobra.Command, args []string) error {
	p, err := loadParser(args[0])
	if err != nil {
		return err
	}
	blocks, err := p.GetRelocationDirectory()
	if err != nil {
		return err
	}

	table := newTable()
	table.SetHeader([]string{"page rva", "entries"})
	total := 0
	for _, block := range blocks {
		table.Append([]string{hex(uint64(block.PageRVA)), strconv.Itoa(len(block.Entries))})
		total += len(block.Entries)
	}
	table.Render()
	log.Infof("%d blocks, %d entries", len(blocks), total)
	return nil
}

func runExceptions(cmd *cobra.Command, args []string) error {
	p, err := loadParser(args[0])
	if err != nil {
		return err
	}
	entries, err := p.GetExceptionDirectory()
	if err != nil {
		return err
	}

	table := newTable()
	table.SetHeader([]string{"begin", "end", "unwind", "resolved", "codes"})
	for _, entry := range entries {
		resolution := "full"
		if entry.Resolution == pe.ChainPartial {
			resolution = "partial"
		}
		codes := "-"
		if entry.UnwindInfo != nil {
			codes = strconv.Itoa(int(entry.UnwindInfo.CountOfCodes))
		}
		table.Append([]string{
			hex(uint64(entry.Function.BeginAddress)),
			hex(uint64(entry.Function.EndAddress)),
			hex(uint64(entry.Resolved.UnwindInfoAddress)),
			resolution, codes,
		})
	}
	table.Render()
	return nil
}

func runTLS(cmd *cobra.Command, args []string) error {
	p, err := loadParser(args[0])
	if err != nil {
		return err
	}
	tls, err := p.GetTLSDirectory()
	if err != nil {
		return err
	}
	if tls == nil {
		log.Info("no TLS directory")
		return nil
	}

	table := newTable()
	table.SetHeader([]string{"callback"})
	for _, callback := range tls.Callbacks {
		table.Append([]string{hex(callback)})
	}
	table.Render()
	return nil
}

func runDebug(cmd *cobra.Command, args []string) error {
	p, err := loadParser(args[0])
	if err != nil {
		return err
	}
	entries, err := p.GetDebugDirectory()
	if err != nil {
		return err
	}

	table := newTable()
	table.SetHeader([]string{"type", "size", "file offset", "payload"})
	for _, entry := range entries {
		payload := "absent"
		if entry.Data != nil {
			payload = fmt.Sprintf("%d bytes", len(entry.Data))
		}
		table.Append([]string{strconv.Itoa(int(entry.Entry.Type)),
			strconv.Itoa(int(entry.Entry.SizeOfData)),
			hex(uint64(entry.Entry.PointerToRawData)), payload})
	}
	table.Render()
	return nil
}

func runPDB(cmd *cobra.Command, args []string) error {
	p, err := loadParser(args[0])
	if err != nil {
		return err
	}
	path, err := p.GetPDBPath()
	if err != nil {
		return err
	}
	url, err := p.GetPDBURL()
	if err != nil {
		return err
	}
	if path == "" && url == "" {
		log.Info("no CodeView debug record")
		return nil
	}
	fmt.Println(path)
	fmt.Println(url)
	return nil
}

func main() {
	root := &cobra.Command{
		Use:           "peview",
		Short:         "inspect PE32+/x64 images: headers, sections and data directories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Uint64Var(&flagBase, "base", 0, "reinterpret addresses with this image base")
	root.PersistentFlags().Uint64Var(&flagEntry, "entry", 0, "override the entry point offset")

	for _, c := range []struct {
		use   string
		short string
		run   func(*cobra.Command, []string) error
	}{
		{"info <file>", "summary of headers and entry point", runInfo},
		{"sections <file>", "section table with mapped addresses", runSections},
		{"imports <file>", "import directory", runImports},
		{"exports <file>", "export directory", runExports},
		{"relocs <file>", "base relocation directory", runRelocs},
		{"exceptions <file>", "exception directory with resolved unwind chains", runExceptions},
		{"tls <file>", "TLS directory and callbacks", runTLS},
		{"debug <file>", "debug directory", runDebug},
		{"pdb <file>", "PDB path and symbol-server URL", runPDB},
	} {
		root.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.ExactArgs(1),
			RunE:  c.run,
		})
	}

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
