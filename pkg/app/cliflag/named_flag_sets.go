// Package cliflag groups a command's flags into named sections so --help
// output reads as a table of contents instead of one long alphabetized
// list. The pattern follows k8s.io/component-base/cli/flag.
package cliflag

import (
	"bytes"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// NamedFlagSets relates flag sets to a name, preserving insertion order so
// --help can print sections in the order a command declared them rather
// than alphabetically.
type NamedFlagSets struct {
	// Order holds the section names in the order FlagSet was first called
	// for each of them.
	Order []string

	// FlagSets maps a section name to its flags.
	FlagSets map[string]*pflag.FlagSet
}

// FlagSet returns the flag set for the given section name, creating it
// (and appending it to Order) on first use.
func (nfs *NamedFlagSets) FlagSet(name string) *pflag.FlagSet {
	if nfs.FlagSets == nil {
		nfs.FlagSets = map[string]*pflag.FlagSet{}
	}
	if _, ok := nfs.FlagSets[name]; !ok {
		nfs.FlagSets[name] = pflag.NewFlagSet(name, pflag.ExitOnError)
		nfs.Order = append(nfs.Order, name)
	}
	return nfs.FlagSets[name]
}

// PrintSections prints a section header followed by its flag defaults for
// every named flag set in Order, wrapping each section's usage lines to
// cols (pflag's own default of 0 disables wrapping).
func PrintSections(w *bytes.Buffer, fss NamedFlagSets, cols int) {
	for _, name := range fss.Order {
		fs := fss.FlagSets[name]
		if !fs.HasFlags() {
			continue
		}

		wideFS := pflag.NewFlagSet(name, pflag.ExitOnError)
		wideFS.AddFlagSet(fs)

		var buf bytes.Buffer
		buf.WriteString(wideFS.FlagUsagesWrapped(cols))

		w.WriteString(strings.ToUpper(name[:1]) + name[1:] + " flags:\n\n")
		w.Write(buf.Bytes())
		w.WriteString("\n")
	}
}

// SortedSectionNames returns a copy of the section names in Order sorted
// alphabetically, for a deterministic listing independent of registration
// order (e.g. diagnostics output). fss.Order itself is left untouched.
func SortedSectionNames(fss NamedFlagSets) []string {
	names := make([]string, len(fss.Order))
	copy(names, fss.Order)
	sort.Strings(names)
	return names
}
