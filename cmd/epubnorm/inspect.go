package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/yuanying/epubnorm/internal/epub"
	"github.com/yuanying/epubnorm/internal/opf"
)

// rootedStorage is an opened EPUB that knows where its package document is.
type rootedStorage interface {
	opf.Storage
	OPFPath() string
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Show the package structure and the flattened name of every item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFlags(cmd); err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := buildLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

			store, err := openStorage(args[0])
			if err != nil {
				return err
			}
			doc, err := opf.LoadDocument(store, store.OPFPath())
			if err != nil {
				return fmt.Errorf("failed to load OPF: %w", err)
			}
			return inspectPackage(cmd.OutOrStdout(), opf.New(doc, opf.Options{Logger: logger}))
		},
	}
	addCommonFlags(cmd)
	return cmd
}

func openStorage(input string) (rootedStorage, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	if info.IsDir() {
		return epub.OpenDir(input)
	}
	return epub.Open(input)
}

func inspectPackage(w io.Writer, pkg *opf.Package) error {
	md := opf.ReadMetadata(pkg.Document)

	fmt.Fprintf(w, "Package:     %s\n", pkg.Document.Path())
	fmt.Fprintf(w, "Title:       %s\n", md.Title)
	fmt.Fprintf(w, "Language:    %s\n", md.Language)
	fmt.Fprintf(w, "Identifier:  %s\n", md.Identifier)
	for _, c := range md.Creators {
		if c.Role != "" {
			fmt.Fprintf(w, "Creator:     %s (%s)\n", c.Name, c.Role)
		} else {
			fmt.Fprintf(w, "Creator:     %s\n", c.Name)
		}
	}
	if cover := opf.DetectCover(pkg, md); cover != nil {
		fmt.Fprintf(w, "Cover:       %s (%s)\n", cover.Href, cover.DetectionMethod)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Manifest:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tTYPE\tMEDIA-TYPE\tHREF\tFLATTENED")
	for _, e := range pkg.Manifest.Entries() {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", e.ID, e.Type, e.MediaType, e.Href, opf.HashedPath(e.AbsPath))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if toc := pkg.Spine.TocManifestID(); toc != "" {
		fmt.Fprintf(w, "Spine (toc: %s):\n", toc)
	} else {
		fmt.Fprintln(w, "Spine:")
	}
	for i, e := range pkg.Spine.Entries() {
		var flags []string
		if !e.Linear {
			flags = append(flags, "non-linear")
		}
		if _, ok, err := pkg.Manifest.Item(e.IDRef); err != nil {
			return err
		} else if !ok {
			flags = append(flags, "dangling")
		}
		if len(flags) > 0 {
			fmt.Fprintf(w, "  %d. %s [%s]\n", i+1, e.IDRef, strings.Join(flags, ", "))
		} else {
			fmt.Fprintf(w, "  %d. %s\n", i+1, e.IDRef)
		}
	}

	refs := pkg.Guide.Entries()
	if len(refs) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Guide:")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range refs {
		href := r.Href
		if r.Anchor != "" {
			href += "#" + r.Anchor
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.Type, r.Title, href)
	}
	return tw.Flush()
}
