package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tendant/h5p-content/pkg/h5pcontent"
)

func NewLibraryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "library",
		Aliases: []string{"lib"},
		Short:   "Inspect and maintain the H5P library registry",
	}
	cmd.AddCommand(newLibraryListCommand())
	cmd.AddCommand(newLibraryShowCommand())
	cmd.AddCommand(newLibraryDepsCommand())
	cmd.AddCommand(newLibraryRegisterCommand())
	cmd.AddCommand(newLibraryDeleteCommand())
	return cmd
}

// withService builds the configured service for the lifetime of one command.
func withService(cmd *cobra.Command, fn func(svc h5pcontent.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseType == "memory" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: in-memory database, changes are not persisted")
	}
	svc, closeFn, err := cfg.BuildService(cmd.Context(), cliLogger())
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc)
}

func newLibraryListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered libraries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc h5pcontent.Service) error {
				libs, err := svc.ListLibraries(cmd.Context())
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), libs)
				}
				printLibraries(cmd, libs)
				return nil
			})
		},
	}
}

func newLibraryShowCommand() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Show one library (latest version unless --version is set)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc h5pcontent.Service) error {
				lib, err := findLibrary(cmd, svc, args[0], version)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), lib)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:         %s\n", lib.ID)
				fmt.Fprintf(out, "Library:    %s\n", lib.LibraryString())
				fmt.Fprintf(out, "Title:      %s\n", lib.Title)
				fmt.Fprintf(out, "Origin:     %s\n", lib.Origin)
				fmt.Fprintf(out, "Runnable:   %t\n", lib.Runnable)
				fmt.Fprintf(out, "Restricted: %t\n", lib.Restricted)
				fmt.Fprintf(out, "Updated:    %s\n", lib.UpdatedAt.Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "exact version (major.minor.patch)")
	return cmd
}

func newLibraryDepsCommand() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "deps NAME",
		Short: "Show the full transitive dependency tree of a library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc h5pcontent.Service) error {
				lib, err := findLibrary(cmd, svc, args[0], version)
				if err != nil {
					return err
				}
				tree, err := svc.FullDependencyTree(cmd.Context(), lib.ID)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), tree)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s depends on %d libraries\n", lib.LibraryString(), len(tree))
				printLibraries(cmd, tree)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "exact version (major.minor.patch)")
	return cmd
}

func newLibraryRegisterCommand() *cobra.Command {
	var origin string
	var restricted bool
	cmd := &cobra.Command{
		Use:   "register LIBRARY_JSON",
		Short: "Register a library from its library.json manifest",
		Long: `Register a library from its library.json manifest.

Every declared dependency must already be registered. References match on
machine name, major and minor version; the highest registered patch wins.
Registering an existing version replaces its dependency edges.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			manifest, err := h5pcontent.ParseLibraryManifest(data)
			if err != nil {
				return err
			}
			lib := manifest.Library()
			lib.Origin = h5pcontent.LibraryOrigin(origin)
			lib.Restricted = restricted

			return withService(cmd, func(svc h5pcontent.Service) error {
				ctx := cmd.Context()
				registered, err := svc.ListLibraries(ctx)
				if err != nil {
					return err
				}

				// resolve everything first so a missing dependency registers nothing
				deps := manifest.Dependencies()
				targets := make([]*h5pcontent.Library, len(deps))
				var missing []string
				for i, d := range deps {
					target, ok := h5pcontent.MatchDependencyRef(registered, d.Ref)
					if !ok {
						missing = append(missing, fmt.Sprintf("%s %d.%d", d.Ref.MachineName, d.Ref.MajorVersion, d.Ref.MinorVersion))
						continue
					}
					targets[i] = target
				}
				if len(missing) > 0 {
					return fmt.Errorf("unregistered dependencies: %s", strings.Join(missing, ", "))
				}

				saved, err := svc.UpsertLibrary(ctx, lib)
				if err != nil {
					return err
				}
				// the manifest is authoritative for the edge set
				if err := svc.DeleteLibraryDependencies(ctx, saved.ID); err != nil {
					return err
				}
				for i, d := range deps {
					if err := svc.AddLibraryDependency(ctx, h5pcontent.LibraryDependency{
						LibraryID:      saved.ID,
						DependsOnID:    targets[i].ID,
						DependencyType: d.Type,
					}); err != nil {
						return fmt.Errorf("add dependency %s: %w", targets[i].LibraryString(), err)
					}
				}

				if wantJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), saved)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s) with %d dependencies\n", saved.LibraryString(), saved.ID, len(deps))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", string(h5pcontent.LibraryOriginCustom), "library origin (official or custom)")
	cmd.Flags().BoolVar(&restricted, "restricted", false, "mark the library as restricted")
	return cmd
}

func newLibraryDeleteCommand() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a library (every version unless --version is set)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc h5pcontent.Service) error {
				if version == "" {
					if err := svc.DeleteLibraryByMachineName(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted all versions of %s\n", args[0])
					return nil
				}
				lib, err := findLibrary(cmd, svc, args[0], version)
				if err != nil {
					return err
				}
				if err := svc.DeleteLibrary(cmd.Context(), lib.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", lib.LibraryString())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "exact version (major.minor.patch)")
	return cmd
}

func findLibrary(cmd *cobra.Command, svc h5pcontent.Service, name, version string) (*h5pcontent.Library, error) {
	if version == "" {
		return svc.GetLibraryByMachineName(cmd.Context(), name)
	}
	var major, minor, patch int
	if _, err := fmt.Sscanf(version, "%d.%d.%d", &major, &minor, &patch); err != nil {
		return nil, fmt.Errorf("invalid version %q, expected major.minor.patch", version)
	}
	return svc.GetLibraryByVersion(cmd.Context(), name, major, minor, patch)
}

func printLibraries(cmd *cobra.Command, libs []*h5pcontent.Library) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVERSION\tTITLE\tORIGIN\tRUNNABLE")
	for _, l := range libs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", l.ID, l.MachineName, l.VersionString(), l.Title, l.Origin, l.Runnable)
	}
	w.Flush()
}
