package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ossyrian/vdfs/internal/archive"
	"github.com/ossyrian/vdfs/internal/config"
)

var errMissingArchive = errors.New("no archive given, use --archive")

func addCommands(root *cobra.Command) {
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Print the archive header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(afero.NewOsFs(), cfg, cmd.OutOrStdout())
		},
	}

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List the files in the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(afero.NewOsFs(), cfg, cmd.OutOrStdout())
		},
	}
	lsCmd.Flags().Bool("json", false, "print the listing as JSON")
	viper.BindPFlag("json", lsCmd.Flags().Lookup("json"))

	catCmd := &cobra.Command{
		Use:   "cat PATH",
		Short: "Write a file from the archive to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCat(afero.NewOsFs(), cfg, args[0], cmd.OutOrStdout())
		},
	}

	addCmd := &cobra.Command{
		Use:   "add SRC",
		Short: "Add or replace a file in the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(afero.NewOsFs(), cfg, args[0])
		},
	}
	addCmd.Flags().Bool("create", false, "create the archive if it does not exist")
	addCmd.Flags().String("as", "", "path inside the archive (default: base name of SRC)")
	viper.BindPFlag("create", addCmd.Flags().Lookup("create"))
	viper.BindPFlag("as", addCmd.Flags().Lookup("as"))

	rmCmd := &cobra.Command{
		Use:   "rm PATH...",
		Short: "Remove files from the archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(afero.NewOsFs(), cfg, args)
		},
	}

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract every file of the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(afero.NewOsFs(), cfg)
		},
	}
	extractCmd.Flags().StringP("output", "o", ".", "directory to extract to")
	viper.BindPFlag("output", extractCmd.Flags().Lookup("output"))

	packCmd := &cobra.Command{
		Use:   "pack DIR",
		Short: "Build a new archive from a directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(afero.NewOsFs(), cfg, args[0])
		},
	}

	root.AddCommand(infoCmd, lsCmd, catCmd, addCmd, rmCmd, extractCmd, packCmd)
}

func archiveOptions(cfg *config.Config) []archive.Option {
	opts := []archive.Option{archive.WithLogger(slog.Default())}
	if cfg.Comment != "" {
		opts = append(opts, archive.WithComment(cfg.Comment))
	}
	if cfg.Signature != "" {
		opts = append(opts, archive.WithSignature(cfg.Signature))
	}
	return opts
}

func openArchive(fsys afero.Fs, cfg *config.Config) (*archive.Archive, error) {
	if cfg.Archive == "" {
		return nil, errMissingArchive
	}
	return archive.Open(fsys, cfg.Archive, archiveOptions(cfg)...)
}

// openForUpdate opens an archive a command is going to modify.
func openForUpdate(fsys afero.Fs, cfg *config.Config) (*archive.Archive, error) {
	a, err := openArchive(fsys, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Comment != "" {
		a.SetComment(cfg.Comment)
	}
	return a, nil
}

// createArchive creates a new archive. Dry runs build it in memory so the
// file on disk is never truncated.
func createArchive(fsys afero.Fs, cfg *config.Config) (*archive.Archive, error) {
	if cfg.Archive == "" {
		return nil, errMissingArchive
	}
	if cfg.DryRun {
		fsys = afero.NewMemMapFs()
	}
	return archive.Create(fsys, cfg.Archive, archiveOptions(cfg)...)
}

// finish persists the changes made to a, or drops them on a dry run.
func finish(a *archive.Archive, cfg *config.Config) error {
	if cfg.DryRun {
		slog.Info("dry run, discarding changes", "archive", a.Path(), "modified", a.Modified())
		return a.Discard()
	}
	return a.Close()
}

func runInfo(fsys afero.Fs, cfg *config.Config, w io.Writer) error {
	a, err := openArchive(fsys, cfg)
	if err != nil {
		return err
	}
	defer a.Discard()

	h := a.Header()
	fmt.Fprintf(w, "archive:      %s\n", a.Path())
	fmt.Fprintf(w, "comment:      %s\n", h.Comment)
	fmt.Fprintf(w, "signature:    %q\n", h.Signature)
	fmt.Fprintf(w, "created:      %s\n", h.Created().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "entries:      %d\n", h.EntryCount)
	fmt.Fprintf(w, "files:        %d\n", h.FileCount)
	fmt.Fprintf(w, "content size: %d\n", h.ContentSize)
	fmt.Fprintf(w, "root offset:  %d\n", h.RootOffset)
	fmt.Fprintf(w, "entry size:   %d\n", h.EntrySize)
	_, err = fmt.Fprintf(w, "index size:   %d\n", a.IndexSize())

	return err
}

func runList(fsys afero.Fs, cfg *config.Config, w io.Writer) error {
	a, err := openArchive(fsys, cfg)
	if err != nil {
		return err
	}
	defer a.Discard()

	root := a.Listing()
	if !cfg.JSON {
		return root.Print(w)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(root)
}

func runCat(fsys afero.Fs, cfg *config.Config, path string, w io.Writer) error {
	a, err := openArchive(fsys, cfg)
	if err != nil {
		return err
	}
	defer a.Discard()

	fe := a.GetFile(path)
	if !fe.Found() {
		return fmt.Errorf("%w: %s", archive.ErrNotFound, path)
	}

	data, err := a.ReadAll(fe)
	if err != nil {
		return err
	}
	slog.Debug("read file", "path", fe.Path(), "size", fe.Size(), "attribute", fe.Attribute())
	_, err = w.Write(data)
	return err
}

func runAdd(fsys afero.Fs, cfg *config.Config, src string) error {
	data, err := afero.ReadFile(fsys, src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}

	dest := cfg.As
	if dest == "" {
		dest = filepath.Base(src)
	}

	var a *archive.Archive
	exists, err := afero.Exists(fsys, cfg.Archive)
	switch {
	case err != nil:
		return err
	case !exists && cfg.Create:
		a, err = createArchive(fsys, cfg)
	default:
		a, err = openForUpdate(fsys, cfg)
	}
	if err != nil {
		return err
	}

	fe, err := a.CreateFile(dest)
	if err == nil {
		err = a.WriteFile(fe, data)
	}
	if err != nil {
		return errors.Join(err, a.Discard())
	}

	slog.Info("added file", "src", src, "path", fe.Path(), "size", len(data))

	return finish(a, cfg)
}

func runRemove(fsys afero.Fs, cfg *config.Config, paths []string) error {
	a, err := openForUpdate(fsys, cfg)
	if err != nil {
		return err
	}

	for _, p := range paths {
		fe := a.GetFile(p)
		if !fe.Found() {
			return errors.Join(fmt.Errorf("%w: %s", archive.ErrNotFound, p), a.Discard())
		}
		if err := a.RemoveFile(fe); err != nil {
			return errors.Join(err, a.Discard())
		}
		slog.Info("removed file", "path", fe.Path())
	}

	return finish(a, cfg)
}

func runExtract(fsys afero.Fs, cfg *config.Config) error {
	a, err := openArchive(fsys, cfg)
	if err != nil {
		return err
	}
	defer a.Discard()

	out := cfg.OutputDir
	if out == "" {
		out = "."
	}

	count := 0
	err = a.Walk(func(fe archive.FileEntry) error {
		rel := filepath.FromSlash(fe.Path())
		if !filepath.IsLocal(rel) {
			slog.Warn("skipping file with unsafe path", "path", fe.Path())
			return nil
		}

		data, err := a.ReadAll(fe)
		if err != nil {
			return err
		}

		dest := filepath.Join(out, rel)
		if cfg.DryRun {
			slog.Debug("would extract file", "path", fe.Path(), "dest", dest)
			count++
			return nil
		}
		if err := fsys.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", dest, err)
		}
		if err := afero.WriteFile(fsys, dest, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("extracted archive", "archive", a.Path(), "output", out, "files", count)

	return nil
}

func runPack(fsys afero.Fs, cfg *config.Config, dir string) error {
	info, err := fsys.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	archivePath, err := filepath.Abs(cfg.Archive)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", cfg.Archive, err)
	}

	a, err := createArchive(fsys, cfg)
	if err != nil {
		return err
	}

	err = afero.Walk(fsys, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		if abs == archivePath {
			slog.Debug("skipping the archive itself", "path", path)
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		fe, err := a.CreateFile(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		return a.WriteFile(fe, data)
	})
	if err != nil {
		return errors.Join(err, a.Discard())
	}

	return finish(a, cfg)
}
