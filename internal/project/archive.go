package project

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/blockc/internal/ir"
)

// projectEntry is the archive member holding the project document.
const projectEntry = "project.json"

// writeArchive packs doc and the assets into a stored (uncompressed) zip
// at path. Assets are deduplicated by destination and written in name
// order. The archive is written beside path and renamed into place, so a
// failed build never leaves a truncated file behind.
func writeArchive(path string, doc []byte, assets []ir.AssetInstruction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blockc-*.sb3")
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := packArchive(tmp, doc, assets); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move archive into place: %w", err)
	}
	return nil
}

func packArchive(w io.Writer, doc []byte, assets []ir.AssetInstruction) error {
	zw := zip.NewWriter(w)

	if err := storeEntry(zw, projectEntry, func(dst io.Writer) error {
		_, err := dst.Write(doc)
		return err
	}); err != nil {
		return err
	}

	sources := make(map[string]string, len(assets))
	for _, a := range assets {
		if _, seen := sources[a.Destination]; !seen {
			sources[a.Destination] = a.Source
		}
	}
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src := sources[name]
		if err := storeEntry(zw, name, func(dst io.Writer) error {
			f, err := os.Open(src)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(dst, f)
			return err
		}); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func storeEntry(zw *zip.Writer, name string, write func(io.Writer) error) error {
	dst, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	if err := write(dst); err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	return nil
}
