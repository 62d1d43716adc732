package packager

import (
	"archive/tar"
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"
)

const (
	executableMode = 0o755
	dirMode        = 0o755
	outputMode     = 0o644
)

// archiveTime is stamped on every entry; it is the earliest time a zip header can hold.
var archiveTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// writeZip stores src as the single Deflate entry name of a new archive at dst.
func writeZip(dst, src, name string) error {
	return replaceFile(dst, func(w io.Writer) error {
		in, err := os.Open(filepath.Clean(src))
		if err != nil {
			return err
		}
		defer in.Close()

		zw := zip.NewWriter(w)

		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: archiveTime,
		}
		header.SetMode(executableMode)

		entry, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		if _, err = io.Copy(entry, in); err != nil {
			return err
		}

		return zw.Close()
	})
}

// writeTarXZ stores src as the single entry name of an xz-compressed tarball at dst.
func writeTarXZ(dst, src, name string) error {
	return replaceFile(dst, func(w io.Writer) error {
		in, err := os.Open(filepath.Clean(src))
		if err != nil {
			return err
		}
		defer in.Close()

		info, err := in.Stat()
		if err != nil {
			return err
		}

		xw, err := xz.NewWriter(w)
		if err != nil {
			return err
		}

		tw := tar.NewWriter(xw)

		err = tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     executableMode,
			Size:     info.Size(),
			ModTime:  archiveTime,
			Format:   tar.FormatUSTAR,
		})
		if err != nil {
			return err
		}

		if _, err = io.Copy(tw, in); err != nil {
			return err
		}

		if err = tw.Close(); err != nil {
			return err
		}

		return xw.Close()
	})
}

// replaceFile writes dst through a temporary sibling so a failed run never
// leaves a truncated archive behind.
func replaceFile(dst string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(dst), dirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name())

	if err = write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}

	if err = tmp.Chmod(outputMode); err != nil {
		_ = tmp.Close()
		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dst)
}
