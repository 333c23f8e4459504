package main

import (
	"archive/zip"
	"compress/gzip"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xi2/xz"
)

const csvMemberSuffix = ".csv"

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = ','
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// CollectFile collects one input path into acc. Compressed inputs are
// recognized by suffix: .gz, .xz, and .zip archives whose .csv members are
// each collected as a separate source in archive order.
func CollectFile(path string, acc *Accumulator, opts CollectOptions) error {
	logrus.Infof("collecting %s", path)

	switch {
	case strings.HasSuffix(path, ".zip"):
		return collectZip(path, acc, opts)
	case strings.HasSuffix(path, ".gz"):
		return collectStream(path, acc, opts, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case strings.HasSuffix(path, ".xz"):
		return collectStream(path, acc, opts, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r, 0)
		})
	default:
		return collectStream(path, acc, opts, nil)
	}
}

func collectStream(path string, acc *Accumulator, opts CollectOptions, decompress func(io.Reader) (io.Reader, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "unable to open %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if decompress != nil {
		r, err = decompress(f)
		if err != nil {
			return errors.Wrapf(err, "unable to decompress %s", path)
		}
	}

	if _, err := Collect(newCSVReader(r), acc, opts); err != nil {
		return errors.Wrapf(err, "unable to collect %s", path)
	}
	return nil
}

func collectZip(path string, acc *Accumulator, opts CollectOptions) error {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return errors.Wrapf(err, "unable to open zip archive %s", path)
	}
	defer archive.Close()

	for _, f := range archive.File {
		if !strings.HasSuffix(f.Name, csvMemberSuffix) {
			continue
		}
		if err := collectZipMember(f, acc, opts); err != nil {
			return errors.Wrapf(err, "unable to collect %s:%s", path, f.Name)
		}
	}

	return nil
}

func collectZipMember(f *zip.File, acc *Accumulator, opts CollectOptions) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Wrap(err, "can't open file in archive")
	}
	defer rc.Close()

	logrus.Infof("collecting archive member %s", f.Name)
	_, err = Collect(newCSVReader(rc), acc, opts)
	return err
}
