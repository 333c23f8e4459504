package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	ipv4Suffix = ".iv4"
	ipv6Suffix = ".iv6"

	ipv4RecordSize = 8
	ipv6RecordSize = 32

	endianProbe = 0x10000000
)

// Variant is one byte-order flavour of the output tree.
type Variant struct {
	Dir   string
	Order binary.ByteOrder
}

var (
	LittleEndian = Variant{Dir: "LE", Order: binary.LittleEndian}
	BigEndian    = Variant{Dir: "BE", Order: binary.BigEndian}
)

func VariantByName(name string) (Variant, error) {
	switch strings.ToUpper(name) {
	case LittleEndian.Dir:
		return LittleEndian, nil
	case BigEndian.Dir:
		return BigEndian, nil
	}
	return Variant{}, errors.Errorf("unknown variant %q, expected LE or BE", name)
}

// SelectVariants returns both variants, or only the host's one when
// nativeOnly is set.
func SelectVariants(nativeOnly bool) ([]Variant, error) {
	if !nativeOnly {
		return []Variant{LittleEndian, BigEndian}, nil
	}
	return nativeVariant(binary.NativeEndian)
}

func nativeVariant(order binary.ByteOrder) ([]Variant, error) {
	probe := make([]byte, 4)
	order.PutUint32(probe, endianProbe)

	le := make([]byte, 4)
	binary.LittleEndian.PutUint32(le, endianProbe)
	be := make([]byte, 4)
	binary.BigEndian.PutUint32(be, endianProbe)

	switch {
	case bytes.Equal(probe, le):
		return []Variant{LittleEndian}, nil
	case bytes.Equal(probe, be):
		return []Variant{BigEndian}, nil
	}
	return nil, errors.New("cannot determine endianness")
}

// PrepareTarget checks that targetDir exists and creates the variant
// subdirectories.
func PrepareTarget(targetDir string, variants []Variant) error {
	info, err := os.Stat(targetDir)
	if err != nil {
		return errors.Wrapf(err, "target directory %s does not exist", targetDir)
	}
	if !info.IsDir() {
		return errors.Errorf("target %s is not a directory", targetDir)
	}
	for _, v := range variants {
		if err := os.MkdirAll(filepath.Join(targetDir, v.Dir), 0755); err != nil {
			return errors.Wrapf(err, "unable to create %s directory", v.Dir)
		}
	}
	return nil
}

// swapWords converts a network-order IPv6 address to the LE layout: each
// 32-bit word is byte-swapped in place, word order is kept.
func swapWords(addr [16]byte) [16]byte {
	var out [16]byte
	for i := 0; i < 16; i += 4 {
		binary.LittleEndian.PutUint32(out[i:], binary.BigEndian.Uint32(addr[i:]))
	}
	return out
}

func encodeV4(order binary.ByteOrder, r RangeV4) []byte {
	buf := make([]byte, ipv4RecordSize)
	order.PutUint32(buf[0:4], r.Start)
	order.PutUint32(buf[4:8], r.End)
	return buf
}

func encodeV6(v Variant, r RangeV6) []byte {
	start, end := r.Start, r.End
	if v.Dir == LittleEndian.Dir {
		start, end = swapWords(start), swapWords(end)
	}
	buf := make([]byte, 0, ipv6RecordSize)
	buf = append(buf, start[:]...)
	return append(buf, end[:]...)
}

// safeCountryCode rejects codes containing a path separator, which would
// place the file outside the variant directory.
func safeCountryCode(code string) bool {
	return !strings.ContainsAny(code, `/\`)
}

func countryFileName(targetDir string, v Variant, code, suffix string) string {
	return filepath.Join(targetDir, v.Dir, strings.ToUpper(code)+suffix)
}

// Emit writes every pool of acc, in code order, for each variant. Families
// with no ranges produce no file.
func Emit(targetDir string, acc *Accumulator, variants []Variant) error {
	var err error
	files := 0
	acc.Ascend(func(pool *CountryPool) bool {
		var n int
		n, err = emitCountry(targetDir, pool, variants)
		files += n
		return err == nil
	})
	if err != nil {
		return err
	}

	logrus.Infof("wrote %d files for %d countries", files, acc.Len())
	return nil
}

func emitCountry(targetDir string, pool *CountryPool, variants []Variant) (int, error) {
	files := 0
	if !safeCountryCode(pool.Code) {
		logrus.Warnf("skipping country %q: code is not a valid file name", pool.Code)
		return files, nil
	}
	for _, v := range variants {
		v := v
		if len(pool.PoolV4) > 0 {
			name := countryFileName(targetDir, v, pool.Code, ipv4Suffix)
			err := writeRecords(name, len(pool.PoolV4), func(i int) []byte {
				return encodeV4(v.Order, pool.PoolV4[i])
			})
			if err != nil {
				return files, err
			}
			files++
		}
		if len(pool.PoolV6) > 0 {
			name := countryFileName(targetDir, v, pool.Code, ipv6Suffix)
			err := writeRecords(name, len(pool.PoolV6), func(i int) []byte {
				return encodeV6(v, pool.PoolV6[i])
			})
			if err != nil {
				return files, err
			}
			files++
		}
	}
	return files, nil
}

func writeRecords(name string, count int, record func(i int) []byte) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", name)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i := 0; i < count; i++ {
		if _, err := w.Write(record(i)); err != nil {
			return errors.Wrapf(err, "unable to write %s", name)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "unable to write %s", name)
	}
	return errors.Wrapf(f.Close(), "unable to close %s", name)
}
