package main

import (
	"bufio"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const legacyInputColumns = 4

// ConvertLegacyCSV rewrites an ipinfo.io country.csv into the legacy MaxMind
// layout "start","end","start_int","end_int","code","name" with every field
// quoted. The input header is dropped; the output has none.
func ConvertLegacyCSV(in io.Reader, out io.Writer) (int, error) {
	records := newCSVReader(in)
	w := bufio.NewWriter(out)

	if _, err := records.Read(); err != nil {
		if err == io.EOF {
			return 0, errors.New("empty input, expected an ipinfo.io header")
		}
		return 0, errors.Wrap(err, "CSV reading error")
	}

	rows := 0
	for {
		record, err := records.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, errors.Wrap(err, "CSV reading error")
		}
		line, _ := records.FieldPos(0)
		if len(record) < legacyInputColumns {
			return rows, errors.Errorf("line %d: expected at least %d columns, got %d", line, legacyInputColumns, len(record))
		}

		startInt, err := addrToDecimal(record[0])
		if err != nil {
			return rows, errors.Wrapf(err, "line %d: bad start address", line)
		}
		endInt, err := addrToDecimal(record[1])
		if err != nil {
			return rows, errors.Wrapf(err, "line %d: bad end address", line)
		}
		if err := writeQuoted(w, record[0], record[1], startInt, endInt, record[2], record[3]); err != nil {
			return rows, errors.Wrap(err, "unable to write legacy CSV")
		}
		rows++
	}

	return rows, errors.Wrap(w.Flush(), "unable to write legacy CSV")
}

// ConvertLegacyCSVFile converts inPath into outPath, truncating outPath.
func ConvertLegacyCSVFile(inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return errors.Wrapf(err, "unable to open %s", inPath)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", outPath)
	}
	defer out.Close()

	rows, err := ConvertLegacyCSV(in, out)
	if err != nil {
		return errors.Wrapf(err, "unable to convert %s", inPath)
	}
	logrus.Infof("wrote %d rows to %s", rows, outPath)

	return errors.Wrapf(out.Close(), "unable to close %s", outPath)
}

// addrToDecimal renders an IPv4 or IPv6 address as its unsigned integer value.
func addrToDecimal(addr string) (string, error) {
	if !isIPv6Text(addr) {
		n, err := ipv4toUint32(addr)
		if err != nil {
			return "", err
		}
		return new(big.Int).SetUint64(uint64(n)).String(), nil
	}

	b, err := ipv6toBytes(addr)
	if err != nil {
		return "", err
	}
	return new(big.Int).SetBytes(b[:]).String(), nil
}

// writeQuoted writes one fully quoted row; csv.Writer only quotes on demand.
func writeQuoted(w *bufio.Writer, fields ...string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.Replace(f, `"`, `""`, -1) + `"`); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}
