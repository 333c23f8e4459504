package main

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const progressEvery = 4096

// RecordReader yields CSV records and the source position of their fields;
// *csv.Reader satisfies it.
type RecordReader interface {
	Read() (record []string, err error)
	FieldPos(field int) (line, column int)
}

type CollectOptions struct {
	Columns        Columns
	IgnoreFirstRow bool
}

type CollectStats struct {
	Schema  string
	Lines   int
	Records int
	Ranges  int
	Skipped int
}

// Collect detects the schema of records from their first record and appends
// every range to acc. Rows with too few columns, blank lines included, are
// skipped with a warning; an address that does not parse aborts the whole run.
func Collect(records RecordReader, acc *Accumulator, opts CollectOptions) (CollectStats, error) {
	stats := CollectStats{}

	first, err := records.Read()
	if err == io.EOF {
		logrus.Warn("empty source, nothing to collect")
		return stats, nil
	}
	if err != nil {
		return stats, errors.Wrap(err, "CSV reading error")
	}

	det := DetectSchema(first, opts.Columns, opts.IgnoreFirstRow)
	stats.Schema = det.Schema

	line := advance(records, first, &stats)
	if !det.SkipFirst {
		if err := collectRecord(first, line, det.Columns, acc, &stats); err != nil {
			return stats, err
		}
	}

	for {
		record, err := records.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, errors.Wrapf(err, "CSV reading error after line %d", stats.Lines)
		}
		line := advance(records, record, &stats)
		if err := collectRecord(record, line, det.Columns, acc, &stats); err != nil {
			return stats, err
		}
		if stats.Records%progressEvery == 0 {
			logrus.Infof("%d entries", stats.Records)
		}
	}

	logrus.Infof("%d entries total, %d ranges collected, %d skipped", stats.Records, stats.Ranges, stats.Skipped)

	return stats, nil
}

// advance returns the line record starts on. The csv reader drops empty
// lines, so any gap since the previous record is reported as skipped rows.
func advance(records RecordReader, record []string, stats *CollectStats) int {
	line, _ := records.FieldPos(0)
	for blank := stats.Lines + 1; blank < line; blank++ {
		logrus.Warnf("skipping row %d: insufficient columns", blank)
		stats.Skipped++
	}
	last := len(record) - 1
	end, _ := records.FieldPos(last)
	stats.Lines = end + strings.Count(record[last], "\n")
	stats.Records++
	return line
}

func collectRecord(record []string, line int, cols Columns, acc *Accumulator, stats *CollectStats) error {
	if len(record) <= cols.MaxIndex() {
		logrus.Warnf("skipping row %d: insufficient columns", line)
		stats.Skipped++
		return nil
	}

	startIP, endIP, code := record[cols.StartIP], record[cols.EndIP], record[cols.CountryCode]
	pool := acc.Pool(code)

	if isIPv6Text(startIP) {
		start, err := ipv6toBytes(startIP)
		if err != nil {
			return errors.Wrapf(err, "line %d: bad start address", line)
		}
		end, err := ipv6toBytes(endIP)
		if err != nil {
			return errors.Wrapf(err, "line %d: bad end address", line)
		}
		pool.PoolV6 = append(pool.PoolV6, RangeV6{Start: start, End: end})
	} else {
		start, err := ipv4toUint32(startIP)
		if err != nil {
			return errors.Wrapf(err, "line %d: bad start address", line)
		}
		end, err := ipv4toUint32(endIP)
		if err != nil {
			return errors.Wrapf(err, "line %d: bad end address", line)
		}
		pool.PoolV4 = append(pool.PoolV4, RangeV4{Start: start, End: end})
	}
	stats.Ranges++

	return nil
}
