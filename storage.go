package main

import (
	"bytes"
	"io/ioutil"
	"net/netip"
	"path/filepath"
	"strings"
	"time"

	btree "github.com/Rikanishu/btree/ui32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type countryRangeV6 struct {
	RangeV6
	Code string
}

// Database is a read-only view of one emitted variant directory.
type Database struct {
	variant Variant
	tree    *btree.BTree
	v6      []countryRangeV6
	pools   *Accumulator
}

// LoadDatabase decodes every .iv4 and .iv6 file under <targetDir>/<variant>.
// The country code of a file is its base name.
func LoadDatabase(targetDir string, v Variant) (*Database, error) {
	startTSNano := time.Now().UnixNano()

	dir := filepath.Join(targetDir, v.Dir)
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", dir)
	}

	pools := NewAccumulator()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ipv4Suffix && ext != ipv6Suffix {
			continue
		}
		content, err := ioutil.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read %s", name)
		}
		pool := pools.Pool(strings.TrimSuffix(name, ext))
		if ext == ipv4Suffix {
			pool.PoolV4, err = decodeV4(v, content)
		} else {
			pool.PoolV6, err = decodeV6(v, content)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "unable to decode %s", name)
		}
	}

	db := &Database{
		variant: v,
		pools:   pools,
	}
	db.build()

	logrus.Debugf("loaded %d countries from %s, took %v sec", pools.Len(), dir,
		float64(time.Now().UnixNano()-startTSNano)/float64(time.Second))

	return db, nil
}

func decodeV4(v Variant, content []byte) ([]RangeV4, error) {
	if len(content)%ipv4RecordSize != 0 {
		return nil, errors.Errorf("size %d is not a multiple of %d", len(content), ipv4RecordSize)
	}
	out := make([]RangeV4, 0, len(content)/ipv4RecordSize)
	for i := 0; i < len(content); i += ipv4RecordSize {
		out = append(out, RangeV4{
			Start: v.Order.Uint32(content[i : i+4]),
			End:   v.Order.Uint32(content[i+4 : i+8]),
		})
	}
	return out, nil
}

func decodeV6(v Variant, content []byte) ([]RangeV6, error) {
	if len(content)%ipv6RecordSize != 0 {
		return nil, errors.Errorf("size %d is not a multiple of %d", len(content), ipv6RecordSize)
	}
	out := make([]RangeV6, 0, len(content)/ipv6RecordSize)
	for i := 0; i < len(content); i += ipv6RecordSize {
		var r RangeV6
		copy(r.Start[:], content[i:i+16])
		copy(r.End[:], content[i+16:i+32])
		if v.Dir == LittleEndian.Dir {
			// the per-word swap is its own inverse
			r.Start, r.End = swapWords(r.Start), swapWords(r.End)
		}
		out = append(out, r)
	}
	return out, nil
}

func (db *Database) build() {
	treeMap := make(map[uint32]map[uint32]string)
	db.pools.Ascend(func(pool *CountryPool) bool {
		for _, r := range pool.PoolV4 {
			if _, ok := treeMap[r.Start]; !ok {
				treeMap[r.Start] = make(map[uint32]string)
			}
			if prev, ok := treeMap[r.Start][r.End]; ok {
				logrus.Warnf("range %s-%s listed for %s and %s, keeping %s",
					uint32toIPv4String(r.Start), uint32toIPv4String(r.End), prev, pool.Code, prev)
				continue
			}
			treeMap[r.Start][r.End] = pool.Code
		}
		for _, r := range pool.PoolV6 {
			db.v6 = append(db.v6, countryRangeV6{RangeV6: r, Code: pool.Code})
		}
		return true
	})

	t := btree.New(2)
	for startIP, ends := range treeMap {
		et := btree.New(2)
		for endIP, code := range ends {
			et.ReplaceOrInsert(&btree.Item{
				Key:     endIP,
				Payload: code,
			})
		}
		t.ReplaceOrInsert(&btree.Item{
			Key:     startIP,
			SubTree: et,
		})
	}
	db.tree = t
}

// Pools exposes the decoded ranges in country order.
func (db *Database) Pools() *Accumulator {
	return db.pools
}

// FindCountry returns the code of the first range containing addr.
func (db *Database) FindCountry(addr netip.Addr) (string, bool) {
	var out []string
	if addr.Is4() {
		out = db.findV4(addr)
	} else {
		out = db.findV6(addr)
	}

	if len(out) == 0 {
		return "", false
	}
	if len(out) > 1 {
		logrus.Warnf("found %d country candidates for ip %s", len(out), addr)
	}
	return out[0], true
}

func (db *Database) findV4(addr netip.Addr) []string {
	b := addr.As4()
	ip := BigEndian.Order.Uint32(b[:])

	out := make([]string, 0, 1)
	db.tree.DescendLessOrEqual(&btree.Item{
		Key: ip,
	}, func(item *btree.Item) bool {
		item.SubTree.AscendGreaterOrEqual(&btree.Item{
			Key: ip,
		}, func(item *btree.Item) bool {
			out = append(out, item.Payload.(string))
			return true
		})
		return true
	})
	return out
}

func (db *Database) findV6(addr netip.Addr) []string {
	ip := addr.As16()

	out := make([]string, 0, 1)
	for _, r := range db.v6 {
		if bytes.Compare(ip[:], r.Start[:]) >= 0 && bytes.Compare(ip[:], r.End[:]) <= 0 {
			out = append(out, r.Code)
		}
	}
	return out
}
