package main

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

func ipv4toUint32(ipv4 string) (uint32, error) {
	addr, err := netip.ParseAddr(ipv4)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to parse ipv4 %q", ipv4)
	}
	if !addr.Is4() {
		return 0, errors.Errorf("not an ipv4 address: %q", ipv4)
	}
	b := addr.As4()

	return binary.BigEndian.Uint32(b[:]), nil
}

func ipv6toBytes(ipv6 string) ([16]byte, error) {
	addr, err := netip.ParseAddr(ipv6)
	if err != nil {
		return [16]byte{}, errors.Wrapf(err, "unable to parse ipv6 %q", ipv6)
	}
	if !addr.Is6() {
		return [16]byte{}, errors.Errorf("not an ipv6 address: %q", ipv6)
	}

	return addr.As16(), nil
}

func uint32toIPv4String(ip uint32) string {
	return fmt.Sprintf(
		"%d.%d.%d.%d",
		(ip >> 24),
		(ip&0x00FFFFFF)>>16,
		(ip&0x0000FFFF)>>8,
		(ip & 0x000000FF),
	)
}

// isIPv6Text mirrors the collector's family rule: any colon means IPv6.
func isIPv6Text(addr string) bool {
	return strings.Contains(addr, ":")
}
