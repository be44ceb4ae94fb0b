// Package identity normalises wallet addresses and derives display names.
package identity

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// InvalidAddressError reports a string that is not a 20-byte hex address.
type InvalidAddressError struct {
	Address string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid wallet address %q", e.Address)
}

func keccak(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// Normalize validates a 0x-prefixed address and returns its EIP-55 checksum
// form. Mixed-case input must already carry a valid checksum.
func Normalize(address string) (string, error) {
	addr := strings.TrimSpace(address)
	if len(addr) != 42 || !(strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X")) {
		return "", &InvalidAddressError{Address: address}
	}
	body := addr[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return "", &InvalidAddressError{Address: address}
	}

	checksummed := checksum(strings.ToLower(body))
	mixed := strings.ToLower(body) != body && strings.ToUpper(body) != body
	if mixed && checksummed[2:] != body {
		return "", &InvalidAddressError{Address: address}
	}
	return checksummed, nil
}

func checksum(lower string) string {
	hash := hex.EncodeToString(keccak([]byte(lower)))
	out := make([]byte, len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}

// Shorten renders 0x1234...abcd. Short inputs are returned unchanged.
func Shorten(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

var (
	adjectives = []string{
		"Amber", "Bold", "Brave", "Calm", "Clever", "Cosmic", "Crisp", "Daring",
		"Eager", "Fancy", "Gentle", "Golden", "Happy", "Jolly", "Keen", "Lucky",
		"Mellow", "Nimble", "Noble", "Proud", "Quiet", "Rapid", "Royal", "Silent",
		"Solar", "Steady", "Swift", "Tidy", "Vivid", "Warm", "Wise", "Zesty",
	}
	animals = []string{
		"Badger", "Bison", "Condor", "Coyote", "Dolphin", "Falcon", "Ferret", "Gecko",
		"Heron", "Ibex", "Jaguar", "Koala", "Lemur", "Lynx", "Marmot", "Narwhal",
		"Ocelot", "Otter", "Panda", "Pelican", "Puffin", "Quokka", "Raven", "Salmon",
		"Shark", "Sparrow", "Tapir", "Tiger", "Walrus", "Weasel", "Yak", "Zebra",
	}
)

// DisplayName returns a stable two-word name seeded by the address, ignoring
// case. An empty address is "Unknown".
func DisplayName(address string) string {
	addr := strings.ToLower(strings.TrimSpace(address))
	if addr == "" {
		return "Unknown"
	}
	sum := keccak([]byte(addr))
	a := binary.BigEndian.Uint32(sum[0:4])
	b := binary.BigEndian.Uint32(sum[4:8])
	return adjectives[a%uint32(len(adjectives))] + " " + animals[b%uint32(len(animals))]
}
