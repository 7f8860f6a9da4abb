package checkout

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	codePrefix     = "ORD"
	codeSuffixLen  = 6
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // 32 symbols, no 0/O/1/I
	maxCodeRetries = 5
)

// CodeGenerator returns a fresh order code on every call.
type CodeGenerator func() (string, error)

// NewOrderCode builds ORD-<base36 millis>-<random>. The timestamp part keeps
// codes roughly sortable; the suffix carries 30 bits of entropy per millisecond.
func NewOrderCode() (string, error) {
	return newOrderCode(time.Now())
}

func newOrderCode(now time.Time) (string, error) {
	buf := make([]byte, codeSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	suffix := make([]byte, codeSuffixLen)
	for i, b := range buf {
		suffix[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return codePrefix + "-" + stamp + "-" + string(suffix), nil
}
