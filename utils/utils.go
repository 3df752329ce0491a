// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/perms"

	formatter "github.com/onsi/ginkgo/v2/formatter"

	"github.com/ava-labs/countervm/consts"
)

const millisecondsPerSecond = 1000

var ErrInvalidBalance = errors.New("invalid balance")

func ToID(bytes []byte) ids.ID {
	return ids.ID(hashing.ComputeHash256Array(bytes))
}

func InitSubDirectory(rootPath string, name string) (string, error) {
	p := path.Join(rootPath, name)
	return p, os.MkdirAll(p, perms.ReadWriteExecute)
}

// Outputs to stdout.
//
// e.g.,
//
//	Outf("{{green}}{{bold}}hi there %q{{/}}", "aa")
//	Outf("{{magenta}}{{bold}}hi therea{{/}} {{cyan}}{{underline}}b{{/}}")
//
// ref.
// https://github.com/onsi/ginkgo/blob/v2.0.0/formatter/formatter.go#L52-L73
func Outf(format string, args ...interface{}) {
	s := formatter.F(format, args...)
	fmt.Fprint(formatter.ColorableStdOut, s)
}

// FormatBalance renders [bal] base units with [consts.Decimals] places.
func FormatBalance(bal uint64) string {
	div := pow10(consts.Decimals)
	return fmt.Sprintf("%d.%0*d", bal/div, consts.Decimals, bal%div)
}

// ParseBalance is the inverse of [FormatBalance]. It accepts at most
// [consts.Decimals] fractional digits.
func ParseBalance(bal string) (uint64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(bal), ".")
	if len(whole) == 0 && len(frac) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidBalance)
	}
	if len(frac) > consts.Decimals {
		return 0, fmt.Errorf("%w: too many decimals in %q", ErrInvalidBalance, bal)
	}
	var w, f uint64
	var err error
	if len(whole) > 0 {
		w, err = strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidBalance, err)
		}
	}
	if len(frac) > 0 {
		f, err = strconv.ParseUint(frac+strings.Repeat("0", consts.Decimals-len(frac)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidBalance, err)
		}
	}
	div := pow10(consts.Decimals)
	if w > (consts.MaxUint64-f)/div {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidBalance, bal)
	}
	return w*div + f, nil
}

func pow10(n int) uint64 {
	v := uint64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// UnixRMilli returns the current unix time in milliseconds, rounded
// down to the nearsest second.
//
// [now] is used as the current unix time in milliseconds if >= 0.
//
// [add] (in ms) is added to the unix time before it is rounded (typically
// used when generating an expiry time with a validity window).
func UnixRMilli(now, add int64) int64 {
	if now < 0 {
		now = time.Now().UnixMilli()
	}
	t := now + add
	return t - t%millisecondsPerSecond
}

// SaveBytes writes [b] to [filename] readable only by the current user.
func SaveBytes(filename string, b []byte) error {
	return os.WriteFile(filename, b, perms.ReadWrite)
}

// LoadBytes reads [filename]. If [expectedSize] is non-negative, the file
// must hold exactly that many bytes.
func LoadBytes(filename string, expectedSize int) ([]byte, error) {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if expectedSize != -1 && len(bytes) != expectedSize {
		return nil, fmt.Errorf("expected %d bytes in %s but found %d", expectedSize, filename, len(bytes))
	}
	return bytes, nil
}
