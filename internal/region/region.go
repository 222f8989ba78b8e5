// Package region maps backend region codes to API hosts.
package region

import (
	"strconv"
	"strings"

	"github.com/localz/localzpush-go/internal/sdkerrors"
)

// Code is a numeric backend region code
type Code int

// Known region codes. The production values match the codes embedded in
// application ids handed out by the console.
const (
	AU  Code = 6000
	EU  Code = 3000
	US  Code = 9000
	Dev Code = 1000
)

// Production and development API hosts
const (
	AUHost  = "push-au.localz.io"
	EUHost  = "push-eu.localz.io"
	USHost  = "push-us.localz.io"
	DevHost = "push-dev.localz.io"
)

var hosts = map[Code]string{
	AU:  AUHost,
	EU:  EUHost,
	US:  USHost,
	Dev: DevHost,
}

var names = map[Code]string{
	AU:  "AU",
	EU:  "EU",
	US:  "US",
	Dev: "DEV",
}

// HostFor returns the API host for a region code. It has no side effects;
// callers cache the result.
func HostFor(code Code) (string, error) {
	host, ok := hosts[code]
	if !ok {
		return "", sdkerrors.NewUnknownRegion(int(code))
	}
	return host, nil
}

// ParseRegion maps a region name (AU, EU, US, DEV, case-insensitive) or a
// numeric code string to a known code.
func ParseRegion(name string) (Code, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if i, err := strconv.Atoi(n); err == nil {
		if _, ok := hosts[Code(i)]; ok {
			return Code(i), nil
		}
		return 0, sdkerrors.NewUnknownRegion(i)
	}
	for code, label := range names {
		if label == n {
			return code, nil
		}
	}
	return 0, &sdkerrors.Error{
		Type:    sdkerrors.ErrTypeUnknownRegion,
		Message: "unknown region name " + name,
	}
}

// String returns the region label, or the numeric code for unknown regions
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "Region(" + strconv.Itoa(int(c)) + ")"
}

// IsDev reports whether the code targets the development backend
func (c Code) IsDev() bool {
	return c == Dev
}
