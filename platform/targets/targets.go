// Package targets maps patch info platform ids to their instruction template
// tables.  New platforms are added here and nowhere else.
package targets

import (
	"github.com/pkg/errors"

	"github.com/cmrt/fclink/platform"
	"github.com/cmrt/fclink/platform/gen12"
	"github.com/cmrt/fclink/platform/gen9"
)

var families = map[platform.ID]func(platform.ID) platform.Platform{
	platform.SNB:   gen9.NewPlatform,
	platform.IVB:   gen9.NewPlatform,
	platform.HSW:   gen9.NewPlatform,
	platform.BDW:   gen9.NewPlatform,
	platform.CHV:   gen9.NewPlatform,
	platform.SKL:   gen9.NewPlatform,
	platform.BXT:   gen9.NewPlatform,
	platform.CNL:   gen9.NewPlatform,
	platform.ICL:   gen9.NewPlatform,
	platform.ICLLP: gen9.NewPlatform,
	platform.TGL:   gen12.NewPlatform,
	platform.TGLLP: gen12.NewPlatform,
}

func Lookup(id platform.ID) (platform.Platform, error) {
	newPlatform, ok := families[id]
	if !ok {
		return nil, errors.Errorf("unsupported platform (%s)", id)
	}
	return newPlatform(id), nil
}
