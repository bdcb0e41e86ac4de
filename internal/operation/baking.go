// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/aplane-algo/tzsigner/internal/codec"
)

const (
	// [magic][chain id][level][proto], anything after is not inspected
	blockMinSize = 1 + 4 + 4 + 1
	// [magic][chain id][branch][tag][level]
	endorsementSize = 1 + 4 + branchSize + 1 + 4

	blockLevelOffset       = 1 + 4
	endorsementLevelOffset = 1 + 4 + branchSize + 1
)

// ParseBakingData classifies data as a block header or an endorsement by its
// leading byte and extracts the level. Chain ids are not checked.
func ParseBakingData(data []byte) (BakingData, error) {
	switch MagicByte(data) {
	case MagicEndorsement:
		if len(data) != endorsementSize {
			return BakingData{}, codec.Malformed(0, codec.CodeUnexpectedLength,
				fmt.Errorf("%w: endorsement is %d bytes, want %d", codec.ErrUnexpectedLength, len(data), endorsementSize))
		}
		return BakingData{
			IsEndorsement: true,
			Level:         binary.BigEndian.Uint32(data[endorsementLevelOffset:]),
		}, nil
	case MagicBlock:
		if len(data) < blockMinSize {
			return BakingData{}, codec.Short(len(data), blockMinSize-len(data), nil)
		}
		return BakingData{Level: binary.BigEndian.Uint32(data[blockLevelOffset:])}, nil
	default:
		return BakingData{}, codec.Malformed(0, codec.CodeBadMagic, codec.ErrBadMagic)
	}
}
