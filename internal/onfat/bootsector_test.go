package onfat_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sfatfs/sfat/internal/onfat"
)

func sampleBootSector() *onfat.RawBootSector {
	var sysID [8]byte
	copy(sysID[:], "SFAT1.0 ")
	return &onfat.RawBootSector{
		SystemID:   sysID,
		Media:      onfat.MediaID,
		SectorSize: 512,
		SecPerClus: 4,
		Reserved:   10,
		FATLength:  8,
		Fats:       2,
		Sectors:    2048,
		Clusters:   500,
		RootStart:  0,
		RootSize:   1,
	}
}

func TestBootSectorRoundTrip(t *testing.T) {
	bs := sampleBootSector()
	encoded, err := bs.Encode()
	require.NoError(t, err)
	require.Len(t, encoded, onfat.BootSectorSize)

	decoded, err := onfat.DecodeBootSector(encoded)
	require.NoError(t, err)
	require.Equal(t, bs, decoded)
}

func TestDecodeBootSectorRejectsBadMedia(t *testing.T) {
	bs := sampleBootSector()
	bs.Media = 0x00
	encoded, err := bs.Encode()
	require.NoError(t, err)

	_, err = onfat.DecodeBootSector(encoded)
	require.Error(t, err)
}

func TestDecodeBootSectorRejectsBadSectorSize(t *testing.T) {
	bs := sampleBootSector()
	bs.SectorSize = 513
	encoded, err := bs.Encode()
	require.NoError(t, err)

	_, err = onfat.DecodeBootSector(encoded)
	require.Error(t, err)
}

func TestDecodeBootSectorRejectsShortInput(t *testing.T) {
	_, err := onfat.DecodeBootSector(make([]byte, 10))
	require.Error(t, err)
}
